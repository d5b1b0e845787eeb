package httpapi

import (
	"net/http"
	"strconv"

	"eyeofterror.app/orchestrator/common/id"
	"eyeofterror.app/orchestrator/common/logger"
	"eyeofterror.app/orchestrator/internal/controller"
	"eyeofterror.app/orchestrator/internal/ingestqueue"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

// Handler bundles the dependencies every route needs.
type Handler struct {
	orchestrator *orchestrator.Orchestrator
	controller   *controller.Client
	ingest       ingestqueue.Producer
}

// New builds a Handler.
func New(o *orchestrator.Orchestrator, c *controller.Client, ingest ingestqueue.Producer) *Handler {
	return &Handler{orchestrator: o, controller: c, ingest: ingest}
}

// Healthz reports liveness only; it never touches the controller or
// downstream models.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DebugController surfaces the controller client's last-call state.
func (h *Handler) DebugController(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Debug())
}

// Route runs one inbound message through the orchestrator.
func (h *Handler) Route(c *gin.Context) {
	var msg model.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		writeError(c, model.NewInvalidInput("malformed request body: "+err.Error()))
		return
	}

	if (msg.Text == nil || *msg.Text == "") && (msg.AudioB64 == nil || *msg.AudioB64 == "") {
		writeError(c, model.NewInvalidInput("at least one of text or audio_b64 is required"))
		return
	}

	requestID := strconv.FormatInt(id.New(), 10)
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		RequestID: logger.Ptr(requestID),
		Component: "orchestrator.httpapi",
	})

	result, err := h.orchestrator.Route(ctx, msg)
	if err != nil {
		writeError(c, err)
		return
	}
	result.RequestID = requestID
	c.JSON(http.StatusOK, result)
}

type ingestRequest struct {
	Module string `json:"module"`
	Text   string `json:"text" binding:"required"`
}

// Ingest enqueues one free-form log entry from a named module.
func (h *Handler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, model.NewInvalidInput("malformed request body: "+err.Error()))
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		RequestID: logger.Ptr(strconv.FormatInt(id.New(), 10)),
		Component: "orchestrator.httpapi",
	})

	if err := h.ingest.Enqueue(ctx, ingestqueue.Message{
		Module: req.Module,
		Text:   req.Text,
		Source: ingestqueue.SourceIngest,
	}); err != nil {
		writeError(c, model.NewTransport(err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

// STTResult accepts an arbitrary JSON body carrying at least a "text"
// field, produced by an out-of-band STT pipeline delivering its result
// asynchronously rather than through the synchronous stt.transcribe tool.
func (h *Handler) STTResult(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, model.NewInvalidInput("malformed request body: "+err.Error()))
		return
	}

	text, _ := body["text"].(string)
	if text == "" {
		writeError(c, model.NewInvalidInput("body must carry a non-empty \"text\" field"))
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		RequestID: logger.Ptr(strconv.FormatInt(id.New(), 10)),
		Component: "orchestrator.httpapi",
	})

	if err := h.ingest.Enqueue(ctx, ingestqueue.Message{
		Text:   text,
		Source: ingestqueue.SourceSTTResult,
	}); err != nil {
		writeError(c, model.NewTransport(err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func writeError(c *gin.Context, err *model.Error) {
	c.JSON(err.HTTPStatus(), model.OrchestratorResult{
		OK: false,
		Error: &model.ErrorPayload{
			Kind:    string(err.Kind),
			Message: err.Error(),
		},
	})
}
