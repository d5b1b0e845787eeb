// Package transport implements C1: the shared outbound HTTP client pool
// used by the tool registry. The controller client and the model router do
// not go through it; they call their endpoints via common/llm.
// Grounded on the plain net/http client idiom the example corpus uses for
// OpenAI-compatible endpoints (see common/llm), generalized to the two
// timeout classes spec §4.1 requires.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"eyeofterror.app/orchestrator/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one span per outbound call, nested under whichever step
// span (internal/executor) is active in the caller's context — this is
// what makes downstream tool latency visible per dispatch rather
// than only at the request-level otelgin span.
var tracer = otel.Tracer("eyeofterror.app/orchestrator/transport")

// DefaultTimeout is the controller/tool timeout class (spec §4.1).
const DefaultTimeout = 45 * time.Second

// Pool is the process-wide HTTP client pool. Safe for concurrent use; both
// clients share net/http's connection pooling under the hood.
type Pool struct {
	short *http.Client // controller/tool timeout class
	long  *http.Client // unbounded-but-cancellable, for long-running synthesis
}

// New creates a Pool. short bounds the controller/tool timeout class;
// pass 0 to use DefaultTimeout.
func New(short time.Duration) *Pool {
	if short <= 0 {
		short = DefaultTimeout
	}
	return &Pool{
		short: &http.Client{Timeout: short},
		// No Timeout set: bounded only by the caller's context, per spec's
		// "unbounded-but-cancellable" long-running synthesis class.
		long: &http.Client{},
	}
}

// PostJSON sends body as a JSON POST to endpoint using the short timeout
// class and returns the raw response body and status code. Network/DNS/TLS
// failures classify as KindTransport, context deadlines as KindTimeout, a
// canceled context as KindCanceled.
func (p *Pool) PostJSON(ctx context.Context, endpoint string, body any) ([]byte, int, *model.Error) {
	return p.postJSON(ctx, p.short, endpoint, body)
}

// PostJSONLong is PostJSON using the unbounded-but-cancellable client, for
// calls expected to run long (audio synthesis).
func (p *Pool) PostJSONLong(ctx context.Context, endpoint string, body any) ([]byte, int, *model.Error) {
	return p.postJSON(ctx, p.long, endpoint, body)
}

func (p *Pool) postJSON(ctx context.Context, client *http.Client, endpoint string, body any) ([]byte, int, *model.Error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, model.NewTransport(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, model.NewTransport(err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, _, mErr := p.do(ctx, client, req)
	if mErr != nil {
		return nil, status, mErr
	}
	return respBody, status, nil
}

// do executes req and classifies the outcome per spec §4.1: Transport on
// network/DNS/TLS errors, Timeout on deadline, Canceled on cancellation,
// otherwise returns the raw body, status, and response Content-Type for the
// caller to interpret (non-2xx is the caller's concern — HTTPStatus{code,
// body}).
func (p *Pool) do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, int, string, *model.Error) {
	ctx, span := tracer.Start(ctx, "http.post", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	))
	defer span.End()
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				span.SetStatus(codes.Error, "canceled")
				return nil, 0, "", model.NewCanceled(err)
			}
			span.SetStatus(codes.Error, "deadline exceeded")
			return nil, 0, "", model.NewTimeout(err)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			span.SetStatus(codes.Error, "timeout")
			return nil, 0, "", model.NewTimeout(err)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, "", model.NewTransport(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, resp.StatusCode, "", model.NewTransport(err)
	}

	return respBody, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

// PostRaw is used by tools that send and receive non-JSON payloads (the
// tts.speak audio/wav response). The whole body is drained before return,
// per spec §4.3's note that the stream must be fully consumed.
func (p *Pool) PostRaw(ctx context.Context, endpoint string, contentType string, body []byte) ([]byte, string, int, *model.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", 0, model.NewTransport(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	respBody, status, respContentType, mErr := p.do(ctx, p.long, req)
	if mErr != nil {
		return nil, "", status, mErr
	}
	return respBody, respContentType, status, nil
}
