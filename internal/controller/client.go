// Package controller implements C5: the controller client that asks the
// controller-tier model to produce a Plan, falls back to the deterministic
// planner (internal/fallback) on any transport, parse, or schema failure,
// and exposes its last-call state for the /debug/controller endpoint.
// Grounded on the original's controller.py (call_controller_7b, _json_from)
// and main.py's debug_controller handler.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/fallback"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/planschema"
)

// systemPreamble precedes the machine-generated schema in the controller's
// system prompt. Kept in Russian, matching the original's prompt language.
const systemPreamble = `Ты — планировщик действий ассистента. По входящему сообщению ` +
	`составь план выполнения в виде JSON-объекта, строго соответствующего ` +
	`приведённой ниже JSON Schema. Не добавляй пояснений и текста вне JSON. ` +
	`Используй только перечисленные инструменты и модели. Каждый шаг должен ` +
	`иметь уникальный id; зависимости перечисляются в wait_for; результат, ` +
	`который нужно вернуть пользователю, перечисли в criteria.deliver.

Схема плана:
`

// controllerTemperature and controllerMaxTokens implement spec §4.5/§6:
// deterministic, short plan responses. Passed explicitly (not nil) so a
// zero temperature is actually requested rather than left at the
// provider's default.
var controllerTemperature = ptrFloat(0.0)

const controllerMaxTokens = 128

func ptrFloat(f float64) *float64 { return &f }

// Client sends a plan request to the controller-tier model and decodes the
// result through planschema, falling back to a deterministic plan on any
// failure. base/endpoint/lastError back the /debug/controller endpoint.
type Client struct {
	chat llm.Client

	mu        sync.Mutex
	base      string
	endpoint  string
	lastError string
}

// New builds a Client. base and endpoint are descriptive only, surfaced
// verbatim via Debug for operators inspecting /debug/controller.
func New(chat llm.Client, base, endpoint string) *Client {
	return &Client{chat: chat, base: base, endpoint: endpoint}
}

// userPayload is the JSON shape sent as the user message: the inbound
// message plus whatever execution context has accumulated so far (used by
// Phase B re-planning, where the controller sees Phase A's artifacts).
type userPayload struct {
	Text    *string        `json:"text,omitempty"`
	Audio   *string        `json:"audio_b64,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Plan asks the controller for a Plan. On any failure (transport error, no
// JSON object found in the response, or schema validation failure) it
// records the failure for Debug and returns a deterministic fallback plan
// instead, with usedController=false.
func (c *Client) Plan(ctx context.Context, msg model.InboundMessage, execCtx model.ExecutionContext) (plan *model.Plan, usedController bool) {
	raw, err := c.call(ctx, msg, execCtx)
	if err != nil {
		c.recordError(err.Error())
		return fallback.Build(msg), false
	}

	candidate, ok := extractJSONObject(raw)
	if !ok {
		c.recordError("no JSON object found in controller response")
		return fallback.Build(msg), false
	}

	decoded, perr := planschema.Decode([]byte(candidate))
	if perr != nil {
		c.recordError(perr.Error())
		return fallback.Build(msg), false
	}

	c.recordError("")
	return decoded, true
}

func (c *Client) call(ctx context.Context, msg model.InboundMessage, execCtx model.ExecutionContext) (string, error) {
	payload := userPayload{
		Text:  msg.Text,
		Audio: msg.AudioB64,
		Meta:  msg.Meta,
	}
	if len(execCtx) > 0 {
		payload.Context = execCtx
	}

	userJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("controller: marshal user payload: %w", err)
	}

	schemaJSON, err := json.Marshal(planschema.Schema())
	if err != nil {
		return "", fmt.Errorf("controller: marshal schema: %w", err)
	}

	system := systemPreamble + string(schemaJSON)

	text, _, err := c.chat.Chat(ctx, system, string(userJSON), llm.ChatOptions{
		Temperature: controllerTemperature,
		MaxTokens:   controllerMaxTokens,
		JSONObject:  true,
	})
	if err != nil {
		return "", fmt.Errorf("controller: chat: %w", err)
	}
	return text, nil
}

// extractJSONObject returns the substring from the first '{' to the last
// '}' in s, matching the original's _json_from — the controller model is
// not always prompted strictly enough to avoid wrapping prose around the
// JSON object, so this tolerates that instead of requiring a clean parse.
func extractJSONObject(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return s[first : last+1], true
}

func (c *Client) recordError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = msg
}

// Debug returns the {base, endpoint, last_error} triple served by
// /debug/controller.
func (c *Client) Debug() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"base":       c.base,
		"endpoint":   c.endpoint,
		"last_error": c.lastError,
	}
}
