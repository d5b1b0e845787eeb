// Package modelrouter implements C4: chat_complete(route_name, purpose,
// user_text) -> {text}, resolving a plan's {name, purpose} route descriptor
// to one of the configured worker model endpoints. Grounded on the
// original's models.py chat_complete and ROUTE_MAP, rebuilt on the shared
// common/llm client (see SPEC_FULL §13's canonical-contract decision)
// instead of a bespoke httpx call per route.
package modelrouter

import (
	"context"
	"fmt"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/model"
)

// lowTemperature is the "≤ 0.2" ceiling spec §4.4 requires for worker
// model route calls.
var lowTemperature = ptr(0.0)

// directives maps a plan's Purpose to the system message sent ahead of the
// user text. Purposes without an explicit directive fall back to using the
// purpose string itself as the system message, matching the original's
// chat_complete (which passed "purpose" through as system content
// verbatim).
var directives = map[model.Purpose]string{
	model.PurposeChat:      "Answer briefly in Russian.",
	model.PurposeCode:      "Answer with code only, no prose.",
	model.PurposeReason:    "Think step by step, then answer briefly.",
	model.PurposeSummarize: "Summarize in one short paragraph.",
	model.PurposePlan:      "Produce a short plan of action, no commentary.",
	model.PurposeMain:      "Answer the user directly and concisely.",
}

// Result is the {text} envelope returned by chat_complete.
type Result struct {
	Text string
}

// Router resolves a TargetModel route name to a concrete llm.Client and
// dispatches chat_complete against it.
type Router struct {
	routes map[model.TargetModel]llm.Client
}

// New builds a Router from one llm.Client per configured route.
func New(routes map[model.TargetModel]llm.Client) *Router {
	return &Router{routes: routes}
}

// ChatComplete sends a two-message conversation (a purpose-derived system
// directive, then userText) to the resolved route and returns its text.
func (r *Router) ChatComplete(ctx context.Context, routeName model.TargetModel, purpose model.Purpose, userText string) (Result, *model.Error) {
	client, ok := r.routes[routeName]
	if !ok {
		return Result{}, model.NewUnknownRoute(string(routeName))
	}

	system := directives[purpose]
	if system == "" {
		system = string(purpose)
	}

	text, _, err := client.Chat(ctx, system, userText, llm.ChatOptions{Temperature: lowTemperature})
	if err != nil {
		if llm.IsRetryable(ctx, err) {
			return Result{}, model.NewTransport(err)
		}
		return Result{}, model.NewHTTPStatus(0, fmt.Sprintf("model route %q: %s", routeName, err))
	}

	return Result{Text: text}, nil
}

func ptr(f float64) *float64 { return &f }
