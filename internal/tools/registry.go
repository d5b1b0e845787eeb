// Package tools implements C3: the closed, build-time-known registry of
// tool-kind step handlers. Argument structs follow the teacher's
// jsonschema-tagged parameter style (internal/brain/explore_tools.go),
// though here the tags only document the contract — the actual argument
// decoding is the plain map the executor hands each handler post-
// interpolation, per spec §4.6.
package tools

import (
	"context"

	"eyeofterror.app/orchestrator/internal/model"
)

// Handler executes one tool-kind step. args are already interpolated by
// the executor; handlers never see a "${...}" placeholder.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, *model.Error)

// Registry is the static name → Handler mapping. Immutable after
// construction (spec §5 "tool registry ... immutable after startup"), so it
// is safe to share across concurrently executing steps without locking.
type Registry struct {
	handlers map[model.ToolName]Handler
}

// New builds the closed registry described in spec §4.3.
func New(deps Dependencies) *Registry {
	return &Registry{
		handlers: map[model.ToolName]Handler{
			model.ToolTTSSpeak:      newTTSSpeak(deps),
			model.ToolSTTTranscribe: newSTTTranscribe(deps),
			model.ToolRenderDisplay: renderDisplay,
		},
	}
}

// Lookup returns the handler for name, or (nil, false) if name is not in
// the closed registry. The plan validator (C2) should already have
// rejected unknown tool names, so a caller observing false here has a
// validator/registry drift bug, not untrusted input.
func (r *Registry) Lookup(name model.ToolName) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}
