package tools

import (
	"context"
	"encoding/json"

	"eyeofterror.app/orchestrator/internal/model"
)

// RenderDisplayParams documents the render.display argument contract.
type RenderDisplayParams struct {
	Text string `json:"text" jsonschema:"required,description=Text to fixate as a display artifact"`
}

// renderDisplay is a no-op artifact fixation: it has no downstream call and
// needs no Dependencies, matching the original's render_display.
func renderDisplay(_ context.Context, args map[string]any) (map[string]any, *model.Error) {
	text, _ := args["text"].(string)
	return map[string]any{"ok": true, "text": text}, nil
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
