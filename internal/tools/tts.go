package tools

import (
	"context"
	"encoding/base64"

	"eyeofterror.app/orchestrator/internal/model"
)

// TTSSpeakParams documents the tts.speak argument contract.
type TTSSpeakParams struct {
	Text    string `json:"text" jsonschema:"required,description=Text to synthesize"`
	Speaker string `json:"speaker,omitempty" jsonschema:"description=Speaker preset; defaults to TTS_DEFAULT_SPK"`
}

func newTTSSpeak(deps Dependencies) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, *model.Error) {
		text, ok := args["text"].(string)
		if !ok || text == "" {
			return nil, model.NewToolError(string(model.ToolTTSSpeak), "missing 'text'")
		}

		speaker, _ := args["speaker"].(string)
		if speaker == "" {
			speaker = deps.DefaultSpeaker
		}

		payload := map[string]any{"text": text, "speaker": speaker}
		body, _, status, err := deps.Pool.PostRaw(ctx, deps.WarpWailsURL+"/speak_full", "application/json; charset=utf-8", mustMarshal(payload))
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, model.NewHTTPStatus(status, string(body))
		}

		return map[string]any{
			"type":     "audio/wav",
			"speaker":  speaker,
			"data_b64": base64.StdEncoding.EncodeToString(body),
		}, nil
	}
}
