package tools

import (
	"context"
	"encoding/json"

	"eyeofterror.app/orchestrator/internal/model"
)

// STTTranscribeParams documents the stt.transcribe argument contract.
type STTTranscribeParams struct {
	AudioB64 string `json:"audio_b64" jsonschema:"required,description=Base64-encoded audio to transcribe"`
}

type sttResponse struct {
	Text string `json:"text"`
}

func newSTTTranscribe(deps Dependencies) Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, *model.Error) {
		audio, ok := args["audio_b64"].(string)
		if !ok || audio == "" {
			return nil, model.NewToolError(string(model.ToolSTTTranscribe), "missing 'audio_b64'")
		}

		body, status, err := deps.Pool.PostJSON(ctx, deps.WarpWailsURL+"/stt", map[string]any{"audio_b64": audio})
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, model.NewHTTPStatus(status, string(body))
		}

		var resp sttResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			return nil, model.NewToolError(string(model.ToolSTTTranscribe), "malformed response: "+jsonErr.Error())
		}

		return map[string]any{"text": resp.Text}, nil
	}
}
