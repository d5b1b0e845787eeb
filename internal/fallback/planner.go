// Package fallback implements C8: deterministic plan construction used
// when the controller is unavailable or returns a malformed plan.
// Grounded on the original's planner_fallback.py build_plan, preserving
// its three branches exactly (spec §4.8).
package fallback

import (
	"strings"

	"eyeofterror.app/orchestrator/internal/model"
)

// ackText is the fixed acknowledgement spoken back when the inbound
// message carries audio, matching the original's audio branch.
const ackText = "Принято, обрабатываю."

// Build constructs a deterministic Plan from an inbound message, without
// ever calling the controller.
func Build(msg model.InboundMessage) *model.Plan {
	switch {
	case msg.AudioB64 != nil && *msg.AudioB64 != "":
		return audioPlan(*msg.AudioB64)
	case msg.Text != nil && hasSayPrefix(*msg.Text):
		return sayPlan(stripSayPrefix(*msg.Text))
	default:
		text := ""
		if msg.Text != nil {
			text = *msg.Text
		}
		return chatPlan(text)
	}
}

func audioPlan(audioB64 string) *model.Plan {
	return &model.Plan{
		Version:    model.PlanVersion,
		RouteParts: map[string]string{},
		Steps: []model.Step{
			{
				ID:      "stt1",
				Kind:    model.StepKindTool,
				Call:    &model.ToolCall{Tool: model.ToolSTTTranscribe, Args: map[string]any{"audio_b64": audioB64}},
				WaitFor: []string{},
				Emit:    "transcript",
			},
			{
				ID:      "tts1",
				Kind:    model.StepKindTool,
				Call:    &model.ToolCall{Tool: model.ToolTTSSpeak, Args: map[string]any{"text": ackText}},
				WaitFor: []string{"stt1"},
				Emit:    "ack_audio",
			},
		},
		Criteria: model.Criteria{Deliver: []string{"ack_audio", "transcript"}},
	}
}

func sayPlan(remainder string) *model.Plan {
	return &model.Plan{
		Version:    model.PlanVersion,
		RouteParts: map[string]string{},
		Steps: []model.Step{
			{
				ID:      "tts1",
				Kind:    model.StepKindTool,
				Call:    &model.ToolCall{Tool: model.ToolTTSSpeak, Args: map[string]any{"text": remainder, "preset": "imp_light"}},
				WaitFor: []string{},
				Emit:    "speech",
			},
		},
		Criteria: model.Criteria{Deliver: []string{"speech"}},
	}
}

func chatPlan(_ string) *model.Plan {
	return &model.Plan{
		Version:    model.PlanVersion,
		RouteParts: map[string]string{},
		Steps: []model.Step{
			{
				ID:      "m1",
				Kind:    model.StepKindModel,
				Route:   &model.Route{Name: model.ModelName20B, Purpose: model.PurposeChat},
				WaitFor: []string{},
				Emit:    "reply",
			},
			{
				ID:      "tts1",
				Kind:    model.StepKindTool,
				Call:    &model.ToolCall{Tool: model.ToolTTSSpeak, Args: map[string]any{"text": "${reply.text}"}},
				WaitFor: []string{"m1"},
				Emit:    "speech",
			},
		},
		Criteria: model.Criteria{Deliver: []string{"reply", "speech"}},
	}
}

var sayPrefixes = []string{"скажи:", "say:"}

func hasSayPrefix(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	for _, p := range sayPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func stripSayPrefix(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, p := range sayPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(trimmed[len(p):])
		}
	}
	return trimmed
}
