package tools

import "eyeofterror.app/orchestrator/internal/transport"

// Dependencies bundles what tool handlers need, threaded in from
// cmd/orchestrator rather than read from package globals (spec §9
// "Globals": pass these as a dependency bundle).
type Dependencies struct {
	Pool *transport.Pool

	// WarpWailsURL is the base URL of the audio pipeline (tts.speak,
	// and — in the absence of a dedicated STT base URL in spec §6's
	// environment table — stt.transcribe too; see DESIGN.md).
	WarpWailsURL string

	// DefaultSpeaker is used when a tts.speak step omits "speaker".
	DefaultSpeaker string
}
