package tools

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/transport"
)

func TestLookupKnowsAllThreeTools(t *testing.T) {
	r := New(Dependencies{Pool: transport.New(0)})

	for _, name := range []model.ToolName{model.ToolTTSSpeak, model.ToolSTTTranscribe, model.ToolRenderDisplay} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("expected %s to be registered", name)
		}
	}
}

func TestLookupUnknownTool(t *testing.T) {
	r := New(Dependencies{Pool: transport.New(0)})
	if _, ok := r.Lookup(model.ToolName("nonexistent")); ok {
		t.Error("expected unknown tool to be absent")
	}
}

func TestRenderDisplayIsANoOpThatEchoesText(t *testing.T) {
	result, err := renderDisplay(context.Background(), map[string]any{"text": "fixate this"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["text"] != "fixate this" || result["ok"] != true {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestTTSSpeakReturnsBase64AudioOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-wav-bytes"))
	}))
	defer srv.Close()

	handler := newTTSSpeak(Dependencies{Pool: transport.New(0), WarpWailsURL: srv.URL, DefaultSpeaker: "imp_light"})
	result, err := handler(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, decErr := base64.StdEncoding.DecodeString(result["data_b64"].(string))
	if decErr != nil || string(decoded) != "fake-wav-bytes" {
		t.Errorf("unexpected audio payload: %v (err=%v)", result["data_b64"], decErr)
	}
	if result["speaker"] != "imp_light" {
		t.Errorf("expected default speaker to apply, got %v", result["speaker"])
	}
}

func TestTTSSpeakMissingText(t *testing.T) {
	handler := newTTSSpeak(Dependencies{Pool: transport.New(0), WarpWailsURL: "http://unused"})
	_, err := handler(context.Background(), map[string]any{})
	if err == nil || err.Kind != model.KindToolError {
		t.Fatalf("expected ToolError, got %v", err)
	}
}

func TestSTTTranscribeReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Error("expected non-empty request body")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer srv.Close()

	handler := newSTTTranscribe(Dependencies{Pool: transport.New(0), WarpWailsURL: srv.URL})
	result, err := handler(context.Background(), map[string]any{"audio_b64": "YWJj"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["text"] != "hello world" {
		t.Errorf("text = %v", result["text"])
	}
}

func TestSTTTranscribeMissingAudio(t *testing.T) {
	handler := newSTTTranscribe(Dependencies{Pool: transport.New(0), WarpWailsURL: "http://unused"})
	_, err := handler(context.Background(), map[string]any{})
	if err == nil || err.Kind != model.KindToolError {
		t.Fatalf("expected ToolError, got %v", err)
	}
}
