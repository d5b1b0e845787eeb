package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/controller"
	"eyeofterror.app/orchestrator/internal/executor"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/modelrouter"
	"eyeofterror.app/orchestrator/internal/tools"
	"eyeofterror.app/orchestrator/internal/transport"
)

type stubChat struct{ reply string }

func (s *stubChat) Chat(_ context.Context, _, _ string, _ llm.ChatOptions) (string, llm.Usage, error) {
	return s.reply, llm.Usage{}, nil
}
func (s *stubChat) Model() string { return "stub" }

func strPtr(s string) *string { return &s }

func newTTSStub(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-wav"))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// TestRouteRunsPhaseBWhenReplyEmitted exercises the fallback chat plan
// (model step emitting "reply", tool step speaking it) and confirms Phase B
// re-plans against the Phase A reply text, since the fallback chat plan
// always emits "reply".
func TestRouteRunsPhaseBWhenReplyEmitted(t *testing.T) {
	chat := &stubChat{reply: "hello from the model"}
	router := modelrouter.New(map[model.TargetModel]llm.Client{model.ModelName20B: chat})
	toolRegistry := tools.New(tools.Dependencies{Pool: transport.New(0), WarpWailsURL: newTTSStub(t), DefaultSpeaker: "imp_light"})
	exec := executor.New(toolRegistry, router)

	// Both phases fall back to the deterministic planner since the stub
	// controller client never returns a parseable plan.
	ctrl := controller.New(&stubChat{reply: "not json"}, "base", "/endpoint")

	o := New(ctrl, exec)
	result, err := o.Route(context.Background(), model.InboundMessage{Text: strPtr("what time is it")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatal("expected ok result")
	}
	if _, ok := result.Artifacts["reply"]; !ok {
		t.Errorf("expected 'reply' artifact, got %+v", result.Artifacts)
	}
	if _, ok := result.Artifacts["speech"]; !ok {
		t.Errorf("expected 'speech' artifact, got %+v", result.Artifacts)
	}
	phaseBRan := false
	for _, line := range result.Logs {
		if line == "controller: phase B fell back to deterministic plan" {
			phaseBRan = true
		}
	}
	if !phaseBRan {
		t.Errorf("expected Phase B to run, logs = %v", result.Logs)
	}
}

func TestRouteSayBranchSkipsPhaseB(t *testing.T) {
	router := modelrouter.New(map[model.TargetModel]llm.Client{})
	toolRegistry := tools.New(tools.Dependencies{Pool: transport.New(0), WarpWailsURL: newTTSStub(t), DefaultSpeaker: "imp_light"})
	exec := executor.New(toolRegistry, router)
	ctrl := controller.New(&stubChat{reply: "not json"}, "base", "/endpoint")

	o := New(ctrl, exec)
	result, err := o.Route(context.Background(), model.InboundMessage{Text: strPtr("скажи: привет")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.Artifacts["speech"]; !ok {
		t.Errorf("expected 'speech' artifact, got %+v", result.Artifacts)
	}
	if _, ok := result.Artifacts["reply"]; ok {
		t.Error("say branch should never emit 'reply', so no Phase B re-plan")
	}
}
