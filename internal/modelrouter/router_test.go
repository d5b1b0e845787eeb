package modelrouter

import (
	"context"
	"errors"
	"testing"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/model"
)

type stubClient struct {
	system, user string
	reply        string
	err          error
}

func (s *stubClient) Chat(_ context.Context, system, user string, _ llm.ChatOptions) (string, llm.Usage, error) {
	s.system, s.user = system, user
	if s.err != nil {
		return "", llm.Usage{}, s.err
	}
	return s.reply, llm.Usage{}, nil
}

func (s *stubClient) Model() string { return "stub" }

func TestChatCompleteResolvesRouteAndReturnsText(t *testing.T) {
	stub := &stubClient{reply: "hello there"}
	r := New(map[model.TargetModel]llm.Client{model.ModelName20B: stub})

	result, err := r.ChatComplete(context.Background(), model.ModelName20B, model.PurposeChat, "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello there" {
		t.Errorf("text = %q", result.Text)
	}
	if stub.system != directives[model.PurposeChat] {
		t.Errorf("system = %q, want chat directive", stub.system)
	}
	if stub.user != "hi" {
		t.Errorf("user = %q", stub.user)
	}
}

func TestChatCompleteUnknownRoute(t *testing.T) {
	r := New(map[model.TargetModel]llm.Client{})

	_, err := r.ChatComplete(context.Background(), model.ModelName70B, model.PurposeChat, "hi")
	if err == nil || err.Kind != model.KindUnknownRoute {
		t.Fatalf("expected UnknownRoute, got %v", err)
	}
}

func TestChatCompleteUnmappedPurposeFallsBackToRawString(t *testing.T) {
	stub := &stubClient{reply: "ok"}
	r := New(map[model.TargetModel]llm.Client{model.ModelName7B: stub})

	_, err := r.ChatComplete(context.Background(), model.ModelName7B, model.Purpose("unlisted"), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.system != "unlisted" {
		t.Errorf("system = %q, want raw purpose fallback", stub.system)
	}
}

func TestChatCompleteClassifiesTransportFailure(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	r := New(map[model.TargetModel]llm.Client{model.ModelName7B: stub})

	_, err := r.ChatComplete(context.Background(), model.ModelName7B, model.PurposeChat, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Kind != model.KindTransport && err.Kind != model.KindHTTPStatus {
		t.Errorf("unexpected kind: %s", err.Kind)
	}
}
