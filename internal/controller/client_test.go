package controller

import (
	"context"
	"errors"
	"testing"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/model"
)

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Chat(_ context.Context, _, _ string, _ llm.ChatOptions) (string, llm.Usage, error) {
	if s.err != nil {
		return "", llm.Usage{}, s.err
	}
	return s.reply, llm.Usage{}, nil
}

func (s *stubChat) Model() string { return "stub" }

func strPtr(s string) *string { return &s }

const validPlanJSON = `{
  "version": "1.0",
  "route_parts": {},
  "steps": [
    {"id": "m1", "kind": "model", "route": {"name": "20b", "purpose": "chat"}, "wait_for": [], "emit": "reply"}
  ],
  "criteria": {"success_when": [], "deliver": ["reply"]}
}`

func TestPlanUsesControllerOutputWhenValid(t *testing.T) {
	c := New(&stubChat{reply: "here you go: " + validPlanJSON + " thanks"}, "base", "/endpoint")

	plan, used := c.Plan(context.Background(), model.InboundMessage{Text: strPtr("hi")}, nil)
	if !used {
		t.Fatal("expected controller output to be used")
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Emit != "reply" {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if debug := c.Debug(); debug["last_error"] != "" {
		t.Errorf("expected no last_error, got %v", debug["last_error"])
	}
}

func TestPlanFallsBackOnTransportError(t *testing.T) {
	c := New(&stubChat{err: errors.New("connection refused")}, "base", "/endpoint")

	plan, used := c.Plan(context.Background(), model.InboundMessage{Text: strPtr("hi")}, nil)
	if used {
		t.Fatal("expected fallback")
	}
	if len(plan.Steps) == 0 {
		t.Fatal("fallback plan should not be empty")
	}
	if debug := c.Debug(); debug["last_error"] == "" {
		t.Error("expected last_error to be recorded")
	}
}

func TestPlanFallsBackOnNoJSONFound(t *testing.T) {
	c := New(&stubChat{reply: "I'm sorry, I can't help with that."}, "base", "/endpoint")

	_, used := c.Plan(context.Background(), model.InboundMessage{Text: strPtr("hi")}, nil)
	if used {
		t.Fatal("expected fallback")
	}
}

func TestPlanFallsBackOnSchemaMismatch(t *testing.T) {
	c := New(&stubChat{reply: `{"version": "2.0", "steps": []}`}, "base", "/endpoint")

	_, used := c.Plan(context.Background(), model.InboundMessage{Text: strPtr("hi")}, nil)
	if used {
		t.Fatal("expected fallback on schema mismatch")
	}
}

func TestExtractJSONObjectTakesFirstBraceToLastBrace(t *testing.T) {
	s, ok := extractJSONObject(`prose before {"a": 1, "b": {"c": 2}} prose after`)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if s != `{"a": 1, "b": {"c": 2}}` {
		t.Errorf("got %q", s)
	}
}

func TestExtractJSONObjectNoBraces(t *testing.T) {
	_, ok := extractJSONObject("no json here")
	if ok {
		t.Fatal("expected extraction to fail")
	}
}
