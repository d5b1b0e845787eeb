package executor

import (
	"context"
	"testing"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/modelrouter"
	"eyeofterror.app/orchestrator/internal/tools"
	"eyeofterror.app/orchestrator/internal/transport"
)

func newTestRegistry() *tools.Registry {
	return tools.New(tools.Dependencies{Pool: transport.New(0), WarpWailsURL: "http://unused", DefaultSpeaker: "imp_light"})
}

func renderStep(id, text string, waitFor []string, emit string) model.Step {
	return model.Step{
		ID:      id,
		Kind:    model.StepKindTool,
		Call:    &model.ToolCall{Tool: model.ToolRenderDisplay, Args: map[string]any{"text": text}},
		WaitFor: waitFor,
		Emit:    emit,
	}
}

func TestRunIndependentStepsBothDeliver(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("s1", "one", nil, "a"),
			renderStep("s2", "two", nil, "b"),
		},
		Criteria: model.Criteria{Deliver: []string{"a", "b"}},
	}

	exec := New(newTestRegistry(), nil)
	ctx, trace, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace lines, got %v", trace)
	}
	if trace[0] != "tool render.display -> a" || trace[1] != "tool render.display -> b" {
		t.Errorf("expected trace in declaration order, got %v", trace)
	}
	if a := ctx["a"].(map[string]any)["text"]; a != "one" {
		t.Errorf("a.text = %v", a)
	}
	if b := ctx["b"].(map[string]any)["text"]; b != "two" {
		t.Errorf("b.text = %v", b)
	}
}

// TestRunInterpolatesFullMatchOnly covers spec §4.6: only a value that is
// *entirely* "${a.b.c}" interpolates to the resolved (raw) value. A
// placeholder embedded in a larger string is left untouched.
func TestRunInterpolatesFullMatchOnly(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("s1", "hello", nil, "r1"),
			renderStep("s2", "${r1.text}", []string{"s1"}, "r2"),
		},
		Criteria: model.Criteria{Deliver: []string{"r2"}},
	}

	exec := New(newTestRegistry(), nil)
	ctx, trace, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace lines in declaration order, got %v", trace)
	}
	if got := ctx["r2"].(map[string]any)["text"]; got != "hello" {
		t.Errorf("r2.text = %v, want hello (full-match substitution)", got)
	}
}

func TestRunPassesThroughPartialPlaceholderUnchanged(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("s1", "hello", nil, "r1"),
			renderStep("s2", "${r1.text}-suffix", []string{"s1"}, "r2"),
		},
		Criteria: model.Criteria{Deliver: []string{"r2"}},
	}

	exec := New(newTestRegistry(), nil)
	ctx, trace, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace lines in declaration order, got %v", trace)
	}
	if got := ctx["r2"].(map[string]any)["text"]; got != "${r1.text}-suffix" {
		t.Errorf("r2.text = %v, want the literal placeholder passed through unchanged", got)
	}
}

// TestRunWaitForUnknownStepFailsDependencyMissing covers spec §8 scenario
// S4: the validator only rejects cycles at validation time (§9); a
// wait_for naming a step the plan never declares reaches the executor and
// fails at runtime rather than at schema validation.
func TestRunWaitForUnknownStepFailsDependencyMissing(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("a", "hello", []string{"ghost"}, "r1"),
		},
		Criteria: model.Criteria{Deliver: []string{"r1"}},
	}

	exec := New(newTestRegistry(), nil)
	_, _, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Kind != model.KindDependencyMissing {
		t.Errorf("expected KindDependencyMissing, got %s", err.Kind)
	}
}

func TestRunFailedDependencyAbortsDependent(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			{
				ID:      "s1",
				Kind:    model.StepKindTool,
				Call:    &model.ToolCall{Tool: model.ToolTTSSpeak, Args: map[string]any{}}, // missing "text" -> ToolError
				WaitFor: nil,
				Emit:    "speech",
			},
			renderStep("s2", "${speech.text}", []string{"s1"}, "r2"),
		},
		Criteria: model.Criteria{Deliver: []string{"r2"}},
	}

	exec := New(newTestRegistry(), nil)
	_, _, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Kind != model.KindToolError && err.Kind != model.KindDependencyMissing {
		t.Errorf("unexpected kind: %s", err.Kind)
	}
}

// TestRunOverwritesSeededEmit confirms a step may rebind an emit name
// already present in a seeded context (e.g. Phase B superseding Phase A's
// "reply") without triggering EmitConflict: the conflict check is scoped
// to names bound within this Run, not the seed.
func TestRunOverwritesSeededEmit(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("s1", "hello", nil, "reply"),
		},
		Criteria: model.Criteria{Deliver: []string{"reply"}},
	}

	seed := model.ExecutionContext{"reply": map[string]any{"text": "already here"}}

	exec := New(newTestRegistry(), nil)
	ctx, _, err := exec.Run(context.Background(), plan, seed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ctx["reply"].(map[string]any)["text"]; got != "hello" {
		t.Errorf("reply.text = %v, want the rebound value", got)
	}
}

// TestRunEmitConflictWithinSamePlan covers a plan that (bypassing the
// validator, which would normally reject this) declares the same emit
// twice: the second binder must fail with EmitConflict.
func TestRunEmitConflictWithinSamePlan(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			renderStep("s1", "hello", nil, "dup"),
			renderStep("s2", "world", []string{"s1"}, "dup"),
		},
		Criteria: model.Criteria{Deliver: []string{"dup"}},
	}

	exec := New(newTestRegistry(), nil)
	_, _, err := exec.Run(context.Background(), plan, model.ExecutionContext{})
	if err == nil || err.Kind != model.KindEmitConflict {
		t.Fatalf("expected EmitConflict, got %v", err)
	}
}

func TestRunCanceledContext(t *testing.T) {
	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps:   []model.Step{renderStep("s1", "hello", nil, "r1")},
		Criteria: model.Criteria{Deliver: []string{"r1"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(newTestRegistry(), nil)
	_, _, err := exec.Run(ctx, plan, model.ExecutionContext{})
	if err == nil || err.Kind != model.KindCanceled {
		t.Fatalf("expected Canceled, got %v", err)
	}
}

func TestRunModelStepUsesInputTextAndEmitsReply(t *testing.T) {
	stub := &stubChatClient{reply: "hi there"}
	router := modelrouter.New(map[model.TargetModel]llm.Client{model.ModelName20B: stub})

	plan := &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			{ID: "m1", Kind: model.StepKindModel, Route: &model.Route{Name: model.ModelName20B, Purpose: model.PurposeChat}, Emit: "reply"},
		},
		Criteria: model.Criteria{Deliver: []string{"reply"}},
	}

	exec := New(newTestRegistry(), router)
	ctx, trace, err := exec.Run(context.Background(), plan, model.ExecutionContext{"input": map[string]any{"text": "what's up"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.user != "what's up" {
		t.Errorf("expected model to receive input.text, got %q", stub.user)
	}
	if got := ctx["reply"].(map[string]any)["text"]; got != "hi there" {
		t.Errorf("reply.text = %v", got)
	}
	if len(trace) != 1 || trace[0] != "model 20b/chat -> reply" {
		t.Errorf("unexpected trace: %v", trace)
	}
}

type stubChatClient struct {
	user  string
	reply string
}

func (s *stubChatClient) Chat(_ context.Context, _, user string, _ llm.ChatOptions) (string, llm.Usage, error) {
	s.user = user
	return s.reply, llm.Usage{}, nil
}

func (s *stubChatClient) Model() string { return "stub" }
