// Package executor implements C6: dependency-gated, concurrent execution
// of a validated Plan's steps against a shared, mutex-guarded execution
// context. Grounded on main.py's run_plan loop, generalized from its
// sequential for-loop into a wait_for-gated concurrent scheduler (SPEC_FULL
// §13's Open Question resolution): independent branches of the DAG run in
// parallel instead of queuing behind unrelated steps.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"eyeofterror.app/orchestrator/common/logger"
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/modelrouter"
	"eyeofterror.app/orchestrator/internal/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one child span per step dispatch (tool or model call),
// nested under whatever span is active in the context passed to Run —
// normally the per-phase span orchestrator.Route starts.
var tracer = otel.Tracer("eyeofterror.app/orchestrator/executor")

// Executor runs one Plan at a time against the closed tool registry and
// model router wired in at construction.
type Executor struct {
	tools  *tools.Registry
	router *modelrouter.Router
}

// New builds an Executor. Both dependencies are immutable after startup and
// safe to share across concurrent Run calls.
func New(toolRegistry *tools.Registry, router *modelrouter.Router) *Executor {
	return &Executor{tools: toolRegistry, router: router}
}

// Run executes plan's steps, each waiting on its wait_for predecessors'
// completion before dispatching, and returns the resulting execution
// context (seed cloned, never mutated in place), a trace of one line per
// successfully completed step in plan declaration order, and the first
// error encountered, if any. On error, remaining unstarted steps are
// abandoned and in-flight steps observe ctx cancellation.
func (e *Executor) Run(ctx context.Context, plan *model.Plan, seed model.ExecutionContext) (model.ExecutionContext, []string, *model.Error) {
	execCtx := seed.Clone()
	var mu sync.Mutex

	done := make(map[string]chan struct{}, len(plan.Steps))
	for _, step := range plan.Steps {
		done[step.ID] = make(chan struct{})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failOnce sync.Once
	var firstErr *model.Error
	fail := func(err *model.Error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	failed := make(map[string]bool, len(plan.Steps))
	boundThisRun := make(map[string]bool, len(plan.Steps))

	type traceLine struct {
		index int
		text  string
	}
	lines := make([]traceLine, 0, len(plan.Steps))
	var linesMu sync.Mutex

	var wg sync.WaitGroup
	for i, step := range plan.Steps {
		wg.Add(1)
		go func(i int, step model.Step) {
			defer wg.Done()
			defer close(done[step.ID])

			for _, dep := range step.WaitFor {
				ch, declared := done[dep]
				if !declared {
					// wait_for names a step id the plan never declares — it
					// can never complete, so this dependency is missing
					// (spec §8 scenario S4), not a deadlock.
					mu.Lock()
					failed[step.ID] = true
					mu.Unlock()
					fail(model.NewDependencyMissing(step.ID, dep))
					return
				}
				select {
				case <-ch:
				case <-runCtx.Done():
					return
				}
			}

			mu.Lock()
			blockedOn := ""
			for _, dep := range step.WaitFor {
				if failed[dep] {
					blockedOn = dep
					break
				}
			}
			mu.Unlock()
			if blockedOn != "" {
				mu.Lock()
				failed[step.ID] = true
				mu.Unlock()
				fail(model.NewDependencyMissing(step.ID, blockedOn))
				return
			}

			if runCtx.Err() != nil {
				return
			}

			text, err := e.runStep(runCtx, step, &mu, execCtx, boundThisRun)
			if err != nil {
				mu.Lock()
				failed[step.ID] = true
				mu.Unlock()
				fail(err)
				return
			}

			linesMu.Lock()
			lines = append(lines, traceLine{index: i, text: text})
			linesMu.Unlock()
		}(i, step)
	}

	wg.Wait()

	sort.Slice(lines, func(a, b int) bool { return lines[a].index < lines[b].index })
	trace := make([]string, len(lines))
	for i, l := range lines {
		trace[i] = l.text
	}

	if firstErr != nil {
		return execCtx, trace, firstErr
	}
	if runCtx.Err() != nil {
		return execCtx, trace, model.NewCanceled(runCtx.Err())
	}
	return execCtx, trace, nil
}

func (e *Executor) runStep(ctx context.Context, step model.Step, mu *sync.Mutex, execCtx model.ExecutionContext, boundThisRun map[string]bool) (string, *model.Error) {
	ctx, span := tracer.Start(ctx, "step."+step.ID, trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.kind", string(step.Kind)),
	))
	defer span.End()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		StepID:    logger.Ptr(step.ID),
		Component: "orchestrator.executor",
	})
	slog.DebugContext(ctx, "dispatching step", "kind", step.Kind)

	var text string
	var err *model.Error
	switch step.Kind {
	case model.StepKindTool:
		text, err = e.runTool(ctx, step, mu, execCtx, boundThisRun)
	case model.StepKindModel:
		text, err = e.runModel(ctx, step, mu, execCtx, boundThisRun)
	default:
		err = model.NewBadStep(step.ID, fmt.Sprintf("unknown kind %q", step.Kind))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "step failed", "error", err)
		return "", err
	}
	return text, nil
}

func (e *Executor) runTool(ctx context.Context, step model.Step, mu *sync.Mutex, execCtx model.ExecutionContext, boundThisRun map[string]bool) (string, *model.Error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Tool: logger.Ptr(string(step.Call.Tool))})

	handler, ok := e.tools.Lookup(step.Call.Tool)
	if !ok {
		return "", model.NewUnknownTool(string(step.Call.Tool))
	}

	mu.Lock()
	args := interpolateArgs(step.Call.Args, execCtx)
	mu.Unlock()

	result, err := handler(ctx, args)
	if err != nil {
		return "", err
	}

	if err := bindEmit(mu, execCtx, boundThisRun, step.ID, step.Emit, result); err != nil {
		return "", err
	}
	return fmt.Sprintf("tool %s -> %s", step.Call.Tool, step.Emit), nil
}

func (e *Executor) runModel(ctx context.Context, step model.Step, mu *sync.Mutex, execCtx model.ExecutionContext, boundThisRun map[string]bool) (string, *model.Error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Route: logger.Ptr(string(step.Route.Name))})

	mu.Lock()
	text := inputText(execCtx)
	mu.Unlock()

	result, err := e.router.ChatComplete(ctx, step.Route.Name, step.Route.Purpose, text)
	if err != nil {
		return "", err
	}

	if err := bindEmit(mu, execCtx, boundThisRun, step.ID, step.Emit, map[string]any{"text": result.Text}); err != nil {
		return "", err
	}
	return fmt.Sprintf("model %s/%s -> %s", step.Route.Name, step.Route.Purpose, step.Emit), nil
}

// bindEmit records a step's result under its emit name. The conflict check
// is scoped to names bound during this Run call (boundThisRun), not to keys
// already present in execCtx from a seeded prior phase — Phase B's plan is
// expected to reuse Phase A's emit names when superseding them (e.g. a
// second "reply"), and the validator already guarantees no two steps
// within one plan declare the same emit, so a same-run collision here
// indicates a validator/executor drift bug rather than legitimate reuse.
func bindEmit(mu *sync.Mutex, execCtx model.ExecutionContext, boundThisRun map[string]bool, stepID, emit string, value any) *model.Error {
	if emit == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if boundThisRun[emit] {
		return model.NewEmitConflict(stepID, emit)
	}
	boundThisRun[emit] = true
	execCtx[emit] = value
	return nil
}

func inputText(execCtx model.ExecutionContext) string {
	raw, ok := execCtx["input"]
	if !ok {
		return ""
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := m["text"].(string)
	return t
}

// placeholderRe matches a string value that is *entirely* "${a.b.c}" (spec
// §4.6: "^\$\{PATH\}$"). A placeholder embedded in a larger string, e.g.
// "${reply.text}-suffix", does not match and passes through unchanged.
var placeholderRe = regexp.MustCompile(`^\$\{([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)\}$`)

// interpolateArgs resolves every arg string value that is wholly a
// "${a.b.c}" placeholder against execCtx, called with mu already held by
// the caller. Non-matching strings and non-string values pass through
// unchanged; interpolation does not recurse into nested structures.
func interpolateArgs(args map[string]any, execCtx model.ExecutionContext) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = interpolateValue(v, execCtx)
	}
	return out
}

func interpolateValue(v any, execCtx model.ExecutionContext) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	m := placeholderRe.FindStringSubmatch(s)
	if m == nil {
		return v
	}
	return resolvePath(m[1], execCtx)
}

// resolvePath walks a dotted path against execCtx and returns the value
// found there, degrading to "" on any unresolvable segment rather than
// erroring — a model step emitting an unexpected shape should not abort an
// otherwise-deliverable plan.
func resolvePath(path string, execCtx model.ExecutionContext) any {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(execCtx)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		next, ok := m[p]
		if !ok {
			return ""
		}
		cur = next
	}
	return cur
}
