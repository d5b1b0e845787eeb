// Package orchestrator implements C7: the top-level entry point behind
// POST /route, sequencing the controller and executor through the
// two-phase plan/execute/re-plan cycle. Grounded on main.py's route
// handler: Phase A plans and executes against the raw inbound message;
// its result text (reply.text, falling back to full_text.text) seeds
// Phase B, a second controller call that plans how to deliver that text;
// the final deliver list comes from whichever phase actually ran last.
package orchestrator

import (
	"context"

	"eyeofterror.app/orchestrator/internal/controller"
	"eyeofterror.app/orchestrator/internal/executor"
	"eyeofterror.app/orchestrator/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// tracer emits one span per phase (A/B) of a /route call; executor step
// spans and transport HTTP spans nest under whichever phase span is active
// in the context passed down to Run.
var tracer = otel.Tracer("eyeofterror.app/orchestrator/orchestrator")

// Orchestrator wires the controller client and executor together for one
// request at a time; both dependencies are safe for concurrent use, so an
// Orchestrator is too.
type Orchestrator struct {
	controller *controller.Client
	executor   *executor.Executor
}

// New builds an Orchestrator.
func New(c *controller.Client, e *executor.Executor) *Orchestrator {
	return &Orchestrator{controller: c, executor: e}
}

// Route runs the full plan/execute/re-plan cycle for one inbound message.
func (o *Orchestrator) Route(ctx context.Context, msg model.InboundMessage) (*model.OrchestratorResult, *model.Error) {
	var logs []string

	seed := model.ExecutionContext{"input": inputMap(msg)}

	phaseACtx, phaseASpan := tracer.Start(ctx, "phase.A")
	planA, usedA := o.controller.Plan(phaseACtx, msg, nil)
	if !usedA {
		logs = append(logs, "controller: phase A fell back to deterministic plan")
	}

	ctxA, traceA, err := o.executor.Run(phaseACtx, planA, seed)
	if err != nil {
		phaseASpan.SetStatus(codes.Error, err.Error())
		phaseASpan.End()
		return nil, err
	}
	logs = append(logs, traceA...)
	phaseASpan.End()

	finalPlan, finalCtx := planA, ctxA

	if textOut := textOutOf(ctxA); textOut != "" {
		phaseBInput := model.InboundMessage{Text: &textOut}

		phaseBCtx, phaseBSpan := tracer.Start(ctx, "phase.B")
		planB, usedB := o.controller.Plan(phaseBCtx, phaseBInput, ctxA)
		if !usedB {
			logs = append(logs, "controller: phase B fell back to deterministic plan")
		}

		seedB := ctxA.Clone()
		seedB["input"] = map[string]any{"text": textOut}

		ctxB, traceB, err := o.executor.Run(phaseBCtx, planB, seedB)
		if err != nil {
			phaseBSpan.SetStatus(codes.Error, err.Error())
			phaseBSpan.End()
			return nil, err
		}
		logs = append(logs, traceB...)
		phaseBSpan.End()

		finalPlan, finalCtx = planB, ctxB
	}

	// spec §4.7 step 5: every name in deliver binds in artifacts, even when
	// never emitted — a missing key binds to null, a map lookup's zero
	// value, rather than being silently omitted.
	artifacts := make(map[string]any, len(finalPlan.Criteria.Deliver))
	for _, name := range finalPlan.Criteria.Deliver {
		artifacts[name] = finalCtx[name]
	}

	return &model.OrchestratorResult{
		OK:        true,
		Artifacts: artifacts,
		Logs:      logs,
	}, nil
}

func inputMap(msg model.InboundMessage) map[string]any {
	m := map[string]any{}
	if msg.Text != nil {
		m["text"] = *msg.Text
	}
	if msg.AudioB64 != nil {
		m["audio_b64"] = *msg.AudioB64
	}
	if msg.Meta != nil {
		m["meta"] = msg.Meta
	}
	return m
}

// textOutOf computes the Phase A -> Phase B handoff text, preferring
// reply.text and falling back to full_text.text, then "" (no re-plan).
func textOutOf(ctx model.ExecutionContext) string {
	if t := textFromEmit(ctx, "reply"); t != "" {
		return t
	}
	return textFromEmit(ctx, "full_text")
}

func textFromEmit(ctx model.ExecutionContext, emit string) string {
	raw, ok := ctx[emit]
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
