// Package planschema implements C2: the sole trust boundary between
// untrusted controller output and the executor. Strict decode + structural
// validation, in the sentinel-error-per-field style of the teacher's
// action validator (internal/brain/action_validator.go), generalized to a
// closed *model.Error taxonomy instead of wrapped stdlib errors since the
// caller (the controller client) needs to classify the failure, not just
// log it.
package planschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"eyeofterror.app/orchestrator/common/llm"
	"eyeofterror.app/orchestrator/internal/model"
)

// Schema reflects a JSON Schema for model.Plan, embedded by the controller
// client in its system prompt so the controller model sees a machine-
// generated contract rather than a hand-maintained example block.
func Schema() any {
	return llm.GenerateSchema[model.Plan]()
}

// Decode strictly decodes raw JSON into a model.Plan and validates it.
// This is the only function in the module allowed to turn untrusted bytes
// into a model.Plan — the controller client routes controller output
// through it. Rejects unknown fields at every
// level (json.Decoder.DisallowUnknownFields), then runs Validate.
func Decode(raw []byte) (*model.Plan, *model.Error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var plan model.Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, model.NewSchemaError("", fmt.Sprintf("decode: %s", err))
	}

	if err := Validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the structural invariants of spec §3 and §4.2 against an
// already-decoded Plan. Exported separately from Decode so the fallback
// planner (C8), which constructs a Plan directly in Go rather than from
// JSON, can still be checked by the same rules in tests.
func Validate(plan *model.Plan) *model.Error {
	if plan.Version != model.PlanVersion {
		return model.NewSchemaError("version", fmt.Sprintf("must be %q, got %q", model.PlanVersion, plan.Version))
	}

	if len(plan.Steps) == 0 {
		return model.NewSchemaError("steps", "plan must contain at least one step")
	}

	seenIDs := make(map[string]struct{}, len(plan.Steps))
	seenEmits := make(map[string]string, len(plan.Steps))

	for i, step := range plan.Steps {
		path := fmt.Sprintf("steps[%d]", i)

		if step.ID == "" {
			return model.NewSchemaError(path+".id", "must not be empty")
		}
		if _, dup := seenIDs[step.ID]; dup {
			return model.NewSchemaError(path+".id", fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seenIDs[step.ID] = struct{}{}

		if err := validateStepShape(path, step); err != nil {
			return err
		}

		if step.Emit != "" {
			if prior, dup := seenEmits[step.Emit]; dup {
				return model.NewSchemaError(path+".emit", fmt.Sprintf("emit %q already bound by step %q", step.Emit, prior))
			}
			seenEmits[step.Emit] = step.ID
		}
	}

	if err := detectCycle(plan.Steps); err != nil {
		return err
	}

	return nil
}

func validateStepShape(path string, step model.Step) *model.Error {
	switch step.Kind {
	case model.StepKindTool:
		if step.Route != nil {
			return model.NewSchemaError(path+".route", "must be absent when kind is \"tool\"")
		}
		if step.Call == nil {
			return model.NewSchemaError(path+".call", "required when kind is \"tool\"")
		}
		if !isKnownTool(step.Call.Tool) {
			return model.NewSchemaError(path+".call.tool", fmt.Sprintf("unknown tool %q", step.Call.Tool))
		}
	case model.StepKindModel:
		if step.Call != nil {
			return model.NewSchemaError(path+".call", "must be absent when kind is \"model\"")
		}
		if step.Route == nil {
			return model.NewSchemaError(path+".route", "required when kind is \"model\"")
		}
		if !isKnownModelName(step.Route.Name) {
			return model.NewSchemaError(path+".route.name", fmt.Sprintf("unknown model name %q", step.Route.Name))
		}
		if !isKnownPurpose(step.Route.Purpose) {
			return model.NewSchemaError(path+".route.purpose", fmt.Sprintf("unknown purpose %q", step.Route.Purpose))
		}
	default:
		return model.NewSchemaError(path+".kind", fmt.Sprintf("must be \"tool\" or \"model\", got %q", step.Kind))
	}
	return nil
}

func isKnownTool(t model.ToolName) bool {
	switch t {
	case model.ToolTTSSpeak, model.ToolSTTTranscribe, model.ToolRenderDisplay:
		return true
	}
	return false
}

func isKnownModelName(n model.TargetModel) bool {
	switch n {
	case model.ModelName20B, model.ModelName7B, model.ModelName70B:
		return true
	}
	return false
}

func isKnownPurpose(p model.Purpose) bool {
	switch p {
	case model.PurposeChat, model.PurposeCode, model.PurposeReason, model.PurposeSummarize, model.PurposePlan, model.PurposeMain:
		return true
	}
	return false
}

// detectCycle runs a DFS-based topological check over the wait_for edges.
// The source only validated wait_for presence at execution time (spec §9);
// this rewrite detects cycles up front, at validation time, as instructed.
func detectCycle(steps []model.Step) *model.Error {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	byID := make(map[string]model.Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	color := make(map[string]int, len(steps))
	var visit func(id string) *model.Error
	visit = func(id string) *model.Error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return model.NewSchemaError("steps", fmt.Sprintf("cycle detected through step %q", id))
		}
		color[id] = gray
		for _, dep := range byID[id].WaitFor {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}
