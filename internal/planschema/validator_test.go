package planschema_test

import (
	"eyeofterror.app/orchestrator/internal/model"
	"eyeofterror.app/orchestrator/internal/planschema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validPlan() *model.Plan {
	return &model.Plan{
		Version: model.PlanVersion,
		Steps: []model.Step{
			{
				ID:   "a",
				Kind: model.StepKindTool,
				Call: &model.ToolCall{Tool: model.ToolTTSSpeak, Args: map[string]any{"text": "hi"}},
				Emit: "speech",
			},
		},
		Criteria: model.Criteria{Deliver: []string{"speech"}},
	}
}

var _ = Describe("Decode", func() {
	It("accepts a well-formed plan", func() {
		raw := []byte(`{
			"version": "1.0",
			"route_parts": {},
			"steps": [
				{"id": "a", "kind": "tool", "call": {"tool": "tts.speak", "args": {"text": "hi"}}, "wait_for": [], "emit": "speech"}
			],
			"criteria": {"success_when": [], "deliver": ["speech"]}
		}`)
		plan, err := planschema.Decode(raw)
		Expect(err).To(BeNil())
		Expect(plan.Steps).To(HaveLen(1))
	})

	It("rejects unknown top-level keys", func() {
		raw := []byte(`{"version": "1.0", "steps": [], "criteria": {}, "bogus": true}`)
		_, err := planschema.Decode(raw)
		Expect(err).NotTo(BeNil())
		Expect(err.Kind).To(Equal(model.KindSchemaError))
	})

	It("rejects malformed JSON", func() {
		_, err := planschema.Decode([]byte(`{not json`))
		Expect(err).NotTo(BeNil())
		Expect(err.Kind).To(Equal(model.KindSchemaError))
	})
})

var _ = Describe("Validate", func() {
	It("accepts a valid plan", func() {
		Expect(planschema.Validate(validPlan())).To(BeNil())
	})

	It("rejects a version other than 1.0", func() {
		p := validPlan()
		p.Version = "2.0"
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
		Expect(err.Field).To(Equal("version"))
	})

	It("rejects duplicate step ids", func() {
		p := validPlan()
		p.Steps = append(p.Steps, p.Steps[0])
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
	})

	It("rejects kind=tool with route present", func() {
		p := validPlan()
		p.Steps[0].Route = &model.Route{Name: model.ModelName20B, Purpose: model.PurposeChat}
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
	})

	It("rejects kind=model with call present", func() {
		p := validPlan()
		p.Steps[0].Kind = model.StepKindModel
		p.Steps[0].Route = &model.Route{Name: model.ModelName20B, Purpose: model.PurposeChat}
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
	})

	It("rejects an unknown tool name", func() {
		p := validPlan()
		p.Steps[0].Call.Tool = "foo.bar"
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
		Expect(err.Kind).To(Equal(model.KindSchemaError))
	})

	It("rejects a cycle", func() {
		p := validPlan()
		p.Steps = []model.Step{
			{ID: "a", Kind: model.StepKindTool, Call: &model.ToolCall{Tool: model.ToolRenderDisplay, Args: map[string]any{"text": "x"}}, WaitFor: []string{"b"}},
			{ID: "b", Kind: model.StepKindTool, Call: &model.ToolCall{Tool: model.ToolRenderDisplay, Args: map[string]any{"text": "x"}}, WaitFor: []string{"a"}},
		}
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
	})

	It("rejects two steps emitting the same name", func() {
		p := validPlan()
		second := p.Steps[0]
		second.ID = "b"
		p.Steps = append(p.Steps, second)
		err := planschema.Validate(p)
		Expect(err).NotTo(BeNil())
	})
})
