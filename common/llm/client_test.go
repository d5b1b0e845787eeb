package llm_test

import (
	"testing"

	"eyeofterror.app/orchestrator/common/llm"
)

func TestNewRequiresModel(t *testing.T) {
	_, err := llm.New(llm.Config{BaseURL: "http://127.0.0.1:8021"}, "7b")
	if err == nil {
		t.Fatal("expected error when model is empty")
	}
}

func TestNewAcceptsBareBaseURL(t *testing.T) {
	c, err := llm.New(llm.Config{BaseURL: "http://127.0.0.1:8021", Model: "shushunya"}, "7b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Model() != "shushunya" {
		t.Fatalf("Model() = %q, want %q", c.Model(), "shushunya")
	}
}

func TestIsRetryableNilError(t *testing.T) {
	if llm.IsRetryable(t.Context(), nil) {
		t.Fatal("nil error must not be retryable")
	}
}

type schemaTarget struct {
	Name string `json:"name" jsonschema:"required"`
	N    int    `json:"n"`
}

func TestGenerateSchemaProducesObjectSchema(t *testing.T) {
	schema := llm.GenerateSchema[schemaTarget]()
	if schema == nil {
		t.Fatal("expected non-nil schema")
	}
}
