package model

import (
	"fmt"
	"net/http"
)

// Kind is the closed error taxonomy of spec §7. It generalizes the
// teacher's EngagementError{Err, Retryable} boolean into a closed enum that
// carries its own HTTP status mapping.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindSchemaError       Kind = "SchemaError"
	KindUnknownTool       Kind = "UnknownTool"
	KindUnknownRoute      Kind = "UnknownRoute"
	KindBadStep           Kind = "BadStep"
	KindDependencyMissing Kind = "DependencyMissing"
	KindEmitConflict      Kind = "EmitConflict"
	KindTransport         Kind = "Transport"
	KindTimeout           Kind = "Timeout"
	KindHTTPStatus        Kind = "HTTPStatus"
	KindToolError         Kind = "ToolError"
	KindCanceled          Kind = "Canceled"
)

// Error is the single error type used across the orchestrator. Construct
// one with the New* helpers below rather than building the struct literal
// directly, so every error carries a Kind from the closed taxonomy.
type Error struct {
	Kind    Kind
	Message string
	// Step and Field, when non-empty, identify the offending step/path for
	// DependencyMissing, EmitConflict, SchemaError, and ToolError.
	Step  string
	Field string
	// StatusCode carries the downstream HTTP status for KindHTTPStatus.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s (step %s)", e.Kind, e.Message, e.Step)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a Kind to the HTTP status the C7 handler returns: 4xx for
// client-classified errors (the caller or the controller produced something
// invalid), 5xx for infrastructure errors from downstream dependencies.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindSchemaError, KindUnknownTool, KindUnknownRoute, KindBadStep, KindDependencyMissing, KindEmitConflict, KindToolError:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return 499 // client closed request (nginx convention; no stdlib constant)
	case KindTransport, KindHTTPStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewInvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func NewSchemaError(field, reason string) *Error {
	return &Error{Kind: KindSchemaError, Message: reason, Field: field}
}

func NewUnknownTool(tool string) *Error {
	return &Error{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", tool)}
}

func NewUnknownRoute(route string) *Error {
	return &Error{Kind: KindUnknownRoute, Message: fmt.Sprintf("unknown route %q", route)}
}

func NewBadStep(step, reason string) *Error {
	return &Error{Kind: KindBadStep, Message: reason, Step: step}
}

func NewDependencyMissing(step, dep string) *Error {
	return &Error{Kind: KindDependencyMissing, Message: fmt.Sprintf("dependency %q not satisfied", dep), Step: step, Field: dep}
}

func NewEmitConflict(step, emit string) *Error {
	return &Error{Kind: KindEmitConflict, Message: fmt.Sprintf("emit %q already bound", emit), Step: step, Field: emit}
}

func NewTransport(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

func NewTimeout(err error) *Error {
	return &Error{Kind: KindTimeout, Message: "deadline exceeded", Err: err}
}

func NewHTTPStatus(code int, body string) *Error {
	return &Error{Kind: KindHTTPStatus, Message: body, StatusCode: code}
}

func NewToolError(tool, reason string) *Error {
	return &Error{Kind: KindToolError, Message: reason, Field: tool}
}

func NewCanceled(err error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
}

// AsError unwraps err into a *Error if possible, returning ok=false
// otherwise (e.g. for an unclassified Go error surfacing from a layer
// that has a bug — callers should treat that as KindTransport).
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
