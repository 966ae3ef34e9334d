package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotImplemented is returned by agents whose processing method was never provided.
	ErrNotImplemented = errors.New("agent processing method is not implemented")

	// ErrEmptyCompletion is returned when a completion carries neither content nor a tool call.
	ErrEmptyCompletion = errors.New("empty completion: no content and no tool call")
)

// ValidationError reports a malformed configuration record or call argument.
// It is raised before any network request and is never retried.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// MissingArgumentsError lists template placeholders that had no value.
type MissingArgumentsError struct {
	Names []string
}

func (e *MissingArgumentsError) Error() string {
	return fmt.Sprintf("missing required arguments: [%s]", strings.Join(e.Names, " "))
}

// TemplateError reports malformed placeholder syntax in a template block.
type TemplateError struct {
	Text    string
	Offset  int
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error at offset %d: %s", e.Offset, e.Message)
}

// TransportError is the terminal error of the transport layer once the retry
// ceiling is exhausted. Err is the diagnostic of the last attempt.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedResultError is returned by CallAs when an agent result has a different type.
type UnexpectedResultError struct {
	Want string
	Got  any
}

func (e *UnexpectedResultError) Error() string {
	return fmt.Sprintf("unexpected agent result: want %s, got %T", e.Want, e.Got)
}
