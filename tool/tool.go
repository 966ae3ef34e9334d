// Package tool lets a model call back into Go code. A tool is an agent that
// describes itself with an Information record: the record is offered to the
// model, and the function call the model answers with is dispatched back to
// the agent by a Set.
package tool

import (
	"fmt"

	"github.com/hupe1980/xyz/core"
)

// Error codes of ToolError.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeValidation       = "VALIDATION_ERROR"
	CodeExecution        = "EXECUTION_ERROR"
)

// Tool is an agent that can be offered to a model.
//
// Any agent carrying an Information record qualifies, so composite agents
// such as the math solver can be exposed as tools unchanged.
type Tool interface {
	core.Agent
	core.Describer
}

// ToolError represents errors that occur during tool dispatch or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Err     error  `json:"-"`                 // Underlying error
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
