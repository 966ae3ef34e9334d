package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
)

// Function exposes a plain Go function as a tool.
//
// Arguments are validated against the declared parameter schema before the
// function runs. Failures are reported as *ToolError:
//
//	validation failure  -> Code VALIDATION_ERROR, Err is the *core.ValidationError
//	*ToolError from fn  -> forwarded unchanged
//	other error from fn -> Code EXECUTION_ERROR
//
// A Function has no mutable state after construction and is safe for
// concurrent use.
type Function struct {
	info core.Information
	fn   core.Func
}

var _ Tool = (*Function)(nil)

// NewFunction constructs a Function from an explicit schema.
//
// Example:
//
//	sum := tool.NewFunction("calculate_sum", "Calculate the sum of two numbers",
//	  core.Parameters{
//	    Type: "object",
//	    Properties: map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    Required: []string{"a", "b"},
//	  },
//	  func(_ context.Context, args core.Args) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunction(name, description string, params core.Parameters, fn core.Func) *Function {
	info := core.NewInformation(name, description, params.Properties, params.Required...)
	if params.Type != "" {
		info.Function.Parameters.Type = params.Type
	}

	return &Function{info: info, fn: fn}
}

// NewFunctionFromStruct derives the parameter schema from the json and
// description tags of a struct.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := tool.NewFunctionFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{}, fn)
func NewFunctionFromStruct(name, description string, v any, fn core.Func) *Function {
	return NewFunction(name, description, util.ParametersFromStruct(v), fn)
}

// Name returns the tool name used in function call declarations and routing.
func (f *Function) Name() string { return f.info.Function.Name }

// Information implements core.Describer.
func (f *Function) Information() (core.Information, bool) { return f.info.Clone(), true }

// Flowing implements core.Agent.
func (f *Function) Flowing(ctx context.Context, args core.Args) (any, error) {
	name := f.Name()

	if f.fn == nil {
		return nil, &ToolError{Tool: name, Message: core.ErrNotImplemented.Error(), Code: CodeExecution, Err: core.ErrNotImplemented}
	}

	if err := util.ValidateParameters(args, f.info.Function.Parameters); err != nil {
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Err:     err,
		}
	}

	result, err := f.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}

		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Err: err}
	}

	return result, nil
}
