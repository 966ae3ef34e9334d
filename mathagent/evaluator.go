package mathagent

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/xyz/agent"
	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
	"github.com/hupe1980/xyz/logging"
)

// GradeError is returned when a grader reply is neither "1" nor "0".
type GradeError struct {
	Raw string
}

func (e *GradeError) Error() string {
	return fmt.Sprintf("unparseable grade %q", e.Raw)
}

// EvaluatorOptions configure an Evaluator.
type EvaluatorOptions struct {
	Params map[string]any
	Logger logging.Logger
}

type evaluateParams struct {
	Question   string `json:"question" description:"The original math problem."`
	True       string `json:"true" description:"The reference answer."`
	Prediction string `json:"prediction" description:"The answer to grade."`
}

// Evaluator asks a model whether a prediction matches the reference answer.
type Evaluator struct {
	agent.BaseAgent
	llm *agent.LLMAgent
}

// NewEvaluator creates an Evaluator dispatching through client.
func NewEvaluator(client agent.Completer, optFns ...func(o *EvaluatorOptions)) (*Evaluator, error) {
	opts := EvaluatorOptions{
		Params: map[string]any{"temperature": 0.0, "top_p": 0.8, "max_tokens": 2096},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	tmpl, err := Prompt(TemplateEvaluation)
	if err != nil {
		return nil, err
	}

	llm, err := agent.NewLLMAgent(TemplateEvaluation, tmpl, client, func(o *agent.LLMAgentOptions) {
		o.Params = maps.Clone(opts.Params)
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	e := &Evaluator{BaseAgent: agent.NewBaseAgent("math_evaluator"), llm: llm}

	if err := e.SetInformation(core.Information{
		Type: "function",
		Function: core.FunctionDefinition{
			Name:        "math_evaluator",
			Description: "Grades a predicted answer against the reference answer with 1 or 0.",
			Parameters:  util.ParametersFromStruct(evaluateParams{}),
		},
	}); err != nil {
		return nil, err
	}

	if err := e.AddSubAgent("llm", llm); err != nil {
		return nil, err
	}

	return e, nil
}

// String renders the agent tree.
func (e *Evaluator) String() string { return core.Structure(e) }

// Flowing implements core.Agent. It expects "question", "true" and
// "prediction" and returns the raw grade string.
func (e *Evaluator) Flowing(ctx context.Context, args core.Args) (any, error) {
	if err := e.ValidateArgs(args); err != nil {
		return nil, err
	}

	var vals [3]string
	for i, key := range []string{"question", "true", "prediction"} {
		v, err := args.String(key)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	return e.Evaluate(ctx, vals[0], vals[1], vals[2])
}

// Evaluate returns the model's raw grade.
func (e *Evaluator) Evaluate(ctx context.Context, question, truth, prediction string) (string, error) {
	return core.CallAs[string](ctx, e.llm, core.Args{
		"question":   question,
		"true":       truth,
		"prediction": prediction,
	})
}

// Grade evaluates and parses the grade.
func (e *Evaluator) Grade(ctx context.Context, question, truth, prediction string) (bool, error) {
	raw, err := e.Evaluate(ctx, question, truth, prediction)
	if err != nil {
		return false, err
	}
	return ParseGrade(raw)
}

// ParseGrade maps "1" to true and "0" to false. Surrounding whitespace,
// quotes and code fences are ignored.
func ParseGrade(raw string) (bool, error) {
	s := strings.Trim(strings.TrimSpace(raw), "`'\" \n\t")

	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, &GradeError{Raw: raw}
	}
}
