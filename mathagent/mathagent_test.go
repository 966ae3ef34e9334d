package mathagent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/testutil"
	"github.com/hupe1980/xyz/transport"
)

func newClient(steps ...testutil.Step) (*testutil.ScriptedBackend, *transport.Client) {
	b := testutil.NewScriptedBackend(steps...)
	return b, transport.New(b, func(o *transport.Options) {
		o.Interval = time.Millisecond
		o.MaxAttempts = 2
	})
}

func TestTemplates(t *testing.T) {
	all, err := Templates()
	require.NoError(t, err)

	assert.Equal(t, []string{"answer_only", "evaluation", "solution", "solution_concise"}, TemplateNames())
	assert.Equal(t, []string{"question"}, all[TemplateSolution].Placeholders())
	assert.Equal(t, []string{"question"}, all[TemplateSolutionConcise].Placeholders())
	assert.Equal(t, []string{"question"}, all[TemplateAnswerOnly].Placeholders())
	assert.Equal(t, []string{"prediction", "question", "true"}, all[TemplateEvaluation].Placeholders())

	_, err = Prompt("nope")
	assert.ErrorContains(t, err, "unknown prompt template")
}

func TestTemplates_EscapedBracesSurvive(t *testing.T) {
	tmpl, err := Prompt(TemplateEvaluation)
	require.NoError(t, err)

	msgs, err := tmpl.Resolve(map[string]any{"question": "Q", "true": "T", "prediction": "P"})
	require.NoError(t, err)

	system := msgs[0].Content.Text
	assert.Contains(t, system, `\frac{\sqrt{6}-\sqrt{2}}{2}`)
	assert.Contains(t, system, "The question is provided as: Q, the correct answer is provided as: T.")
	assert.Equal(t, "The student answer is P.", msgs[1].Content.Text)
}

func TestExtractFencedJSON(t *testing.T) {
	text := "Reasoning...\n```json\n{\n  \"answer\": \"4\"\n}\n```\nand ```json {\"answer\": 5} ```"

	block, ok := ExtractFencedJSON(text)
	require.True(t, ok)
	assert.Equal(t, "{\n  \"answer\": \"4\"\n}", block)

	_, ok = ExtractFencedJSON("no block here")
	assert.False(t, ok)
}

func TestSolver_ExtractsFencedBlock(t *testing.T) {
	b, client := newClient(testutil.Step{Completion: testutil.TextCompletion("Work...\n```json\n{\"answer\": \"4\"}\n```")})
	s, err := NewSolver(client)
	require.NoError(t, err)

	out, err := core.Call(context.Background(), s, core.Args{"question": "What is 2+2?"})
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "4"}`, out)

	req := b.LastRequest()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "Here is the question: What is 2+2?.", req.Messages[1].Content.Text)
	assert.Equal(t, 0.8, req.Params["top_p"])
	assert.Equal(t, 0.0, req.Params["temperature"])
}

func TestSolver_FallsBackToRawText(t *testing.T) {
	_, client := newClient(testutil.Step{Completion: testutil.TextCompletion("The answer is 4.")})
	s, err := NewSolver(client, func(o *SolverOptions) { o.Template = TemplateAnswerOnly })
	require.NoError(t, err)

	out, err := s.Solve(context.Background(), "2+2")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", out)
}

func TestSolver_ValidatesArguments(t *testing.T) {
	b, client := newClient(testutil.Step{Completion: testutil.TextCompletion("x")})
	s, err := NewSolver(client)
	require.NoError(t, err)

	_, err = core.Call(context.Background(), s, core.Args{"question": 42})

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, b.Attempts())
}

func TestSolver_UnknownTemplate(t *testing.T) {
	_, client := newClient()
	_, err := NewSolver(client, func(o *SolverOptions) { o.Template = "missing" })
	assert.Error(t, err)
}

func TestSolver_Structure(t *testing.T) {
	_, client := newClient()
	s, err := NewSolver(client)
	require.NoError(t, err)

	out := core.Structure(s)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Agent(name=math_solver, description=Solves a math problem"))
	assert.Contains(t, lines[0], `"required":["question"]`)
	assert.True(t, strings.HasPrefix(lines[1], "[SubAgent: llm: \tAgent(name=*agent.LLMAgent"))

	assert.Equal(t, out, fmt.Sprint(s))

	e, err := NewEvaluator(client)
	require.NoError(t, err)
	assert.Equal(t, core.Structure(e), fmt.Sprint(e))
}

func TestEvaluator_Grade(t *testing.T) {
	b, client := newClient(
		testutil.Step{Completion: testutil.TextCompletion("1")},
		testutil.Step{Completion: testutil.TextCompletion(" '0' ")},
		testutil.Step{Completion: testutil.TextCompletion("maybe")},
	)
	e, err := NewEvaluator(client)
	require.NoError(t, err)

	ok, err := e.Grade(context.Background(), "2+2", "4", "4")
	require.NoError(t, err)
	assert.True(t, ok)

	req := b.LastRequest()
	assert.Contains(t, req.Messages[0].Content.Text, "The question is provided as: 2+2, the correct answer is provided as: 4.")
	assert.Equal(t, 2096, req.Params["max_tokens"])

	ok, err = e.Grade(context.Background(), "2+2", "4", "5")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Grade(context.Background(), "2+2", "4", "?")
	var gerr *GradeError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "maybe", gerr.Raw)
}

func TestEvaluator_Flowing(t *testing.T) {
	_, client := newClient(testutil.Step{Completion: testutil.TextCompletion("1")})
	e, err := NewEvaluator(client)
	require.NoError(t, err)

	out, err := core.Call(context.Background(), e, core.Args{"question": "q", "true": "4", "prediction": "4"})
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	_, err = core.Call(context.Background(), e, core.Args{"question": "q", "true": "4"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prediction", verr.Field)
}

func TestParseGrade(t *testing.T) {
	for raw, want := range map[string]bool{"1": true, "0": false, "`1`": true, "\"0\"\n": false} {
		got, err := ParseGrade(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseGrade("10")
	assert.Error(t, err)
}
