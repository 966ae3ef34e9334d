package agent

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/testutil"
	"github.com/hupe1980/xyz/template"
	"github.com/hupe1980/xyz/transport"
)

// MockCompleter records calls and returns canned results.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Run(ctx context.Context, messages []core.Message, optFns ...func(o *transport.CallOptions)) (*transport.Completion, error) {
	var call transport.CallOptions
	for _, fn := range optFns {
		fn(&call)
	}
	args := m.Called(ctx, messages, call)
	resp, _ := args.Get(0).(*transport.Completion)
	return resp, args.Error(1)
}

func (m *MockCompleter) StreamRun(ctx context.Context, messages []core.Message, optFns ...func(o *transport.CallOptions)) iter.Seq2[string, error] {
	var call transport.CallOptions
	for _, fn := range optFns {
		fn(&call)
	}
	args := m.Called(ctx, messages, call)
	return args.Get(0).(iter.Seq2[string, error])
}

func solveTemplate() template.Template {
	return template.Must(template.System("You are a calculator."), template.User("Solve {question}."))
}

func scriptedClient(steps ...testutil.Step) (*testutil.ScriptedBackend, *transport.Client) {
	b := testutil.NewScriptedBackend(steps...)
	return b, transport.New(b, func(o *transport.Options) {
		o.Interval = time.Millisecond
		o.MaxAttempts = 3
	})
}

func TestLLMAgent_ResolvesTemplateAndReturnsContent(t *testing.T) {
	b, client := scriptedClient(testutil.Step{Completion: testutil.TextCompletion("4")})
	a, err := NewLLMAgent("calc", solveTemplate(), client)
	require.NoError(t, err)

	out, err := core.Call(context.Background(), a, core.Args{"question": "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "4", out)

	req := b.LastRequest()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "Solve 2+2.", req.Messages[1].Content.Text)
	assert.Equal(t, core.RoleUser, req.Messages[1].Role)
	assert.Equal(t, transport.ToolChoiceNone, req.ToolChoice)
}

func TestLLMAgent_ReturnsFunctionCallWhenContentIsNull(t *testing.T) {
	_, client := scriptedClient(testutil.Step{Completion: testutil.ToolCallCompletion("lookup", `{"city":"Paris"}`)})
	a, err := NewLLMAgent("weather", template.Must(template.User("Weather in {city}?")), client)
	require.NoError(t, err)

	lookup := core.NewInformation("lookup", "Look up a city.", map[string]any{"city": map[string]any{"type": "string"}}, "city")

	out, err := core.Call(context.Background(), a, core.Args{"city": "Paris", ArgTools: []core.Information{lookup}})
	require.NoError(t, err)
	assert.Equal(t, core.FunctionCall{Name: "lookup", Arguments: `{"city":"Paris"}`}, out)
}

func TestLLMAgent_EmptyCompletion(t *testing.T) {
	_, client := scriptedClient(testutil.Step{Completion: &transport.Completion{Choices: []transport.Choice{{}}}})
	a, err := NewLLMAgent("calc", solveTemplate(), client)
	require.NoError(t, err)

	_, err = core.Call(context.Background(), a, core.Args{"question": "1"})
	assert.ErrorIs(t, err, core.ErrEmptyCompletion)

	_, err = Extract(&transport.Completion{})
	assert.ErrorIs(t, err, core.ErrEmptyCompletion)
}

func TestLLMAgent_OriginalResponse(t *testing.T) {
	completion := testutil.TextCompletion("4")
	_, client := scriptedClient(testutil.Step{Completion: completion})
	a, err := NewLLMAgent("calc", solveTemplate(), client, func(o *LLMAgentOptions) { o.OriginalResponse = true })
	require.NoError(t, err)

	out, err := core.CallAs[*transport.Completion](context.Background(), a, core.Args{"question": "2+2"})
	require.NoError(t, err)
	assert.Same(t, completion, out)
}

func TestLLMAgent_Streaming(t *testing.T) {
	_, client := scriptedClient(testutil.Step{Deltas: testutil.Deltas("a", "b")})
	a, err := NewLLMAgent("calc", solveTemplate(), client, func(o *LLMAgentOptions) { o.Stream = true })
	require.NoError(t, err)

	seq, err := core.CallAs[iter.Seq2[string, error]](context.Background(), a, core.Args{"question": "2+2"})
	require.NoError(t, err)

	var got []string
	for text, err := range seq {
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLLMAgent_StreamingDoesNotSendTools(t *testing.T) {
	m := new(MockCompleter)
	empty := iter.Seq2[string, error](func(func(string, error) bool) {})
	m.On("StreamRun", mock.Anything, mock.Anything, mock.MatchedBy(func(c transport.CallOptions) bool {
		return len(c.Tools) == 0
	})).Return(empty)

	a, err := NewLLMAgent("calc", solveTemplate(), m, func(o *LLMAgentOptions) { o.Stream = true })
	require.NoError(t, err)

	lookup := core.NewInformation("lookup", "Look up.", nil)
	_, err = core.Call(context.Background(), a, core.Args{"question": "q", ArgTools: []core.Information{lookup}})
	require.NoError(t, err)

	dbg, ok := a.Debug()
	require.True(t, ok)
	assert.Equal(t, []core.Information{lookup}, dbg.Tools)
	m.AssertExpectations(t)
}

func TestLLMAgent_MissingPlaceholderFailsBeforeDispatch(t *testing.T) {
	m := new(MockCompleter)
	a, err := NewLLMAgent("calc", solveTemplate(), m)
	require.NoError(t, err)

	_, err = core.Call(context.Background(), a, core.Args{"other": 1})

	var merr *core.MissingArgumentsError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"question"}, merr.Names)
	m.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestLLMAgent_ExplicitMessagesImagesAndParams(t *testing.T) {
	m := new(MockCompleter)
	history := []core.Message{core.NewMessage(core.RoleUser, "earlier"), core.NewMessage(core.RoleAssistant, "noted")}

	m.On("Run", mock.Anything, mock.MatchedBy(func(msgs []core.Message) bool {
		return len(msgs) == 4 && msgs[0].Content.Text == "earlier" && msgs[3].Content.Text == "Solve 3*3."
	}), mock.MatchedBy(func(c transport.CallOptions) bool {
		return len(c.Images) == 1 && c.Images[0] == "https://x/img.png" && c.Params["temperature"] == 0.0
	})).Return(testutil.TextCompletion("9"), nil)

	a, err := NewLLMAgent("calc", solveTemplate(), m, func(o *LLMAgentOptions) {
		o.Params = map[string]any{"temperature": 0.0}
	})
	require.NoError(t, err)

	out, err := core.Call(context.Background(), a, core.Args{
		"question":  "3*3",
		ArgMessages: history,
		ArgImages:   []any{"https://x/img.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "9", out)
	assert.Len(t, history, 2, "caller slice must not grow")
	m.AssertExpectations(t)
}

func TestLLMAgent_DebugSnapshotIsIsolated(t *testing.T) {
	_, client := scriptedClient(testutil.Step{Completion: testutil.TextCompletion("ok")})
	a, err := NewLLMAgent("calc", solveTemplate(), client)
	require.NoError(t, err)

	_, ok := a.Debug()
	assert.False(t, ok)

	_, err = a.Invoke(context.Background(), Input{Values: map[string]any{"question": "1+1"}})
	require.NoError(t, err)

	dbg, ok := a.Debug()
	require.True(t, ok)
	require.Len(t, dbg.Messages, 2)
	dbg.Messages[1].Content.Text = "tampered"

	again, _ := a.Debug()
	assert.Equal(t, "Solve 1+1.", again.Messages[1].Content.Text)

	_, err = a.Invoke(context.Background(), Input{Values: map[string]any{"question": "2+2"}})
	require.NoError(t, err)
	latest, _ := a.Debug()
	assert.Equal(t, "Solve 2+2.", latest.Messages[1].Content.Text)
}

func TestLLMAgent_ReservedArgumentTypes(t *testing.T) {
	a, err := NewLLMAgent("calc", solveTemplate(), new(MockCompleter))
	require.NoError(t, err)

	for key, value := range map[string]any{
		ArgMessages: "not messages",
		ArgTools:    42,
		ArgImages:   []any{1},
	} {
		_, err := core.Call(context.Background(), a, core.Args{"question": "q", key: value})

		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr, key)
		assert.Equal(t, key, verr.Field)
	}
}

func TestLLMAgent_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("unavailable")
	b, client := scriptedClient(testutil.Step{Err: boom})
	a, err := NewLLMAgent("calc", solveTemplate(), client)
	require.NoError(t, err)

	_, err = core.Call(context.Background(), a, core.Args{"question": "q"})

	var terr *core.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 3, b.Attempts())
}

func TestNewLLMAgent_Errors(t *testing.T) {
	_, err := NewLLMAgent("calc", solveTemplate(), nil)
	assert.Error(t, err)

	info := core.NewInformation("calc", "", nil)
	_, err = NewLLMAgent("calc", solveTemplate(), new(MockCompleter), func(o *LLMAgentOptions) { o.Information = &info })

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}
