package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/xyz/core"
)

type plainAgent struct{}

func (plainAgent) Flowing(context.Context, core.Args) (any, error) { return "plain", nil }

func echo(_ context.Context, args core.Args) (any, error) { return args["question"], nil }

func questionInfo(name string) core.Information {
	return core.NewInformation(name, "Answers a question.",
		map[string]any{"question": map[string]any{"type": "string"}}, "question")
}

func TestBaseAgent_SetInformation(t *testing.T) {
	b := NewBaseAgent("solver")

	_, ok := b.Information()
	assert.False(t, ok)

	require.NoError(t, b.SetInformation(questionInfo("solver")))
	info, ok := b.Information()
	require.True(t, ok)
	assert.Equal(t, "solver", info.Function.Name)

	bad := questionInfo("solver")
	bad.Function.Description = ""
	err := b.SetInformation(bad)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "function.description", verr.Field)

	info, _ = b.Information()
	assert.Equal(t, "Answers a question.", info.Function.Description, "previous record must be kept")
}

func TestBaseAgent_InformationIsCopied(t *testing.T) {
	b := NewBaseAgent("solver")
	require.NoError(t, b.SetInformation(questionInfo("solver")))

	info, _ := b.Information()
	info.Function.Parameters.Properties["question"] = "tampered"

	again, _ := b.Information()
	assert.Equal(t, map[string]any{"type": "string"}, again.Function.Parameters.Properties["question"])
}

func TestBaseAgent_ValidateArgs(t *testing.T) {
	b := NewBaseAgent("solver")
	require.NoError(t, b.ValidateArgs(core.Args{"anything": 1}))

	require.NoError(t, b.SetInformation(questionInfo("solver")))
	require.NoError(t, b.ValidateArgs(core.Args{"question": "2+2"}))

	var verr *core.ValidationError
	require.ErrorAs(t, b.ValidateArgs(core.Args{}), &verr)
	assert.Equal(t, "question", verr.Field)
}

func TestBaseAgent_AddSubAgent(t *testing.T) {
	parent := NewBaseAgent("parent")
	first, err := NewFuncAgent("first", echo)
	require.NoError(t, err)

	require.NoError(t, parent.AddSubAgent("first", first))
	require.NoError(t, parent.AddSubAgent("plain", plainAgent{}))

	subs := parent.SubAgents()
	require.Len(t, subs, 2)
	assert.Equal(t, "first", subs[0].Key)
	assert.Equal(t, "plain", subs[1].Key)
	assert.Equal(t, "parent", first.ParentName())

	got, ok := parent.SubAgent("first")
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = parent.SubAgent("missing")
	assert.False(t, ok)
}

func TestBaseAgent_AddSubAgentErrors(t *testing.T) {
	parent := NewBaseAgent("parent")
	other := NewBaseAgent("other")
	child, err := NewFuncAgent("child", echo)
	require.NoError(t, err)

	assert.Error(t, parent.AddSubAgent("", child))
	assert.Error(t, parent.AddSubAgent("nil", nil))

	require.NoError(t, parent.AddSubAgent("child", child))
	assert.ErrorContains(t, other.AddSubAgent("child", child), "already owned")

	second, err := NewFuncAgent("second", echo)
	require.NoError(t, err)
	assert.ErrorContains(t, parent.AddSubAgent("child", second), "already registered")
	assert.Equal(t, "", second.ParentName(), "failed registration must release the child")

	self, err := NewFuncAgent("self", echo)
	require.NoError(t, err)
	assert.ErrorContains(t, self.AddSubAgent("me", self), "cannot own itself")
}

func TestBaseAgent_AddSubAgentRejectsCycles(t *testing.T) {
	a, err := NewFuncAgent("a", echo)
	require.NoError(t, err)
	b, err := NewFuncAgent("b", echo)
	require.NoError(t, err)
	c, err := NewFuncAgent("c", echo)
	require.NoError(t, err)

	require.NoError(t, a.AddSubAgent("b", b))
	require.NoError(t, b.AddSubAgent("c", c))

	assert.ErrorContains(t, b.AddSubAgent("a", a), `agent "a" is an ancestor of "b"`)
	assert.ErrorContains(t, c.AddSubAgent("a", a), `agent "a" is an ancestor of "c"`)
	assert.Empty(t, c.SubAgents())
	assert.Equal(t, "", a.ParentName())

	assert.Equal(t, 2, strings.Count(core.Structure(a), "[SubAgent:"))
}

func TestBaseAgent_SameParentMayReuseChildUnderNewKey(t *testing.T) {
	parent := NewBaseAgent("parent")
	child, err := NewFuncAgent("child", echo)
	require.NoError(t, err)

	require.NoError(t, parent.AddSubAgent("a", child))
	require.NoError(t, parent.AddSubAgent("b", child))
	assert.Len(t, parent.SubAgents(), 2)
}

func TestFuncAgent(t *testing.T) {
	info := questionInfo("echo")
	a, err := NewFuncAgent("echo", echo, func(o *FuncAgentOptions) { o.Information = &info })
	require.NoError(t, err)

	out, err := core.Call(context.Background(), a, core.Args{"question": "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "2+2", out)

	_, err = core.Call(context.Background(), a, core.Args{"question": 4})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = (&FuncAgent{}).Flowing(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrNotImplemented)
}

func TestFuncAgent_InvalidInformation(t *testing.T) {
	info := core.Information{}
	_, err := NewFuncAgent("echo", echo, func(o *FuncAgentOptions) { o.Information = &info })

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestStructure_NestedAgents(t *testing.T) {
	root, err := NewFuncAgent("root", echo, func(o *FuncAgentOptions) {
		info := core.NewInformation("root", "Root agent.", nil)
		o.Information = &info
	})
	require.NoError(t, err)

	leaf, err := NewFuncAgent("leaf", echo, func(o *FuncAgentOptions) {
		info := core.NewInformation("leaf", "Leaf agent.", nil)
		o.Information = &info
	})
	require.NoError(t, err)
	require.NoError(t, root.AddSubAgent("helper", leaf))

	want := "Agent(name=root, description=Root agent., parameters={\"type\":\"object\",\"properties\":{},\"required\":[]})\n" +
		"[SubAgent: helper: \tAgent(name=leaf, description=Leaf agent., parameters={\"type\":\"object\",\"properties\":{},\"required\":[]})]"
	assert.Equal(t, want, core.Structure(root))
	assert.Equal(t, want, root.String())
}
