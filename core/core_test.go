package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	echo := Func(func(_ context.Context, args Args) (any, error) { return args["x"], nil })

	out, err := Call(context.Background(), echo, Args{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	_, err = Call(context.Background(), Unimplemented{}, nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestCallAs(t *testing.T) {
	text := Func(func(context.Context, Args) (any, error) { return "hi", nil })

	s, err := CallAs[string](context.Background(), text, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	_, err = CallAs[FunctionCall](context.Background(), text, nil)
	var uerr *UnexpectedResultError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "core.FunctionCall", uerr.Want)
	assert.Equal(t, "unexpected agent result: want core.FunctionCall, got string", err.Error())
}

func TestArgs(t *testing.T) {
	args := Args{"q": "2+2", "n": 3}

	s, err := args.String("q")
	require.NoError(t, err)
	assert.Equal(t, "2+2", s)

	var verr *ValidationError
	_, err = args.String("n")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "n", verr.Field)

	_, err = args.String("missing")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "missing", verr.Field)

	clone := args.Clone()
	clone["q"] = "changed"
	assert.Equal(t, "2+2", args["q"])
}

func TestInformation_Validate(t *testing.T) {
	valid := NewInformation("solver", "Solves things.", map[string]any{"question": map[string]any{"type": "string"}}, "question")
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(i *Information)
		field  string
	}{
		{"no type", func(i *Information) { i.Type = "" }, "type"},
		{"no name", func(i *Information) { i.Function.Name = "" }, "function.name"},
		{"no description", func(i *Information) { i.Function.Description = "" }, "function.description"},
		{"no parameter type", func(i *Information) { i.Function.Parameters.Type = "" }, "function.parameters.type"},
		{"no properties", func(i *Information) { i.Function.Parameters.Properties = nil }, "function.parameters.properties"},
		{"no required list", func(i *Information) { i.Function.Parameters.Required = nil }, "function.parameters.required"},
		{"undeclared required", func(i *Information) { i.Function.Parameters.Required = []string{"other"} }, "function.parameters.required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := valid.Clone()
			tt.mutate(&info)

			var verr *ValidationError
			require.ErrorAs(t, info.Validate(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestInformation_CloneIsDeep(t *testing.T) {
	orig := NewInformation("a", "b", map[string]any{"x": map[string]any{"type": "string", "enum": []any{"p"}}}, "x")

	clone := orig.Clone()
	clone.Function.Parameters.Properties["x"].(map[string]any)["type"] = "number"
	clone.Function.Parameters.Properties["x"].(map[string]any)["enum"].([]any)[0] = "q"
	clone.Function.Parameters.Required[0] = "y"

	x := orig.Function.Parameters.Properties["x"].(map[string]any)
	assert.Equal(t, "string", x["type"])
	assert.Equal(t, []any{"p"}, x["enum"])
	assert.Equal(t, []string{"x"}, orig.Function.Parameters.Required)
}

func TestParseInformation(t *testing.T) {
	info, err := ParseInformation([]byte(`{
		"type": "function",
		"function": {
			"name": "lookup",
			"description": "Look up a city.",
			"parameters": {"type": "object", "properties": {"city": {"type": "string"}}, "required": ["city"]}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "lookup", info.Function.Name)
	assert.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
		"required":   []any{"city"},
	}, info.Schema())

	var verr *ValidationError
	_, err = ParseInformation([]byte(`{"type": "function", "function": {"name": "x"}}`))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "function.description", verr.Field)

	_, err = ParseInformation([]byte(`not json`))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "information", verr.Field)
}

func TestContent_JSON(t *testing.T) {
	text, err := json.Marshal(NewMessage(RoleUser, "hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "user", "content": "hi"}`, string(text))

	multi, err := json.Marshal(Message{Role: RoleUser, Content: Parts(TextPart("look"), ImagePart("https://x/a.png"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "user", "content": [
		{"type": "text", "text": "look"},
		{"type": "image_url", "image_url": {"url": "https://x/a.png"}}
	]}`, string(multi))

	var m Message
	require.NoError(t, json.Unmarshal(multi, &m))
	assert.True(t, m.Content.IsMultipart())
	assert.Equal(t, "look", m.Content.String())
	assert.Equal(t, "https://x/a.png", m.Content.Parts[1].ImageURL.URL)

	require.NoError(t, json.Unmarshal([]byte(`{"role": "assistant", "content": null}`), &m))
	assert.Equal(t, Content{}, m.Content)

	assert.Error(t, json.Unmarshal([]byte(`{"role": "user", "content": 5}`), &m))
}

func TestMessage_CloneIsDeep(t *testing.T) {
	orig := []Message{{
		Role:      RoleAssistant,
		Content:   Parts(ImagePart("https://x/a.png")),
		ToolCalls: []ToolCall{{ID: "1", Type: "function", Function: FunctionCall{Name: "f"}}},
	}}

	clone := CloneMessages(orig)
	clone[0].Content.Parts[0].ImageURL.URL = "changed"
	clone[0].ToolCalls[0].Function.Name = "g"

	assert.Equal(t, "https://x/a.png", orig[0].Content.Parts[0].ImageURL.URL)
	assert.Equal(t, "f", orig[0].ToolCalls[0].Function.Name)
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "missing required arguments: [a b]", (&MissingArgumentsError{Names: []string{"a", "b"}}).Error())
	assert.Equal(t, "validation error for field 'x': bad", (&ValidationError{Field: "x", Message: "bad"}).Error())
	assert.Equal(t, "template error at offset 3: unbalanced brace", (&TemplateError{Offset: 3, Message: "unbalanced brace"}).Error())
	assert.Equal(t, "request failed after 10 attempts: EOF", (&TransportError{Attempts: 10, Err: errString("EOF")}).Error())
}

type errString string

func (e errString) Error() string { return string(e) }

type describedAgent struct {
	info Information
	subs []SubAgent
}

func (d *describedAgent) Flowing(context.Context, Args) (any, error) { return nil, nil }
func (d *describedAgent) Information() (Information, bool) { return d.info, true }
func (d *describedAgent) SubAgents() []SubAgent { return d.subs }

func TestStructure(t *testing.T) {
	leaf := &describedAgent{info: NewInformation("leaf", "A leaf.", nil)}
	root := &describedAgent{
		info: NewInformation("root", "The root.", nil),
		subs: []SubAgent{{Key: "child", Agent: leaf}, {Key: "plain", Agent: Unimplemented{}}},
	}

	want := "Agent(name=root, description=The root., parameters={\"type\":\"object\",\"properties\":{},\"required\":[]})\n" +
		"[SubAgent: child: \tAgent(name=leaf, description=A leaf., parameters={\"type\":\"object\",\"properties\":{},\"required\":[]})]\n" +
		"[SubAgent: plain: \tAgent(name=core.Unimplemented, description=, parameters={})]"

	assert.Equal(t, want, Structure(root))
}
