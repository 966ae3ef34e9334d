package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the parts of a multi-part message.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Part is one element of a multi-part message.
type Part struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart returns a text part.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// ImagePart returns an image reference part.
func ImagePart(url string) Part { return Part{Type: PartImage, ImageURL: &ImageURL{URL: url}} }

// Content is either a single text block or an ordered list of parts.
// It encodes to a JSON string in the first case and to an array otherwise.
type Content struct {
	Text  string
	Parts []Part
}

// Text returns single-block content.
func Text(s string) Content { return Content{Text: s} }

// Parts returns multi-part content.
func Parts(parts ...Part) Content { return Content{Parts: parts} }

// IsMultipart reports whether the content is a list of parts.
func (c Content) IsMultipart() bool { return c.Parts != nil }

// String flattens the content into plain text, joining text parts.
func (c Content) String() string {
	if !c.IsMultipart() {
		return c.Text
	}

	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	if c.Parts == nil {
		return c
	}

	parts := make([]Part, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = p
		if p.ImageURL != nil {
			img := *p.ImageURL
			parts[i].ImageURL = &img
		}
	}
	return Content{Text: c.Text, Parts: parts}
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsMultipart() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case data[0] == '[':
		parts := []Part{}
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// Message is one role-tagged fragment of a request.
type Message struct {
	Role       Role       `json:"role"`
	Content    Content    `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewMessage returns a text message.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Content: Text(text)}
}

// Clone returns a deep copy suitable for isolation across component boundaries.
func (m Message) Clone() Message {
	out := m
	out.Content = m.Content.Clone()
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// CloneMessages returns deep copies of all messages in a fresh slice.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// FunctionCall describes the function a model proposed to invoke.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON encoded arguments
}

// ToolCall is a tool invocation proposed by a model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // "function"
	Function FunctionCall `json:"function"`
}
