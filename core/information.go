package core

import (
	"encoding/json"
	"fmt"
)

// Information describes an agent using the OpenAI function-call format. It is
// used for display and argument validation only, never for dispatch. The same
// record doubles as a tool descriptor when an agent is exposed to a model.
type Information struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition names and documents a function and its parameters.
type FunctionDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is the JSON schema of a function's arguments.
type Parameters struct {
	Type       string         `json:"type"` // "object"
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// NewInformation builds a function-typed Information record.
func NewInformation(name, description string, properties map[string]any, required ...string) Information {
	if properties == nil {
		properties = map[string]any{}
	}

	if required == nil {
		required = []string{}
	}

	return Information{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: Parameters{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}
}

// Validate checks the record against the fixed schema: a kind discriminator,
// a named and described function, and a parameter schema whose required
// fields are all declared properties.
func (i Information) Validate() error {
	switch {
	case i.Type == "":
		return &ValidationError{Field: "type", Message: "the information must have a type"}
	case i.Function.Name == "":
		return &ValidationError{Field: "function.name", Message: "the function must have a name"}
	case i.Function.Description == "":
		return &ValidationError{Field: "function.description", Message: "the function must have a description"}
	case i.Function.Parameters.Type == "":
		return &ValidationError{Field: "function.parameters.type", Message: "the parameters must have a type"}
	case i.Function.Parameters.Properties == nil:
		return &ValidationError{Field: "function.parameters.properties", Message: "the parameters must have properties"}
	case i.Function.Parameters.Required == nil:
		return &ValidationError{Field: "function.parameters.required", Message: "the parameters must declare required fields"}
	}

	for _, name := range i.Function.Parameters.Required {
		if _, ok := i.Function.Parameters.Properties[name]; !ok {
			return &ValidationError{
				Field:   "function.parameters.required",
				Value:   name,
				Message: fmt.Sprintf("required parameter %q is not a declared property", name),
			}
		}
	}

	return nil
}

// Schema returns the parameter schema as a generic JSON-schema map.
func (i Information) Schema() map[string]any {
	required := make([]any, len(i.Function.Parameters.Required))
	for idx, r := range i.Function.Parameters.Required {
		required[idx] = r
	}

	return map[string]any{
		"type":       i.Function.Parameters.Type,
		"properties": i.Function.Parameters.Properties,
		"required":   required,
	}
}

// ParseInformation decodes and validates a JSON encoded record.
func ParseInformation(data []byte) (Information, error) {
	var info Information
	if err := json.Unmarshal(data, &info); err != nil {
		return Information{}, &ValidationError{Field: "information", Message: err.Error()}
	}

	if err := info.Validate(); err != nil {
		return Information{}, err
	}

	return info, nil
}

// Clone returns a deep copy of the record.
func (i Information) Clone() Information {
	out := i
	out.Function.Parameters.Properties = cloneMap(i.Function.Parameters.Properties)
	if i.Function.Parameters.Required != nil {
		out.Function.Parameters.Required = append([]string{}, i.Function.Parameters.Required...)
	}
	return out
}

// CloneInformation deep-copies a list of records into a fresh slice.
func CloneInformation(in []Information) []Information {
	out := make([]Information, len(in))
	for idx := range in {
		out[idx] = in[idx].Clone()
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		return v
	}
}
