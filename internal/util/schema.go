package util

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/hupe1980/xyz/core"
)

// ParametersFromStruct derives an Information parameter schema from the
// exported fields of a struct. The json tag names the property, a
// description tag documents it and fields without omitempty are required.
func ParametersFromStruct(v any) core.Parameters {
	params := core.Parameters{
		Type:       "object",
		Properties: map[string]any{},
		Required:   []string{},
	}

	t := reflect.TypeOf(v)
	if t == nil {
		return params
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return params
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name := field.Name
		if n, _, _ := strings.Cut(tag, ","); n != "" {
			name = n
		}

		prop := map[string]any{"type": jsonType(field.Type)}
		if d := field.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		params.Properties[name] = prop

		if !hasOmitEmpty(tag) && field.Type.Kind() != reflect.Pointer {
			params.Required = append(params.Required, name)
		}
	}

	return params
}

// ValidateParameters checks call arguments against a parameter schema:
// required names must be present and declared properties must carry a value
// of the declared JSON type. Undeclared arguments are allowed.
func ValidateParameters(args map[string]any, params core.Parameters) error {
	for _, name := range params.Required {
		if _, ok := args[name]; !ok {
			return &core.ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	for name, value := range args {
		prop, ok := params.Properties[name].(map[string]any)
		if !ok {
			continue
		}

		expected, _ := prop["type"].(string)
		if !isValidType(value, expected) {
			return &core.ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			}
		}
	}

	return nil
}

var kindTypes = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "boolean",
	reflect.Int:     "integer",
	reflect.Int8:    "integer",
	reflect.Int16:   "integer",
	reflect.Int32:   "integer",
	reflect.Int64:   "integer",
	reflect.Uint:    "integer",
	reflect.Uint8:   "integer",
	reflect.Uint16:  "integer",
	reflect.Uint32:  "integer",
	reflect.Uint64:  "integer",
	reflect.Float32: "number",
	reflect.Float64: "number",
	reflect.Slice:   "array",
	reflect.Array:   "array",
	reflect.Map:     "object",
	reflect.Struct:  "object",
}

func jsonType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name, ok := kindTypes[t.Kind()]; ok {
		return name
	}
	return "string"
}

func hasOmitEmpty(tag string) bool {
	_, opts, _ := strings.Cut(tag, ",")
	return slices.Contains(strings.Split(opts, ","), "omitempty")
}

// isValidType reports whether value matches a JSON schema type. An empty or
// unknown type accepts anything, as does a nil value. Whole floats count as
// integers since decoded JSON numbers are float64.
func isValidType(value any, expected string) bool {
	if value == nil || !slices.Contains(schemaTypes, expected) {
		return true
	}

	rv := reflect.ValueOf(value)
	got := kindTypes[rv.Kind()]

	switch {
	case got == expected:
		return true
	case expected == "number":
		return got == "integer"
	case expected == "integer" && got == "number":
		f := rv.Float()
		return f == math.Trunc(f)
	default:
		return false
	}
}

var schemaTypes = []string{"string", "integer", "number", "boolean", "array", "object"}
