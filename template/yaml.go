package template

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/xyz/core"
)

// yamlFragment is the on-disk form of a fragment: content is either a string
// or a list of blocks.
type yamlFragment struct {
	Role    core.Role `yaml:"role"`
	Content yaml.Node `yaml:"content"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Fragment) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlFragment
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Role == "" {
		return fmt.Errorf("line %d: fragment without role", value.Line)
	}

	f.Role = raw.Role
	switch raw.Content.Kind {
	case yaml.ScalarNode:
		f.Text = raw.Content.Value
		f.Blocks = nil
	case yaml.SequenceNode:
		blocks := []Block{}
		if err := raw.Content.Decode(&blocks); err != nil {
			return err
		}
		for i := range blocks {
			if blocks[i].Type == "" {
				blocks[i].Type = core.PartText
			}
		}
		f.Text = ""
		f.Blocks = blocks
	case 0:
		return fmt.Errorf("line %d: fragment without content", value.Line)
	default:
		return fmt.Errorf("line %d: content must be a string or a list of blocks", raw.Content.Line)
	}

	return nil
}

// ParseYAML decodes a document mapping template names to fragment lists.
func ParseYAML(data []byte) (map[string]Template, error) {
	var doc map[string][]Fragment
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	out := make(map[string]Template, len(doc))
	for name, fragments := range doc {
		t, err := New(fragments...)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		out[name] = t
	}

	return out, nil
}

// Load reads a YAML template document from r.
func Load(r io.Reader) (map[string]Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseYAML(data)
}
