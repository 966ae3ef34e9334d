package template

import (
	"slices"

	"github.com/hupe1980/xyz/core"
)

// Block is one sub-block of a multi-part fragment. Text blocks carry
// formattable text; image blocks carry a formattable image URL.
type Block struct {
	Type     core.PartType `yaml:"type" json:"type"`
	Text     string        `yaml:"text,omitempty" json:"text,omitempty"`
	ImageURL string        `yaml:"image_url,omitempty" json:"image_url,omitempty"`
}

// Fragment is a role-tagged unit of a template. Exactly one of Text or Blocks
// is used: Blocks, when non-nil, turns the fragment into a multi-part message.
type Fragment struct {
	Role   core.Role `json:"role"`
	Text   string    `json:"content,omitempty"`
	Blocks []Block   `json:"blocks,omitempty"`
}

// System returns a system fragment.
func System(text string) Fragment { return Fragment{Role: core.RoleSystem, Text: text} }

// User returns a user fragment.
func User(text string) Fragment { return Fragment{Role: core.RoleUser, Text: text} }

// Assistant returns an assistant fragment.
func Assistant(text string) Fragment { return Fragment{Role: core.RoleAssistant, Text: text} }

// UserBlocks returns a multi-part user fragment.
func UserBlocks(blocks ...Block) Fragment {
	if blocks == nil {
		blocks = []Block{}
	}
	return Fragment{Role: core.RoleUser, Blocks: blocks}
}

// TextBlock returns a text sub-block.
func TextBlock(text string) Block { return Block{Type: core.PartText, Text: text} }

// ImageBlock returns an image sub-block.
func ImageBlock(url string) Block { return Block{Type: core.PartImage, ImageURL: url} }

func (f Fragment) clone() Fragment {
	out := f
	if f.Blocks != nil {
		out.Blocks = slices.Clone(f.Blocks)
	}
	return out
}

// texts returns every formattable string in the fragment.
func (f Fragment) texts() []string {
	if f.Blocks == nil {
		return []string{f.Text}
	}

	out := make([]string, 0, len(f.Blocks))
	for _, b := range f.Blocks {
		if b.Type == core.PartImage {
			out = append(out, b.ImageURL)
			continue
		}
		out = append(out, b.Text)
	}
	return out
}

// Template is an ordered, immutable list of fragments. The zero value is an
// empty template.
type Template struct {
	fragments []Fragment
}

// New builds a template and checks the placeholder syntax of every fragment.
func New(fragments ...Fragment) (Template, error) {
	t := Template{fragments: make([]Fragment, len(fragments))}
	for i, f := range fragments {
		t.fragments[i] = f.clone()
		for _, text := range f.texts() {
			if _, err := parse(text); err != nil {
				return Template{}, err
			}
		}
	}
	return t, nil
}

// Must is like New but panics on malformed syntax. It is intended for
// package-level template literals.
func Must(fragments ...Fragment) Template {
	t, err := New(fragments...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of fragments.
func (t Template) Len() int { return len(t.fragments) }

// Fragments returns a copy of the fragments.
func (t Template) Fragments() []Fragment {
	out := make([]Fragment, len(t.fragments))
	for i, f := range t.fragments {
		out[i] = f.clone()
	}
	return out
}

// Placeholders returns the sorted, de-duplicated placeholder names of the template.
func (t Template) Placeholders() []string {
	var names []string
	for _, f := range t.fragments {
		for _, text := range f.texts() {
			found, _ := placeholders(text)
			names = append(names, found...)
		}
	}

	slices.Sort(names)
	return slices.Compact(names)
}

// Resolve substitutes values into a deep copy of the template and returns the
// resulting messages. When any placeholder has no value the whole resolution
// fails with a *core.MissingArgumentsError listing exactly those names.
func (t Template) Resolve(values map[string]any) ([]core.Message, error) {
	fragments := t.Fragments()
	messages := make([]core.Message, len(fragments))

	var missing []string
	for i, f := range fragments {
		msg, absent, err := resolveFragment(f, values)
		if err != nil {
			return nil, err
		}
		missing = append(missing, absent...)
		messages[i] = msg
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &core.MissingArgumentsError{Names: slices.Compact(missing)}
	}

	return messages, nil
}

func resolveFragment(f Fragment, values map[string]any) (core.Message, []string, error) {
	if f.Blocks == nil {
		text, missing, err := render(f.Text, values)
		if err != nil {
			return core.Message{}, nil, err
		}
		return core.Message{Role: f.Role, Content: core.Text(text)}, missing, nil
	}

	var missing []string
	parts := make([]core.Part, len(f.Blocks))
	for i, b := range f.Blocks {
		if b.Type == core.PartImage {
			url, absent, err := render(b.ImageURL, values)
			if err != nil {
				return core.Message{}, nil, err
			}
			missing = append(missing, absent...)
			parts[i] = core.ImagePart(url)
			continue
		}

		text, absent, err := render(b.Text, values)
		if err != nil {
			return core.Message{}, nil, err
		}
		missing = append(missing, absent...)
		parts[i] = core.TextPart(text)
	}

	return core.Message{Role: f.Role, Content: core.Parts(parts...)}, missing, nil
}
