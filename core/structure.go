package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Describer is implemented by agents that carry an Information record.
type Describer interface {
	Information() (Information, bool)
}

// SubAgent is a nested agent registered under an attribute key.
type SubAgent struct {
	Key   string
	Agent Agent
}

// Composite is implemented by agents that own nested agents.
type Composite interface {
	SubAgents() []SubAgent
}

// Structure renders a and its nested agents as an indented tree, one tab per
// nesting level. Only agents listed by Composite.SubAgents are visited.
func Structure(a Agent) string {
	return structure(a, 0)
}

func structure(a Agent, depth int) string {
	indent := strings.Repeat("\t", depth)

	var b strings.Builder
	b.WriteString(indent)
	b.WriteString(describe(a))

	if c, ok := a.(Composite); ok {
		for _, sub := range c.SubAgents() {
			fmt.Fprintf(&b, "\n%s[SubAgent: %s: %s]", indent, sub.Key, structure(sub.Agent, depth+1))
		}
	}

	return b.String()
}

func describe(a Agent) string {
	name := fmt.Sprintf("%T", a)
	description := ""
	parameters := "{}"

	if d, ok := a.(Describer); ok {
		if info, ok := d.Information(); ok {
			name = info.Function.Name
			description = info.Function.Description
			if raw, err := json.Marshal(info.Function.Parameters); err == nil {
				parameters = string(raw)
			}
		}
	}

	return fmt.Sprintf("Agent(name=%s, description=%s, parameters=%s)", name, description, parameters)
}
