package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/xyz/core"
	"github.com/hupe1980/xyz/internal/util"
)

// BaseAgent bundles identity, the validated Information record and the
// ordered list of owned sub-agents. Embed it in concrete agent
// implementations and supply a Flowing method to satisfy core.Agent. All
// exported methods are goroutine-safe.
type BaseAgent struct {
	mu        sync.Mutex
	name      string
	info      *core.Information
	parent    *BaseAgent
	subAgents []core.SubAgent
}

// NewBaseAgent constructs a BaseAgent without an Information record.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{name: name}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Information returns a copy of the configuration record, if one was set.
func (b *BaseAgent) Information() (core.Information, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info == nil {
		return core.Information{}, false
	}
	return b.info.Clone(), true
}

// SetInformation validates and stores the configuration record. An invalid
// record is rejected and the previous one is kept.
func (b *BaseAgent) SetInformation(info core.Information) error {
	if err := info.Validate(); err != nil {
		return err
	}

	clone := info.Clone()

	b.mu.Lock()
	b.info = &clone
	b.mu.Unlock()

	return nil
}

// ValidateArgs checks call arguments against the parameter schema of the
// configuration record. Agents without a record accept any arguments.
func (b *BaseAgent) ValidateArgs(args core.Args) error {
	info, ok := b.Information()
	if !ok {
		return nil
	}
	return util.ValidateParameters(args, info.Function.Parameters)
}

// AddSubAgent registers child under key. Keys are unique per parent and the
// registration order is preserved. A child embedding BaseAgent is owned
// exclusively: adding it to a second parent, or below one of its own
// descendants, fails.
func (b *BaseAgent) AddSubAgent(key string, child core.Agent) error {
	if key == "" {
		return errors.New("sub-agent key must not be empty")
	}
	if child == nil {
		return fmt.Errorf("sub-agent %q is nil", key)
	}

	owned, isOwned := child.(owner)
	acquired := false
	if isOwned {
		var err error
		if acquired, err = owned.claim(b); err != nil {
			return fmt.Errorf("sub-agent %q: %w", key, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sa := range b.subAgents {
		if sa.Key == key {
			if acquired {
				owned.release(b)
			}
			return fmt.Errorf("sub-agent key %q already registered", key)
		}
	}

	b.subAgents = append(b.subAgents, core.SubAgent{Key: key, Agent: child})

	return nil
}

// SubAgents returns a copy of the owned sub-agents in registration order.
func (b *BaseAgent) SubAgents() []core.SubAgent {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]core.SubAgent, len(b.subAgents))
	copy(result, b.subAgents)
	return result
}

// SubAgent returns the sub-agent registered under key.
func (b *BaseAgent) SubAgent(key string) (core.Agent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sa := range b.subAgents {
		if sa.Key == key {
			return sa.Agent, true
		}
	}
	return nil, false
}

// ParentName returns the name of the owning agent, or "" for a root agent.
func (b *BaseAgent) ParentName() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parent == nil {
		return ""
	}
	return b.parent.name
}

// owner is implemented by every type embedding BaseAgent.
type owner interface {
	claim(parent *BaseAgent) (bool, error)
	release(parent *BaseAgent)
}

// claim makes parent the owner of b and reports whether ownership changed.
// An ancestor of parent cannot be claimed, so the ownership graph stays a
// tree.
func (b *BaseAgent) claim(parent *BaseAgent) (bool, error) {
	if b == parent {
		return false, errors.New("an agent cannot own itself")
	}
	for p := parent.parentAgent(); p != nil; p = p.parentAgent() {
		if p == b {
			return false, fmt.Errorf("agent %q is an ancestor of %q", b.name, parent.name)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.parent {
	case parent:
		return false, nil
	case nil:
		b.parent = parent
		return true, nil
	default:
		return false, fmt.Errorf("agent %q is already owned by %q", b.name, b.parent.name)
	}
}

func (b *BaseAgent) parentAgent() *BaseAgent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.parent
}

func (b *BaseAgent) release(parent *BaseAgent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parent == parent {
		b.parent = nil
	}
}
