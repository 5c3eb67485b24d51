// Package policy defines the decision-making contract evaluated by the
// harness and its built-in variants: random, greedy (rule-based), mcts
// (bounded search) and neural (learned).
package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pacbench/internal/env"
)

// Policy maps observations to actions. Implementations may keep internal
// state between steps of one episode; Reset is called before every episode
// and must clear that state and re-seed any randomness.
//
// Implementations are not safe for concurrent use; the harness builds one
// instance per worker.
type Policy interface {
	Name() string
	Reset(seed int64)
	Act(ctx context.Context, obs env.Observation) (env.Action, error)
}

// Spec selects and parameterizes a policy variant.
type Spec struct {
	Name string

	// Search-based variants only.
	BudgetNodes int
	BudgetTime  time.Duration

	// Learned variants only.
	WeightsPath string
}

type constructor func(Spec) (Policy, error)

var constructors = map[string]constructor{
	"random": func(Spec) (Policy, error) { return NewRandom(), nil },
	"greedy": func(Spec) (Policy, error) { return NewGreedy(), nil },
	"mcts":   func(s Spec) (Policy, error) { return NewMCTS(s.BudgetNodes, s.BudgetTime), nil },
	"neural": func(s Spec) (Policy, error) { return NewNeural(s.WeightsPath) },
}

// New builds the policy named by the spec.
func New(spec Spec) (Policy, error) {
	build, ok := constructors[spec.Name]
	if !ok {
		return nil, fmt.Errorf("unknown policy: %s", spec.Name)
	}
	return build(spec)
}

// Names lists the available policy variants in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
