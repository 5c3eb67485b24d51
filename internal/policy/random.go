package policy

import (
	"context"
	"fmt"
	"math/rand"

	"pacbench/internal/env"
)

// Random samples uniformly over the legal actions using its own seeded rand.
type Random struct {
	rng *rand.Rand
}

func NewRandom() *Random {
	return &Random{rng: rand.New(rand.NewSource(0))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Reset(seed int64) {
	r.rng = rand.New(rand.NewSource(seed))
}

func (r *Random) Act(_ context.Context, obs env.Observation) (env.Action, error) {
	if len(obs.Legal) == 0 {
		return env.ActionNoop, fmt.Errorf("observation has no legal actions")
	}
	return obs.Legal[r.rng.Intn(len(obs.Legal))], nil
}
