package policy

import (
	"context"

	"pacbench/internal/env"
)

// Greedy is the deterministic rule-based variant: head for the closest
// pellet while refusing moves that land next to a ghost. When every move is
// dangerous it backs away from the nearest ghost instead.
type Greedy struct{}

func NewGreedy() *Greedy { return &Greedy{} }

func (g *Greedy) Name() string { return "greedy" }

func (g *Greedy) Reset(int64) {}

func (g *Greedy) Act(_ context.Context, obs env.Observation) (env.Action, error) {
	best := env.ActionNoop
	bestDist := -1
	for _, a := range obs.Legal {
		to := env.CellAfter(obs.Pac, a)
		if env.GhostAdjacent(obs, to) {
			continue
		}
		d := env.PelletDistance(obs, to)
		if d < 0 {
			continue
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && a < best) {
			bestDist = d
			best = a
		}
	}
	if bestDist >= 0 {
		return best, nil
	}

	// Cornered: maximize distance to the closest ghost.
	best = env.ActionNoop
	bestGap := -1
	for _, a := range obs.Legal {
		to := env.CellAfter(obs.Pac, a)
		gap := nearestGhostGap(obs, to)
		if gap > bestGap || (gap == bestGap && a < best) {
			bestGap = gap
			best = a
		}
	}
	return best, nil
}

func nearestGhostGap(obs env.Observation, at env.Point) int {
	best := -1
	for _, g := range obs.Ghosts {
		d := intAbs(g.Pos.X-at.X) + intAbs(g.Pos.Y-at.Y)
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

func intAbs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
