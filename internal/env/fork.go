package env

import (
	"math/rand"
	"strings"
)

// FromObservation reconstructs a paclite simulator positioned at the given
// observation, for use as a forward model by search policies. The fork's
// ghost randomness is seeded from the observation, so two forks of the same
// observation roll out identically.
func FromObservation(obs Observation) *Paclite {
	lines := strings.Split(pacliteLayout, "\n")
	p := &Paclite{
		height:  len(lines),
		width:   len(lines[0]),
		started: true,
		step:    obs.Step,
		pac:     obs.Pac,
		seed:    obs.rngFork,
		rng:     rand.New(rand.NewSource(obs.rngFork)),
	}
	p.walls = make([][]bool, p.height)
	for y, line := range lines {
		p.walls[y] = make([]bool, p.width)
		for x := 0; x < p.width; x++ {
			p.walls[y][x] = line[x] == '#'
		}
	}
	p.pellets = make([][]bool, len(obs.Pellets))
	for y := range obs.Pellets {
		p.pellets[y] = append([]bool(nil), obs.Pellets[y]...)
	}
	p.pelletsLeft = obs.PelletsLeft
	p.ghosts = append([]Ghost(nil), obs.Ghosts...)
	return p
}

// Clone deep-copies the simulator. The clone's rand stream is forked from
// the parent, so successive clones roll out differently from each other but
// deterministically for a fixed parent state.
func (p *Paclite) Clone() *Paclite {
	clone := &Paclite{
		walls:       p.walls,
		width:       p.width,
		height:      p.height,
		pelletsLeft: p.pelletsLeft,
		pac:         p.pac,
		step:        p.step,
		done:        p.done,
		started:     p.started,
		seed:        p.seed,
		rng:         rand.New(rand.NewSource(p.rng.Int63())),
	}
	clone.pellets = make([][]bool, len(p.pellets))
	for y := range p.pellets {
		clone.pellets[y] = append([]bool(nil), p.pellets[y]...)
	}
	clone.ghosts = append([]Ghost(nil), p.ghosts...)
	return clone
}

// Done reports whether the current episode has reached a terminal state.
func (p *Paclite) Done() bool { return p.done }
