package env

import (
	"fmt"
	"math/rand"
	"strings"
)

// Reward shaping for the paclite maze.
const (
	PelletReward = 10.0
	ClearReward  = 100.0
	DeathPenalty = -100.0
	StepCost     = -0.1
)

const chaseBias = 0.8

// pacliteLayout is the fixed maze. '#' wall, '.' pellet, ' ' open corridor,
// 'P' player spawn, 'G' ghost spawn.
const pacliteLayout = `#############
#P....#....G#
#.###.#.###.#
#.....#.....#
#.##.#.#.##.#
#....# #....#
#.##.#.#.##.#
#.....#.....#
#.###.#.###.#
#G....#.....#
#############`

// Paclite is a deterministic, seedable Pacman-style grid simulator. All
// stochastic movement (the ghosts) draws from an instance-local rand.Rand
// seeded at Reset; the simulator never touches global randomness.
type Paclite struct {
	walls       [][]bool
	pellets     [][]bool
	width       int
	height      int
	pelletsLeft int
	pac         Point
	ghosts      []Ghost
	step        int
	done        bool
	started     bool
	rng         *rand.Rand
	seed        int64
}

// NewPaclite returns an unstarted simulator; Reset must be called first.
func NewPaclite() *Paclite {
	return &Paclite{}
}

func (p *Paclite) Name() string { return "paclite" }

func (p *Paclite) ActionSpace() ActionSpace {
	return ActionSpace{N: len(actionNames), Names: append([]string(nil), actionNames...)}
}

func (p *Paclite) ObservationSpace() ObservationSpace {
	lines := strings.Split(pacliteLayout, "\n")
	return ObservationSpace{Width: len(lines[0]), Height: len(lines), Features: FeatureCount}
}

func (p *Paclite) Reset(seed int64) (Observation, error) {
	lines := strings.Split(pacliteLayout, "\n")
	p.height = len(lines)
	p.width = len(lines[0])
	p.walls = make([][]bool, p.height)
	p.pellets = make([][]bool, p.height)
	p.ghosts = p.ghosts[:0]
	p.pelletsLeft = 0

	for y, line := range lines {
		p.walls[y] = make([]bool, p.width)
		p.pellets[y] = make([]bool, p.width)
		for x := 0; x < p.width; x++ {
			switch line[x] {
			case '#':
				p.walls[y][x] = true
			case '.':
				p.pellets[y][x] = true
				p.pelletsLeft++
			case 'P':
				p.pac = Point{X: x, Y: y}
			case 'G':
				p.ghosts = append(p.ghosts, Ghost{Pos: Point{X: x, Y: y}, Dir: ActionNoop})
			}
		}
	}

	p.step = 0
	p.done = false
	p.started = true
	p.seed = seed
	p.rng = rand.New(rand.NewSource(seed))
	return p.observe(), nil
}

func (p *Paclite) Step(a Action) (Transition, error) {
	space := p.ActionSpace()
	if !space.Contains(a) {
		return Transition{}, &InvalidActionError{Action: a, Space: space}
	}
	if !p.started {
		return Transition{}, &EnvironmentFault{Err: fmt.Errorf("step before reset")}
	}
	if p.done {
		return Transition{}, ErrEpisodeEnded
	}

	before := p.observe()
	reward := StepCost

	next := p.moveFrom(p.pac, a)
	p.pac = next
	p.step++

	// Checked between the pac move and the ghost moves: when pac and an
	// adjacent ghost would swap cells, pac has stepped onto the ghost's
	// current cell, so the exchange is a capture, never a pass-through.
	if p.caught() {
		return p.finish(before, a, reward+DeathPenalty, "failure"), nil
	}

	if p.pellets[p.pac.Y][p.pac.X] {
		p.pellets[p.pac.Y][p.pac.X] = false
		p.pelletsLeft--
		reward += PelletReward
	}
	if p.pelletsLeft == 0 {
		return p.finish(before, a, reward+ClearReward, "goal"), nil
	}

	p.moveGhosts()
	if p.caught() {
		return p.finish(before, a, reward+DeathPenalty, "failure"), nil
	}

	return Transition{
		Obs:    before,
		Action: a,
		Reward: reward,
		Next:   p.observe(),
		Info:   map[string]any{"pellets_remaining": p.pelletsLeft},
	}, nil
}

// Render draws the current frame as ASCII, one row per line.
func (p *Paclite) Render() string {
	if !p.started {
		return ""
	}
	rows := make([][]byte, p.height)
	for y := 0; y < p.height; y++ {
		rows[y] = make([]byte, p.width)
		for x := 0; x < p.width; x++ {
			switch {
			case p.walls[y][x]:
				rows[y][x] = '#'
			case p.pellets[y][x]:
				rows[y][x] = '.'
			default:
				rows[y][x] = ' '
			}
		}
	}
	rows[p.pac.Y][p.pac.X] = 'P'
	for _, g := range p.ghosts {
		rows[g.Pos.Y][g.Pos.X] = 'G'
	}
	lines := make([]string, p.height)
	for y, row := range rows {
		lines[y] = string(row)
	}
	return strings.Join(lines, "\n")
}

func (p *Paclite) finish(before Observation, a Action, reward float64, reason string) Transition {
	p.done = true
	return Transition{
		Obs:      before,
		Action:   a,
		Reward:   reward,
		Next:     p.observe(),
		Terminal: true,
		Reason:   reason,
		Info:     map[string]any{"pellets_remaining": p.pelletsLeft},
	}
}

func (p *Paclite) caught() bool {
	for _, g := range p.ghosts {
		if g.Pos == p.pac {
			return true
		}
	}
	return false
}

func (p *Paclite) moveFrom(from Point, a Action) Point {
	to := from
	switch a {
	case ActionUp:
		to.Y--
	case ActionDown:
		to.Y++
	case ActionLeft:
		to.X--
	case ActionRight:
		to.X++
	}
	if to.Y < 0 || to.Y >= p.height || to.X < 0 || to.X >= p.width || p.walls[to.Y][to.X] {
		return from
	}
	return to
}

// moveGhosts advances each ghost one cell. With probability chaseBias a ghost
// takes the legal move that most reduces its distance to the player;
// otherwise it picks a legal move uniformly. Ghosts avoid reversing unless
// cornered.
func (p *Paclite) moveGhosts() {
	for i := range p.ghosts {
		g := &p.ghosts[i]
		options := p.ghostOptions(*g)
		if len(options) == 0 {
			continue
		}
		var dir Action
		if p.rng.Float64() < chaseBias {
			dir = options[0]
			best := p.distanceAfter(g.Pos, dir)
			for _, o := range options[1:] {
				if d := p.distanceAfter(g.Pos, o); d < best {
					best = d
					dir = o
				}
			}
		} else {
			dir = options[p.rng.Intn(len(options))]
		}
		g.Pos = p.moveFrom(g.Pos, dir)
		g.Dir = dir
	}
}

func (p *Paclite) ghostOptions(g Ghost) []Action {
	reverse := opposite(g.Dir)
	options := make([]Action, 0, 4)
	for _, dir := range []Action{ActionUp, ActionRight, ActionDown, ActionLeft} {
		if p.moveFrom(g.Pos, dir) == g.Pos {
			continue
		}
		if dir == reverse {
			continue
		}
		options = append(options, dir)
	}
	if len(options) == 0 && reverse != ActionNoop && p.moveFrom(g.Pos, reverse) != g.Pos {
		options = append(options, reverse)
	}
	return options
}

func (p *Paclite) distanceAfter(from Point, dir Action) int {
	to := p.moveFrom(from, dir)
	return abs(to.X-p.pac.X) + abs(to.Y-p.pac.Y)
}

func (p *Paclite) observe() Observation {
	pellets := make([][]bool, p.height)
	for y := range p.pellets {
		pellets[y] = append([]bool(nil), p.pellets[y]...)
	}
	ghosts := append([]Ghost(nil), p.ghosts...)

	legal := make([]Action, 0, 5)
	legal = append(legal, ActionNoop)
	for _, dir := range []Action{ActionUp, ActionRight, ActionDown, ActionLeft} {
		if p.moveFrom(p.pac, dir) != p.pac {
			legal = append(legal, dir)
		}
	}

	return Observation{
		Step:        p.step,
		Pac:         p.pac,
		Ghosts:      ghosts,
		Pellets:     pellets,
		PelletsLeft: p.pelletsLeft,
		Legal:       legal,
		rngFork:     p.rng.Int63(),
	}
}

func opposite(a Action) Action {
	switch a {
	case ActionUp:
		return ActionDown
	case ActionDown:
		return ActionUp
	case ActionLeft:
		return ActionRight
	case ActionRight:
		return ActionLeft
	default:
		return ActionNoop
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
