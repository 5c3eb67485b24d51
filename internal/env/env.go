package env

import (
	"errors"
	"fmt"
)

// Action is an index into an environment's discrete action space.
type Action int

const (
	ActionNoop Action = iota
	ActionUp
	ActionRight
	ActionDown
	ActionLeft
)

var actionNames = []string{"noop", "up", "right", "down", "left"}

func (a Action) String() string {
	if int(a) < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ActionSpace describes the finite set of legal actions.
type ActionSpace struct {
	N     int
	Names []string
}

func (s ActionSpace) Contains(a Action) bool {
	return int(a) >= 0 && int(a) < s.N
}

// ObservationSpace describes the shape of observations the environment emits.
type ObservationSpace struct {
	Width    int
	Height   int
	Features int
}

// Point is a cell coordinate on the grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Ghost is one adversary's visible state.
type Ghost struct {
	Pos Point  `json:"pos"`
	Dir Action `json:"dir"`
}

// Observation is an immutable snapshot of the perceivable game state.
// Pellets is a defensive copy; callers may keep observations across steps.
type Observation struct {
	Step        int
	Pac         Point
	Ghosts      []Ghost
	Pellets     [][]bool
	PelletsLeft int
	Legal       []Action
	rngFork     int64
}

// Transition is the outcome of one environment step.
type Transition struct {
	Obs      Observation
	Action   Action
	Reward   float64
	Next     Observation
	Terminal bool
	Reason   string
	Info     map[string]any
}

// Environment is the uniform adapter contract over a game simulator.
// Implementations are not safe for concurrent use; the harness gives every
// worker its own instance.
type Environment interface {
	Name() string
	Reset(seed int64) (Observation, error)
	Step(a Action) (Transition, error)
	ActionSpace() ActionSpace
	ObservationSpace() ObservationSpace
}

// Renderer is an optional capability for environments that can draw a frame.
type Renderer interface {
	Render() string
}

// InvalidActionError reports an action outside the declared action space.
type InvalidActionError struct {
	Action Action
	Space  ActionSpace
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %d: action space has %d actions", int(e.Action), e.Space.N)
}

// ErrEpisodeEnded is returned by Step after a terminal transition when no
// Reset has intervened.
var ErrEpisodeEnded = errors.New("episode already ended: call Reset before Step")

// EnvironmentFault wraps a crash of the underlying simulator. The episode
// runner retries the episode once on a fresh instance before recording it
// as failed.
type EnvironmentFault struct {
	Err error
}

func (e *EnvironmentFault) Error() string {
	return fmt.Sprintf("environment fault: %v", e.Err)
}

func (e *EnvironmentFault) Unwrap() error { return e.Err }

// IsFault reports whether err is (or wraps) an EnvironmentFault.
func IsFault(err error) bool {
	var fault *EnvironmentFault
	return errors.As(err, &fault)
}
