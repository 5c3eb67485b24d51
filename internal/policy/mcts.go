package policy

import (
	"context"
	"math"
	"math/rand"
	"time"

	"pacbench/internal/env"
)

const (
	defaultBudgetNodes = 400
	rolloutDepth       = 30
	rolloutDiscount    = 0.97
	explorationC       = 1.414
)

// MCTS is the bounded-budget search variant: UCB1 tree search over the
// paclite forward model. Every decision spends at most BudgetNodes search
// iterations, each one select/expand/rollout/backup (and, when set,
// BudgetTime wall clock); on exhaustion with no usable statistics, or on any
// simulator error, it fails soft by returning the greedy fallback action.
type MCTS struct {
	budgetNodes int
	budgetTime  time.Duration
	fallback    *Greedy
	rng         *rand.Rand
}

func NewMCTS(budgetNodes int, budgetTime time.Duration) *MCTS {
	if budgetNodes <= 0 {
		budgetNodes = defaultBudgetNodes
	}
	return &MCTS{
		budgetNodes: budgetNodes,
		budgetTime:  budgetTime,
		fallback:    NewGreedy(),
		rng:         rand.New(rand.NewSource(0)),
	}
}

func (m *MCTS) Name() string { return "mcts" }

func (m *MCTS) Reset(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

type mctsNode struct {
	sim        *env.Paclite
	action     env.Action
	parent     *mctsNode
	children   []*mctsNode
	unexplored []env.Action
	visits     int
	total      float64
	terminal   bool
	reward     float64
}

func (m *MCTS) Act(ctx context.Context, obs env.Observation) (env.Action, error) {
	root := &mctsNode{
		sim:        env.FromObservation(obs),
		unexplored: movesOf(obs),
	}
	if len(root.unexplored) == 0 {
		return env.ActionNoop, nil
	}

	var deadline time.Time
	if m.budgetTime > 0 {
		deadline = time.Now().Add(m.budgetTime)
	}

	// Every iteration counts against the node budget, not just the ones that
	// expand: once the reachable tree is fully expanded, selection still pays
	// for a rollout and backup on a terminal leaf.
	for spent := 0; spent < m.budgetNodes; spent++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}

		node, err := m.selectAndExpand(root)
		if err != nil {
			return m.fallback.Act(ctx, obs)
		}
		value, err := m.rollout(node)
		if err != nil {
			return m.fallback.Act(ctx, obs)
		}
		for n := node; n != nil; n = n.parent {
			n.visits++
			n.total += value
		}
	}

	best := bestChild(root)
	if best == nil {
		// Budget exhausted before a single expansion.
		return m.fallback.Act(ctx, obs)
	}
	return best.action, nil
}

// selectAndExpand walks down by UCB1 and expands one unexplored action when
// it reaches a node that has any.
func (m *MCTS) selectAndExpand(node *mctsNode) (*mctsNode, error) {
	for {
		if node.terminal {
			return node, nil
		}
		if len(node.unexplored) > 0 {
			idx := m.rng.Intn(len(node.unexplored))
			action := node.unexplored[idx]
			node.unexplored = append(node.unexplored[:idx], node.unexplored[idx+1:]...)

			sim := node.sim.Clone()
			tr, err := sim.Step(action)
			if err != nil {
				return nil, err
			}
			child := &mctsNode{
				sim:      sim,
				action:   action,
				parent:   node,
				terminal: tr.Terminal,
				reward:   tr.Reward,
			}
			if !tr.Terminal {
				child.unexplored = movesOf(tr.Next)
			}
			node.children = append(node.children, child)
			return child, nil
		}
		if len(node.children) == 0 {
			return node, nil
		}
		node = m.ucbChild(node)
	}
}

func (m *MCTS) ucbChild(node *mctsNode) *mctsNode {
	var best *mctsNode
	bestUCB := math.Inf(-1)
	logParent := math.Log(float64(node.visits) + 1)
	for _, child := range node.children {
		if child.visits == 0 {
			return child
		}
		exploit := child.total / float64(child.visits)
		explore := explorationC * math.Sqrt(logParent/float64(child.visits))
		if ucb := exploit + explore; ucb > bestUCB {
			bestUCB = ucb
			best = child
		}
	}
	return best
}

// rollout plays random moves from the node's state to a fixed depth,
// discounting later rewards.
func (m *MCTS) rollout(node *mctsNode) (float64, error) {
	value := node.reward
	if node.terminal {
		return value, nil
	}

	sim := node.sim.Clone()
	discount := rolloutDiscount
	for depth := 0; depth < rolloutDepth; depth++ {
		moves := legalMoves(sim)
		action := moves[m.rng.Intn(len(moves))]
		tr, err := sim.Step(action)
		if err != nil {
			return 0, err
		}
		value += discount * tr.Reward
		if tr.Terminal {
			break
		}
		discount *= rolloutDiscount
	}
	return value, nil
}

func bestChild(root *mctsNode) *mctsNode {
	var best *mctsNode
	bestMean := math.Inf(-1)
	for _, child := range root.children {
		if child.visits == 0 {
			continue
		}
		if mean := child.total / float64(child.visits); mean > bestMean {
			bestMean = mean
			best = child
		}
	}
	return best
}

// movesOf drops noop from the legal set so the search never stalls in place
// unless nothing else is possible.
func movesOf(obs env.Observation) []env.Action {
	moves := make([]env.Action, 0, len(obs.Legal))
	for _, a := range obs.Legal {
		if a != env.ActionNoop {
			moves = append(moves, a)
		}
	}
	if len(moves) == 0 {
		moves = append(moves, env.ActionNoop)
	}
	return moves
}

func legalMoves(sim *env.Paclite) []env.Action {
	// Rollouts use the raw action set; paclite treats blocked moves as stay.
	return []env.Action{env.ActionUp, env.ActionRight, env.ActionDown, env.ActionLeft}
}
