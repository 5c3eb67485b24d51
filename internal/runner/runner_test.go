package runner

import (
	"context"
	"errors"
	"testing"

	"pacbench/internal/env"
	"pacbench/internal/model"
	"pacbench/internal/policy"
)

// scriptedEnv is a minimal simulator for exercising the runner's failure
// handling without the full game.
type scriptedEnv struct {
	stepsTaken  int
	faultOnStep int
	endOnStep   int
	endReason   string
}

func (s *scriptedEnv) Name() string { return "scripted" }

func (s *scriptedEnv) Reset(int64) (env.Observation, error) {
	s.stepsTaken = 0
	return env.Observation{Legal: []env.Action{env.ActionNoop}}, nil
}

func (s *scriptedEnv) Step(a env.Action) (env.Transition, error) {
	s.stepsTaken++
	if s.faultOnStep > 0 && s.stepsTaken == s.faultOnStep {
		return env.Transition{}, &env.EnvironmentFault{Err: errors.New("simulator crashed")}
	}
	tr := env.Transition{Action: a, Reward: 1}
	if s.endOnStep > 0 && s.stepsTaken == s.endOnStep {
		tr.Terminal = true
		tr.Reason = s.endReason
	}
	return tr, nil
}

func (s *scriptedEnv) ActionSpace() env.ActionSpace {
	return env.ActionSpace{N: 1, Names: []string{"noop"}}
}

func (s *scriptedEnv) ObservationSpace() env.ObservationSpace {
	return env.ObservationSpace{Width: 1, Height: 1}
}

type errPolicy struct{ err error }

func (p errPolicy) Name() string { return "erroring" }

func (p errPolicy) Reset(int64) {}

func (p errPolicy) Act(context.Context, env.Observation) (env.Action, error) {
	if p.err != nil {
		return env.ActionNoop, p.err
	}
	panic("synthetic policy bug")
}

type fixedPolicy struct{}

func (fixedPolicy) Reset(int64)  {}
func (fixedPolicy) Name() string { return "fixed" }
func (fixedPolicy) Act(context.Context, env.Observation) (env.Action, error) {
	return env.ActionNoop, nil
}

func TestRunEpisodeDeterministicForFixedSeed(t *testing.T) {
	ctx := context.Background()
	factory := func() env.Environment { return env.NewPaclite() }

	run := func() model.EpisodeResult {
		p := policy.NewGreedy()
		res, err := RunEpisode(ctx, factory, p, EpisodeSpec{RunID: "r", Index: 3, Seed: 99, MaxSteps: 200})
		if err != nil {
			t.Fatalf("run episode: %v", err)
		}
		return res
	}

	a := run()
	b := run()
	if a.Reward != b.Reward || a.Steps != b.Steps || a.TerminalReason != b.TerminalReason {
		t.Fatalf("same seed produced different outcomes: %+v vs %+v", a, b)
	}
	if a.Seed != 99 || a.Index != 3 || a.Policy != "greedy" {
		t.Fatalf("result identity wrong: %+v", a)
	}
}

func TestRunEpisodeTruncatesAtStepCeiling(t *testing.T) {
	ctx := context.Background()
	factory := func() env.Environment { return &scriptedEnv{} }

	res, err := RunEpisode(ctx, factory, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 25})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if res.TerminalReason != model.TerminalTruncated {
		t.Fatalf("reason %s, want truncated", res.TerminalReason)
	}
	if res.Steps != 25 || res.Failed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Reward != 25 {
		t.Fatalf("reward %v, want 25", res.Reward)
	}
}

func TestRunEpisodeTerminalOutcomes(t *testing.T) {
	ctx := context.Background()

	goal, err := RunEpisode(ctx, func() env.Environment {
		return &scriptedEnv{endOnStep: 4, endReason: "goal"}
	}, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 100})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if goal.TerminalReason != model.TerminalGoal || !goal.Succeeded() {
		t.Fatalf("expected success, got %+v", goal)
	}

	death, err := RunEpisode(ctx, func() env.Environment {
		return &scriptedEnv{endOnStep: 4, endReason: "caught"}
	}, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 100})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if death.TerminalReason != model.TerminalFailure || death.Failed {
		t.Fatalf("expected natural failure, got %+v", death)
	}
}

func TestRunEpisodePolicyErrorForfeitsEpisode(t *testing.T) {
	ctx := context.Background()
	factory := func() env.Environment { return &scriptedEnv{} }

	res, err := RunEpisode(ctx, factory, errPolicy{err: errors.New("no action available")}, EpisodeSpec{Seed: 1, MaxSteps: 10})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if res.TerminalReason != model.TerminalPolicyFailure || !res.Failed {
		t.Fatalf("expected policy_failure, got %+v", res)
	}
	if res.Error == "" {
		t.Fatal("expected the policy error to be recorded")
	}
}

func TestRunEpisodePolicyPanicIsContained(t *testing.T) {
	ctx := context.Background()
	factory := func() env.Environment { return &scriptedEnv{} }

	res, err := RunEpisode(ctx, factory, errPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 10})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if res.TerminalReason != model.TerminalPolicyFailure || !res.Failed {
		t.Fatalf("expected policy_failure after panic, got %+v", res)
	}
}

func TestRunEpisodeRetriesFaultOnceThenFails(t *testing.T) {
	ctx := context.Background()
	instances := 0
	factory := func() env.Environment {
		instances++
		return &scriptedEnv{faultOnStep: 3}
	}

	res, err := RunEpisode(ctx, factory, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 10})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if instances != 2 {
		t.Fatalf("expected one retry on a fresh instance, created %d", instances)
	}
	if res.TerminalReason != model.TerminalEnvironmentFault || !res.Failed {
		t.Fatalf("expected environment_fault, got %+v", res)
	}
}

func TestRunEpisodeRetrySucceedsAfterTransientFault(t *testing.T) {
	ctx := context.Background()
	instances := 0
	factory := func() env.Environment {
		instances++
		if instances == 1 {
			return &scriptedEnv{faultOnStep: 3}
		}
		return &scriptedEnv{endOnStep: 5, endReason: "goal"}
	}

	res, err := RunEpisode(ctx, factory, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 10})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if instances != 2 {
		t.Fatalf("expected exactly one retry, created %d instances", instances)
	}
	if !res.Succeeded() {
		t.Fatalf("expected retried episode to succeed, got %+v", res)
	}
}

func TestRunEpisodeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	factory := func() env.Environment { return &scriptedEnv{} }

	if _, err := RunEpisode(ctx, factory, fixedPolicy{}, EpisodeSpec{Seed: 1, MaxSteps: 10}); err == nil {
		t.Fatal("expected a context error")
	}
}
