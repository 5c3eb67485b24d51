// Package runner drives a single episode to completion: a strictly
// sequential reset/act/step loop over one environment instance and one
// policy instance.
package runner

import (
	"context"
	"fmt"
	"time"

	"pacbench/internal/env"
	"pacbench/internal/model"
	"pacbench/internal/storage"
)

// EpisodeSpec pins one episode's identity: its index within the run, its
// seed, and the hard step ceiling that guarantees termination.
type EpisodeSpec struct {
	RunID    string
	Index    int
	Seed     int64
	MaxSteps int
}

// RunEpisode plays one episode and always returns exactly one EpisodeResult.
// Failures are folded into the result rather than propagated: a policy error
// or panic forfeits the episode as policy_failure, and an environment fault
// is retried once on a fresh instance before the episode is recorded as
// environment_fault. Only a canceled context surfaces as an error.
func RunEpisode(ctx context.Context, factory env.Factory, p Policy, spec EpisodeSpec) (model.EpisodeResult, error) {
	result := model.EpisodeResult{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID:        spec.RunID,
		Index:        spec.Index,
		Seed:         spec.Seed,
		Policy:       p.Name(),
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}

	reward, steps, reason, failed, errMsg := playWithRetry(ctx, factory, p, spec)
	if err := ctx.Err(); err != nil {
		return model.EpisodeResult{}, err
	}

	result.Reward = reward
	result.Steps = steps
	result.TerminalReason = reason
	result.Failed = failed
	result.Error = errMsg
	result.FinishedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	return result, nil
}

// Policy is the subset of the policy contract the runner needs; declared
// here so the runner does not depend on the policy package's variants.
type Policy interface {
	Name() string
	Reset(seed int64)
	Act(ctx context.Context, obs env.Observation) (env.Action, error)
}

func playWithRetry(ctx context.Context, factory env.Factory, p Policy, spec EpisodeSpec) (float64, int, model.TerminalReason, bool, string) {
	reward, steps, reason, failed, errMsg := play(ctx, factory(), p, spec)
	if reason == model.TerminalEnvironmentFault {
		// One retry on a fresh simulator instance.
		reward, steps, reason, failed, errMsg = play(ctx, factory(), p, spec)
	}
	return reward, steps, reason, failed, errMsg
}

func play(ctx context.Context, e env.Environment, p Policy, spec EpisodeSpec) (reward float64, steps int, reason model.TerminalReason, failed bool, errMsg string) {
	defer func() {
		if r := recover(); r != nil {
			reason = model.TerminalPolicyFailure
			failed = true
			errMsg = fmt.Sprintf("policy panic: %v", r)
		}
	}()

	p.Reset(spec.Seed)
	obs, err := e.Reset(spec.Seed)
	if err != nil {
		return 0, 0, model.TerminalEnvironmentFault, true, err.Error()
	}

	for steps < spec.MaxSteps {
		if err := ctx.Err(); err != nil {
			return reward, steps, model.TerminalSkipped, false, ""
		}

		action, err := p.Act(ctx, obs)
		if err != nil {
			return reward, steps, model.TerminalPolicyFailure, true, err.Error()
		}

		tr, err := e.Step(action)
		if err != nil {
			if env.IsFault(err) {
				return reward, steps, model.TerminalEnvironmentFault, true, err.Error()
			}
			// InvalidActionError or ErrEpisodeEnded: a programming error in
			// the policy or runner; abort this episode only.
			return reward, steps, model.TerminalPolicyFailure, true, err.Error()
		}

		reward += tr.Reward
		steps++
		obs = tr.Next

		if tr.Terminal {
			if tr.Reason == "goal" {
				return reward, steps, model.TerminalGoal, false, ""
			}
			return reward, steps, model.TerminalFailure, false, ""
		}
	}
	return reward, steps, model.TerminalTruncated, false, ""
}
