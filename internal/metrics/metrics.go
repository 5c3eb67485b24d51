// Package metrics accumulates per-episode statistics incrementally, so
// memory does not grow with episode count, and supports merging partial
// aggregates produced by parallel workers.
package metrics

import (
	"math"
	"sort"

	"pacbench/internal/model"
)

// Aggregate is a streaming count/sum/min/max/mean/variance accumulator using
// Welford's method. Add and Merge are associative and commutative: merging
// two halves equals aggregating the whole.
type Aggregate struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	mean  float64
	m2    float64
}

func (a *Aggregate) Add(v float64) {
	if a.Count == 0 {
		a.Min = v
		a.Max = v
	} else {
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	a.Count++
	a.Sum += v
	delta := v - a.mean
	a.mean += delta / float64(a.Count)
	a.m2 += delta * (v - a.mean)
}

// Merge folds another aggregate into this one using the pairwise
// parallel-variance update.
func (a *Aggregate) Merge(b Aggregate) {
	if b.Count == 0 {
		return
	}
	if a.Count == 0 {
		*a = b
		return
	}
	if b.Min < a.Min {
		a.Min = b.Min
	}
	if b.Max > a.Max {
		a.Max = b.Max
	}
	total := a.Count + b.Count
	delta := b.mean - a.mean
	a.m2 += b.m2 + delta*delta*float64(a.Count)*float64(b.Count)/float64(total)
	a.mean = (a.mean*float64(a.Count) + b.mean*float64(b.Count)) / float64(total)
	a.Sum += b.Sum
	a.Count = total
}

func (a Aggregate) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.mean
}

// Std is the population standard deviation.
func (a Aggregate) Std() float64 {
	if a.Count == 0 {
		return 0
	}
	return math.Sqrt(a.m2 / float64(a.Count))
}

// Recorder ingests EpisodeResults and produces RunStats. Skipped episodes
// are counted but excluded from reward/length distributions; failed episodes
// contribute to distributions so a degraded agent cannot hide its losses.
type Recorder struct {
	reward    Aggregate
	length    Aggregate
	rewards   []float64
	episodes  int
	completed int
	failed    int
	skipped   int
	successes int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Observe(result model.EpisodeResult) {
	r.episodes++
	if result.TerminalReason == model.TerminalSkipped {
		r.skipped++
		return
	}
	r.completed++
	if result.Failed {
		r.failed++
	}
	if result.Succeeded() {
		r.successes++
	}
	r.reward.Add(result.Reward)
	r.length.Add(float64(result.Steps))
	r.rewards = append(r.rewards, result.Reward)
}

// Merge folds a worker's partial recorder into this one without
// reprocessing its raw episodes.
func (r *Recorder) Merge(other *Recorder) {
	r.reward.Merge(other.reward)
	r.length.Merge(other.length)
	r.rewards = append(r.rewards, other.rewards...)
	r.episodes += other.episodes
	r.completed += other.completed
	r.failed += other.failed
	r.skipped += other.skipped
	r.successes += other.successes
}

func (r *Recorder) Stats() model.RunStats {
	stats := model.RunStats{
		Episodes:     r.episodes,
		Completed:    r.completed,
		Failed:       r.failed,
		Skipped:      r.skipped,
		Successes:    r.successes,
		RewardMean:   r.reward.Mean(),
		RewardMedian: median(r.rewards),
		RewardStd:    r.reward.Std(),
		RewardMin:    r.reward.Min,
		RewardMax:    r.reward.Max,
		LengthMean:   r.length.Mean(),
		LengthStd:    r.length.Std(),
		LengthMin:    r.length.Min,
		LengthMax:    r.length.Max,
		TotalSteps:   int64(r.length.Sum),
	}
	if r.completed > 0 {
		stats.SuccessRate = float64(r.successes) / float64(r.completed)
	}
	return stats
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
