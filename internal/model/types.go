package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// TerminalReason explains why an episode stopped.
type TerminalReason string

const (
	TerminalGoal             TerminalReason = "goal"
	TerminalFailure          TerminalReason = "failure"
	TerminalTruncated        TerminalReason = "truncated"
	TerminalPolicyFailure    TerminalReason = "policy_failure"
	TerminalEnvironmentFault TerminalReason = "environment_fault"
	TerminalSkipped          TerminalReason = "skipped"
)

// EpisodeResult is the immutable record of one terminated-or-truncated
// episode. Exactly one is emitted per scheduled episode; no partial episode
// is ever recorded.
type EpisodeResult struct {
	VersionedRecord
	RunID          string         `json:"run_id"`
	Index          int            `json:"index"`
	Seed           int64          `json:"seed"`
	Policy         string         `json:"policy"`
	Reward         float64        `json:"reward"`
	Steps          int            `json:"steps"`
	TerminalReason TerminalReason `json:"terminal_reason"`
	Failed         bool           `json:"failed"`
	Error          string         `json:"error,omitempty"`
	StartedAtUTC   string         `json:"started_at_utc"`
	FinishedAtUTC  string         `json:"finished_at_utc"`
}

// Succeeded reports whether the episode reached the environment's goal state.
func (r EpisodeResult) Succeeded() bool {
	return !r.Failed && r.TerminalReason == TerminalGoal
}

// RunConfig is the fixed, reproducible configuration of one evaluation run.
type RunConfig struct {
	VersionedRecord
	RunID            string  `json:"run_id"`
	Env              string  `json:"env"`
	Policy           string  `json:"policy"`
	Episodes         int     `json:"episodes"`
	Seed             int64   `json:"seed"`
	MaxStepsPerEp    int     `json:"max_steps_per_episode"`
	Parallelism      int     `json:"parallelism"`
	RunTimeoutMS     int64   `json:"run_timeout_ms,omitempty"`
	SearchBudgetNode int     `json:"search_budget_nodes,omitempty"`
	SearchBudgetMS   int64   `json:"search_budget_ms,omitempty"`
	WeightsPath      string  `json:"weights_path,omitempty"`
	StepCost         float64 `json:"step_cost,omitempty"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// RunStats are the aggregate statistics over a run's EpisodeResults.
type RunStats struct {
	Episodes     int     `json:"episodes"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Skipped      int     `json:"skipped"`
	Successes    int     `json:"successes"`
	SuccessRate  float64 `json:"success_rate"`
	RewardMean   float64 `json:"reward_mean"`
	RewardMedian float64 `json:"reward_median"`
	RewardStd    float64 `json:"reward_std"`
	RewardMin    float64 `json:"reward_min"`
	RewardMax    float64 `json:"reward_max"`
	LengthMean   float64 `json:"length_mean"`
	LengthStd    float64 `json:"length_std"`
	LengthMin    float64 `json:"length_min"`
	LengthMax    float64 `json:"length_max"`
	TotalSteps   int64   `json:"total_steps"`
}

// RunReport ties a run's configuration to its aggregate statistics and
// per-episode rows. Persisted once at the end of a run.
type RunReport struct {
	VersionedRecord
	Config               RunConfig       `json:"config"`
	Stats                RunStats        `json:"stats"`
	Results              []EpisodeResult `json:"results"`
	GeneratedAtUTC       string          `json:"generated_at_utc"`
	PersistenceDegraded  bool            `json:"persistence_degraded,omitempty"`
	PersistenceLastError string          `json:"persistence_last_error,omitempty"`
}
