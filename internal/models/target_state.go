package models

import "time"

type RunnerState string

const (
	StateIdle            RunnerState = "idle"
	StateFetching        RunnerState = "fetching"
	StateDiffing         RunnerState = "diffing"
	StatePersisting      RunnerState = "persisting"
	StateNotifying       RunnerState = "notifying"
	StateSleeping        RunnerState = "sleeping"
	StateErrorRecovering RunnerState = "error-recovering"
	StateFatal           RunnerState = "fatal"
	StateStopped         RunnerState = "stopped"
)

// Terminal reports whether the runner has exited for good.
func (s RunnerState) Terminal() bool {
	return s == StateFatal || s == StateStopped
}

// TargetState is the per-target aggregate owned by its runner.
type TargetState struct {
	Username      string        `json:"username"`
	State         RunnerState   `json:"state"`
	Baseline      *Snapshot     `json:"baseline,omitempty"`
	Interval      time.Duration `json:"interval"`
	LastCheck     time.Time     `json:"last_check"`
	NextCheck     time.Time     `json:"next_check"`
	Checks        int64         `json:"checks"`
	Failures      int           `json:"failures"`
	LivenessBeats int64         `json:"liveness_beats"`
	LastBeat      time.Time     `json:"last_beat"`
	LastError     string        `json:"last_error,omitempty"`
}
