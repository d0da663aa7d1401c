package monitor

import "time"

// CheckResult is the outcome of one named dependency check.
type CheckResult struct {
	Healthy  bool          `json:"healthy"`
	Critical bool          `json:"critical"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Status is the last snapshot of every registered check.
type Status struct {
	Online     bool                   `json:"online"`
	Checks     map[string]CheckResult `json:"checks"`
	OutboxSize int                    `json:"outbox_size"`
	LastCheck  time.Time              `json:"last_check"`
}
