package models

import "time"

// RenderedManifestSet describes a published manifest file. The renderer
// owns the content until the atomic rename; after that the file at Path
// is the artifact of record.
type RenderedManifestSet struct {
	Path      string
	Hash      string
	Resources []string
	Validated bool
}

// RolloutPhase is the terminal state of a convergence wait.
type RolloutPhase string

const (
	RolloutReady    RolloutPhase = "Ready"
	RolloutTimedOut RolloutPhase = "TimedOut"
	RolloutFailed   RolloutPhase = "Failed"
)

// RolloutOutcome is the result of waiting for convergence. Non-Ready
// outcomes carry the diagnostics snapshot collected before giving up.
type RolloutOutcome struct {
	Phase       RolloutPhase
	Reason      string
	Elapsed     time.Duration
	Diagnostics []DiagnosticEntry
}

// DiagnosticEntry is one best-effort observation collected while
// diagnosing a failed rollout. Collection errors are recorded as data so
// a diagnostics pass always completes.
type DiagnosticEntry struct {
	Source string
	Detail string
	Err    string
}

// CheckResult is a single named functional check against the live cache.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// VerificationReport aggregates the functional check battery. The rollout
// only passes if every check passed.
type VerificationReport struct {
	Checks []CheckResult `json:"checks"`
}

// Passed reports whether every check in the battery passed.
func (r VerificationReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedCount returns how many checks did not pass.
func (r VerificationReport) FailedCount() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed {
			n++
		}
	}
	return n
}

// RolloutRecord is the persisted history row for one rollout or teardown.
type RolloutRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Action       string    `gorm:"index" json:"action"`
	Namespace    string    `gorm:"index" json:"namespace"`
	Workload     string    `json:"workload"`
	ClusterType  string    `json:"clusterType"`
	Replicas     int       `json:"replicas"`
	Persistence  bool      `json:"persistence"`
	ManifestHash string    `json:"manifestHash"`
	Outcome      string    `json:"outcome"`
	ChecksPassed int       `json:"checksPassed"`
	ChecksFailed int       `json:"checksFailed"`
	Detail       string    `json:"detail"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	DurationMS   int64     `json:"durationMs"`
}
