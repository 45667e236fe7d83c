package model

import "time"

// LoadStatus is the outcome of a load request.
type LoadStatus int

const (
	LoadStatusRunning    LoadStatus = 0
	LoadStatusCompleted  LoadStatus = 1
	LoadStatusFailed     LoadStatus = 2
	LoadStatusAborted    LoadStatus = 3
	LoadStatusSuperseded LoadStatus = 4
)

// String returns the string representation of LoadStatus.
func (s LoadStatus) String() string {
	switch s {
	case LoadStatusRunning:
		return "running"
	case LoadStatusCompleted:
		return "completed"
	case LoadStatusFailed:
		return "failed"
	case LoadStatusAborted:
		return "aborted"
	case LoadStatusSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further updates are expected.
func (s LoadStatus) IsTerminal() bool {
	return s != LoadStatusRunning
}

// LoadRecord describes one tree build.
type LoadRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Input       string     `json:"input"`
	Options     string     `json:"options"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Status      LoadStatus `json:"status"`
	FileEntries int64      `json:"file_entries"`
	RootSize    float64    `json:"root_size"`
	DiffMode    bool       `json:"diff_mode"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Duration returns the build duration, or zero while running.
func (r *LoadRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
