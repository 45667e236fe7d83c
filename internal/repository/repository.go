// Package repository persists the history of tree builds.
package repository

import (
	"context"
	"time"

	"github.com/size-analysis/pkg/model"
)

// LoadRepository defines the operations on load records.
type LoadRepository interface {
	// CreateLoad inserts a new running load.
	CreateLoad(ctx context.Context, rec *model.LoadRecord) error

	// FinishLoad stores the outcome of a load.
	FinishLoad(ctx context.Context, id string, outcome *LoadOutcome) error

	// GetLoad retrieves a load by its ID.
	GetLoad(ctx context.Context, id string) (*model.LoadRecord, error)

	// ListLoads returns the most recent loads, newest first. An empty
	// sessionID lists loads of every session.
	ListLoads(ctx context.Context, sessionID string, limit int) ([]*model.LoadRecord, error)
}

// LoadOutcome is the terminal state of a load.
type LoadOutcome struct {
	Status      model.LoadStatus
	FileEntries int64
	RootSize    float64
	DiffMode    bool
	Fingerprint string
	Error       string
	FinishedAt  time.Time
}

// DefaultListLimit is used when a non-positive limit is requested.
const DefaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
