// Package storage defines the storage interface for summary run records.
package storage

import (
	"context"
)

// Storage defines the interface for run-record storage backends.
// Implementations must be safe for concurrent use by multiple goroutines.
type Storage interface {
	StoreRun(ctx context.Context, run *RunRecord) error
	ListRunsForPR(ctx context.Context, owner, repo string, prNumber int) ([]*RunRecord, error)
	LatestRunForPR(ctx context.Context, owner, repo string, prNumber int) (*RunRecord, error)
}
