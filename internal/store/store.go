// Package store persists optimization runs so that the service can report
// on them after they finish.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether s is a terminal state.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run is one comparison request and, once finished, its outcome.
type Run struct {
	ID         string                 `json:"id"`
	Engine     string                 `json:"engine"`
	Output     string                 `json:"output"`
	Status     Status                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	Comparison *comparison.Comparison `json:"comparison,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Store defines the persistence operations for runs. Get reports a missing
// run with ok=false rather than an error.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

func encodeRun(run Run) ([]byte, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return nil, errors.Wrapf(err, "encode run %s", run.ID)
	}
	return payload, nil
}

func decodeRun(payload []byte) (Run, error) {
	var run Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return Run{}, errors.Wrap(err, "decode run")
	}
	return run, nil
}

func validateRun(run Run) error {
	if run.ID == "" {
		return errors.InvalidInputf("run id is required")
	}
	return nil
}
