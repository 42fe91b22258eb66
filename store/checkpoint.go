package store

import (
	"context"
	"errors"
	"time"
)

// StartNode marks a checkpoint written before any node ran.
const StartNode = "__start__"

// ErrInvalidRunID is returned when a run id cannot be used as a storage key.
var ErrInvalidRunID = errors.New("invalid run id")

// Checkpoint is a durable snapshot of a run after Step nodes have executed.
type Checkpoint[S any] struct {
	RunID     string    `json:"run_id"`
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	CreatedAt time.Time `json:"created_at"`
	State     S         `json:"state"`
	// PausedBefore names the node a run paused in front of, if any.
	PausedBefore string `json:"paused_before,omitempty"`
}

// Now returns the current time in UTC at microsecond precision, the finest
// resolution every backend stores without loss.
func Now() time.Time {
	return Timestamp(time.Now())
}

// Timestamp normalizes t to the form checkpoints are stored in.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Metadata describes one entry in a run's checkpoint history.
type Metadata struct {
	Seq       int64     `json:"seq"`
	Step      int       `json:"step"`
	Node      string    `json:"node"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpointer persists checkpoints keyed by run id.
//
// Save keeps at least the most recent checkpoint of a run. Load returns the
// latest checkpoint, or nil and no error when the run never checkpointed.
// Implementations must be safe for concurrent use by different runs.
type Checkpointer[S any] interface {
	Save(ctx context.Context, checkpoint Checkpoint[S]) error
	Load(ctx context.Context, runID string) (*Checkpoint[S], error)
}

// HistoryCheckpointer is a Checkpointer that also keeps every saved checkpoint.
type HistoryCheckpointer[S any] interface {
	Checkpointer[S]
	List(ctx context.Context, runID string) ([]Metadata, error)
}

// Clearer removes all checkpoints of a run.
type Clearer interface {
	Clear(ctx context.Context, runID string) error
}
