package graph

import (
	"context"
	"fmt"

	"github.com/smallnest/stepgraph/store"
	"github.com/smallnest/stepgraph/store/file"
	"github.com/smallnest/stepgraph/store/memory"
)

// Checkpoint is the persisted snapshot of a run after a step.
type Checkpoint[S any] = store.Checkpoint[S]

// NewMemoryCheckpointer returns an in-process checkpointer.
func NewMemoryCheckpointer[S any]() *memory.Checkpointer[S] {
	return memory.NewCheckpointer[S]()
}

// NewFileCheckpointer returns a checkpointer writing one JSONL file per run
// under dir.
func NewFileCheckpointer[S any](dir string) (*file.Checkpointer[S], error) {
	return file.NewCheckpointer[S](dir)
}

// GetState returns the latest checkpoint of runID, or nil if the run has
// none.
func (p *Program[S]) GetState(ctx context.Context, runID string) (*Checkpoint[S], error) {
	if p.checkpointer == nil {
		return nil, ErrNoCheckpointer
	}
	cp, err := p.checkpointer.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for run %s: %w", runID, err)
	}
	return cp, nil
}

// UpdateState merges values into the latest state of runID and saves the
// result as a new checkpoint at the same step. With an empty asNode the
// update keeps the position of the latest checkpoint, including a pending
// interrupt-before pause. Otherwise the run is treated as if asNode had
// produced values, and a resume routes from asNode.
func (p *Program[S]) UpdateState(ctx context.Context, runID string, values S, asNode string) (*Checkpoint[S], error) {
	cp, err := p.GetState(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, fmt.Errorf("%w %s", ErrNoCheckpoint, runID)
	}

	next := *cp
	next.State = p.schema.Merge(cp.State, values)
	next.CreatedAt = now()
	if asNode != "" {
		if _, ok := p.nodes[asNode]; !ok && asNode != START {
			return nil, &MissingNodeError{Node: asNode}
		}
		next.Node = asNode
		next.PausedBefore = ""
	}

	if err := p.checkpointer.Save(ctx, next); err != nil {
		return nil, &CheckpointFailedError{Node: next.Node, Step: next.Step, Err: err}
	}
	p.logger.Debug("run %s state updated as %s at step %d", runID, next.Node, next.Step)
	return &next, nil
}
