// Package memory provides an in-process checkpointer.
package memory

import (
	"context"
	"sync"

	"github.com/smallnest/stepgraph/store"
)

// Checkpointer keeps every checkpoint of every run in a guarded map.
// States are stored encoded, so later mutation of a state value by the
// caller never leaks into saved history.
type Checkpointer[S any] struct {
	mu    sync.RWMutex
	codec store.Codec[S]
	runs  map[string][][]byte
}

var (
	_ store.HistoryCheckpointer[int] = (*Checkpointer[int])(nil)
	_ store.Clearer                  = (*Checkpointer[int])(nil)
)

// NewCheckpointer creates an empty in-memory checkpointer using JSON.
func NewCheckpointer[S any]() *Checkpointer[S] {
	return NewCheckpointerWithCodec[S](store.JSONCodec[S]{})
}

// NewCheckpointerWithCodec creates an empty in-memory checkpointer.
func NewCheckpointerWithCodec[S any](codec store.Codec[S]) *Checkpointer[S] {
	return &Checkpointer[S]{
		codec: codec,
		runs:  make(map[string][][]byte),
	}
}

// Save appends the checkpoint to the run's history.
func (m *Checkpointer[S]) Save(_ context.Context, cp store.Checkpoint[S]) error {
	if err := store.ValidateRunID(cp.RunID); err != nil {
		return err
	}
	data, err := store.EncodeCheckpoint(m.codec, cp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.runs[cp.RunID] = append(m.runs[cp.RunID], data)
	m.mu.Unlock()
	return nil
}

// Load returns the most recent checkpoint of runID, or nil.
func (m *Checkpointer[S]) Load(_ context.Context, runID string) (*store.Checkpoint[S], error) {
	m.mu.RLock()
	history := m.runs[runID]
	var latest []byte
	if len(history) > 0 {
		latest = history[len(history)-1]
	}
	m.mu.RUnlock()

	if latest == nil {
		return nil, nil
	}
	return store.DecodeCheckpoint(m.codec, latest)
}

// List returns the history of runID, oldest first.
func (m *Checkpointer[S]) List(_ context.Context, runID string) ([]store.Metadata, error) {
	m.mu.RLock()
	history := append([][]byte(nil), m.runs[runID]...)
	m.mu.RUnlock()

	out := make([]store.Metadata, 0, len(history))
	for i, data := range history {
		meta, err := store.DecodeMetadata(int64(i+1), data)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Clear drops the history of runID.
func (m *Checkpointer[S]) Clear(_ context.Context, runID string) error {
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
	return nil
}

// Runs returns the ids of all runs with at least one checkpoint.
func (m *Checkpointer[S]) Runs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids
}
