// Package file provides a checkpointer that appends JSON lines to one file
// per run inside a directory.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/smallnest/stepgraph/store"
)

const ext = ".jsonl"

// Checkpointer writes each checkpoint as one line of <dir>/<run>.jsonl.
type Checkpointer[S any] struct {
	dir   string
	codec store.Codec[S]
	mu    sync.Mutex
}

var (
	_ store.HistoryCheckpointer[int] = (*Checkpointer[int])(nil)
	_ store.Clearer                  = (*Checkpointer[int])(nil)
)

// NewCheckpointer creates the directory if needed and returns a JSON
// checkpointer rooted at it.
func NewCheckpointer[S any](dir string) (*Checkpointer[S], error) {
	return NewCheckpointerWithCodec[S](dir, store.JSONCodec[S]{})
}

// NewCheckpointerWithCodec is NewCheckpointer with a custom state codec.
func NewCheckpointerWithCodec[S any](dir string, codec store.Codec[S]) (*Checkpointer[S], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Checkpointer[S]{dir: dir, codec: codec}, nil
}

// Path returns the file used for runID.
func (f *Checkpointer[S]) Path(runID string) string {
	return filepath.Join(f.dir, store.SanitizeRunID(runID)+ext)
}

// Save appends the checkpoint to the run's file.
func (f *Checkpointer[S]) Save(_ context.Context, cp store.Checkpoint[S]) error {
	if err := store.ValidateRunID(cp.RunID); err != nil {
		return err
	}
	data, err := store.EncodeCheckpoint(f.codec, cp)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.Path(cp.RunID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	if _, err := fh.Write(append(data, '\n')); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	return fh.Close()
}

// Load returns the last checkpoint recorded for runID, or nil.
func (f *Checkpointer[S]) Load(_ context.Context, runID string) (*store.Checkpoint[S], error) {
	lines, err := f.lines(runID)
	if err != nil {
		return nil, err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		cp, err := store.DecodeCheckpoint(f.codec, lines[i])
		if err != nil {
			return nil, err
		}
		if cp.RunID == runID {
			return cp, nil
		}
	}
	return nil, nil
}

// List returns the history of runID, oldest first.
func (f *Checkpointer[S]) List(_ context.Context, runID string) ([]store.Metadata, error) {
	lines, err := f.lines(runID)
	if err != nil {
		return nil, err
	}
	out := make([]store.Metadata, 0, len(lines))
	for _, line := range lines {
		cp, err := store.DecodeCheckpoint(f.codec, line)
		if err != nil {
			return nil, err
		}
		if cp.RunID != runID {
			continue
		}
		out = append(out, store.Metadata{
			Seq:       int64(len(out) + 1),
			Step:      cp.Step,
			Node:      cp.Node,
			CreatedAt: cp.CreatedAt,
		})
	}
	return out, nil
}

// Clear removes the run's file.
func (f *Checkpointer[S]) Clear(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.Path(runID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}
	return nil
}

// lines reads the non-empty lines of the run's file.
func (f *Checkpointer[S]) lines(runID string) ([][]byte, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.Path(runID))
	f.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var out [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			out = append(out, line)
		}
	}
	return out, nil
}
