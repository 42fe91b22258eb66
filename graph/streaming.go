package graph

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/smallnest/stepgraph/store"
)

// EventKind is the type of a GraphEvent.
type EventKind string

const (
	EventNodeEnter       EventKind = "node_enter"
	EventCheckpointSaved EventKind = "checkpoint_saved"
	EventNodeExit        EventKind = "node_exit"
	EventCompleted       EventKind = "completed"
	EventInterrupted     EventKind = "interrupted"
	EventError           EventKind = "error"
)

var errStreamClosed = errors.New("stream consumer stopped")

// GraphEvent is one observable moment of a streamed run.
type GraphEvent[S any] struct {
	Kind  EventKind
	RunID string
	Node  string
	// Step is the step counter at the time of the event.
	Step     int
	State    S
	Duration time.Duration
	Err      error

	Timestamp time.Time
}

// Terminal reports whether e is the last event of a stream.
func (e GraphEvent[S]) Terminal() bool {
	switch e.Kind {
	case EventCompleted, EventInterrupted, EventError:
		return true
	}
	return false
}

// Stream runs the program lazily, yielding events as the run advances.
// The sequence ends with exactly one terminal event. Breaking out of the
// range loop stops the run at the next event boundary.
func (p *Program[S]) Stream(ctx context.Context, initial S, opts ...RunOption) iter.Seq[GraphEvent[S]] {
	return func(yield func(GraphEvent[S]) bool) {
		r := p.newRun(initial, opts)
		r.emit = yield
		p.execute(ctx, r)
	}
}

// StreamResume is the streaming form of Resume.
func (p *Program[S]) StreamResume(ctx context.Context, cp store.Checkpoint[S], opts ...RunOption) iter.Seq[GraphEvent[S]] {
	return func(yield func(GraphEvent[S]) bool) {
		p.resume(ctx, cp, yield, opts)
	}
}
