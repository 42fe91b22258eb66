package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/stepgraph/log"
	"github.com/smallnest/stepgraph/store"
)

// Observer receives node lifecycle callbacks. Callbacks run synchronously in
// step order; a panicking callback is recovered and logged and never changes
// the outcome of a run.
type Observer[S any] interface {
	OnNodeStart(ctx context.Context, node string, input GraphState[S])
	OnNodeEnd(ctx context.Context, node string, output StateUpdate[S], duration time.Duration)
	OnError(ctx context.Context, node string, err error)
}

// ToolObserver is implemented by observers that want tool call events.
type ToolObserver interface {
	OnToolCall(ctx context.Context, node, tool, input string)
	OnToolResult(ctx context.Context, node, tool, output string, err error)
}

// CheckpointObserver is implemented by observers that want to know when a
// checkpoint was persisted.
type CheckpointObserver[S any] interface {
	OnCheckpointSaved(ctx context.Context, checkpoint store.Checkpoint[S])
}

// NoOpObserver implements every observer hook with an empty body. Embed it
// to implement only the callbacks you need.
type NoOpObserver[S any] struct{}

func (NoOpObserver[S]) OnNodeStart(context.Context, string, GraphState[S]) {}
func (NoOpObserver[S]) OnNodeEnd(context.Context, string, StateUpdate[S], time.Duration) {}
func (NoOpObserver[S]) OnError(context.Context, string, error) {}
func (NoOpObserver[S]) OnToolCall(context.Context, string, string, string) {}
func (NoOpObserver[S]) OnToolResult(context.Context, string, string, string, error) {}
func (NoOpObserver[S]) OnCheckpointSaved(context.Context, store.Checkpoint[S]) {}

// MultiObserver fans every callback out to its children in order. A
// panicking child does not prevent the others from being called.
type MultiObserver[S any] struct {
	observers []Observer[S]
	logger    log.Logger
}

var (
	_ ToolObserver            = (*MultiObserver[int])(nil)
	_ CheckpointObserver[int] = (*MultiObserver[int])(nil)
)

// NewMultiObserver combines observers; nil entries are skipped.
func NewMultiObserver[S any](observers ...Observer[S]) *MultiObserver[S] {
	m := &MultiObserver[S]{logger: log.GetDefaultLogger()}
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

func (m *MultiObserver[S]) OnNodeStart(ctx context.Context, node string, input GraphState[S]) {
	for _, o := range m.observers {
		safeCall(m.logger, "OnNodeStart", func() { o.OnNodeStart(ctx, node, input) })
	}
}

func (m *MultiObserver[S]) OnNodeEnd(ctx context.Context, node string, output StateUpdate[S], d time.Duration) {
	for _, o := range m.observers {
		safeCall(m.logger, "OnNodeEnd", func() { o.OnNodeEnd(ctx, node, output, d) })
	}
}

func (m *MultiObserver[S]) OnError(ctx context.Context, node string, err error) {
	for _, o := range m.observers {
		safeCall(m.logger, "OnError", func() { o.OnError(ctx, node, err) })
	}
}

func (m *MultiObserver[S]) OnToolCall(ctx context.Context, node, tool, input string) {
	for _, o := range m.observers {
		if to, ok := o.(ToolObserver); ok {
			safeCall(m.logger, "OnToolCall", func() { to.OnToolCall(ctx, node, tool, input) })
		}
	}
}

func (m *MultiObserver[S]) OnToolResult(ctx context.Context, node, tool, output string, err error) {
	for _, o := range m.observers {
		if to, ok := o.(ToolObserver); ok {
			safeCall(m.logger, "OnToolResult", func() { to.OnToolResult(ctx, node, tool, output, err) })
		}
	}
}

func (m *MultiObserver[S]) OnCheckpointSaved(ctx context.Context, cp store.Checkpoint[S]) {
	for _, o := range m.observers {
		if co, ok := o.(CheckpointObserver[S]); ok {
			safeCall(m.logger, "OnCheckpointSaved", func() { co.OnCheckpointSaved(ctx, cp) })
		}
	}
}

// LoggingObserver writes every callback to a log.Logger.
type LoggingObserver[S any] struct {
	Logger log.Logger
}

// NewLoggingObserver logs through logger, or the package default when nil.
func NewLoggingObserver[S any](logger log.Logger) *LoggingObserver[S] {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &LoggingObserver[S]{Logger: logger}
}

func (l *LoggingObserver[S]) OnNodeStart(ctx context.Context, node string, _ GraphState[S]) {
	info, _ := RunInfoFromContext(ctx)
	l.Logger.Info("run %s: node %s started (step %d)", info.RunID, node, info.Step)
}

func (l *LoggingObserver[S]) OnNodeEnd(ctx context.Context, node string, _ StateUpdate[S], d time.Duration) {
	info, _ := RunInfoFromContext(ctx)
	l.Logger.Info("run %s: node %s finished in %s", info.RunID, node, d)
}

func (l *LoggingObserver[S]) OnError(ctx context.Context, node string, err error) {
	info, _ := RunInfoFromContext(ctx)
	l.Logger.Error("run %s: node %s failed: %v", info.RunID, node, err)
}

func (l *LoggingObserver[S]) OnToolCall(ctx context.Context, node, tool, input string) {
	l.Logger.Debug("node %s: calling tool %s with %q", node, tool, input)
}

func (l *LoggingObserver[S]) OnToolResult(ctx context.Context, node, tool, output string, err error) {
	if err != nil {
		l.Logger.Warn("node %s: tool %s failed: %v", node, tool, err)
		return
	}
	l.Logger.Debug("node %s: tool %s returned %q", node, tool, output)
}

func (l *LoggingObserver[S]) OnCheckpointSaved(_ context.Context, cp store.Checkpoint[S]) {
	l.Logger.Debug("run %s: checkpoint saved at step %d after %s", cp.RunID, cp.Step, cp.Node)
}

// safeCall runs fn and logs a recovered panic instead of propagating it.
func safeCall(logger log.Logger, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = log.GetDefaultLogger()
			}
			logger.Error("observer %s panicked: %v", hook, fmt.Sprint(r))
		}
	}()
	fn()
}
