package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/stepgraph/store"
)

// TraceEvent represents different types of events in graph execution
type TraceEvent string

const (
	// TraceEventNodeStart indicates the start of node execution
	TraceEventNodeStart TraceEvent = "node_start"

	// TraceEventNodeEnd indicates the end of node execution
	TraceEventNodeEnd TraceEvent = "node_end"

	// TraceEventNodeError indicates an error occurred in node execution
	TraceEventNodeError TraceEvent = "node_error"

	// TraceEventToolCall indicates a tool invoked by a node
	TraceEventToolCall TraceEvent = "tool_call"

	// TraceEventCheckpoint indicates a persisted checkpoint
	TraceEventCheckpoint TraceEvent = "checkpoint"
)

// TraceSpan represents a span of execution with timing and metadata
type TraceSpan struct {
	ID string
	// ParentID is the node span a tool or checkpoint span belongs to.
	ParentID string
	Event    TraceEvent
	RunID    string
	NodeName string
	Step     int

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Error    error
	Metadata map[string]any
}

// TraceHook defines the interface for trace event handlers
type TraceHook interface {
	// OnEvent is called when a span starts and again when it ends
	OnEvent(ctx context.Context, span *TraceSpan)
}

// TraceHookFunc is a function adapter for TraceHook
type TraceHookFunc func(ctx context.Context, span *TraceSpan)

// OnEvent implements the TraceHook interface
func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// TracingObserver turns observer callbacks into spans. One span is opened
// per node execution; tool calls and checkpoints become child spans. It is
// safe for concurrent runs.
type TracingObserver[S any] struct {
	mu    sync.Mutex
	hooks []TraceHook
	spans []*TraceSpan
	open  map[string]*TraceSpan
	tools map[string]*TraceSpan
}

var (
	_ Observer[int]           = (*TracingObserver[int])(nil)
	_ ToolObserver            = (*TracingObserver[int])(nil)
	_ CheckpointObserver[int] = (*TracingObserver[int])(nil)
)

// NewTracingObserver creates a new tracer instance
func NewTracingObserver[S any](hooks ...TraceHook) *TracingObserver[S] {
	return &TracingObserver[S]{
		hooks: hooks,
		open:  make(map[string]*TraceSpan),
		tools: make(map[string]*TraceSpan),
	}
}

// AddHook registers a new trace hook
func (t *TracingObserver[S]) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

func (t *TracingObserver[S]) OnNodeStart(ctx context.Context, node string, _ GraphState[S]) {
	info, _ := RunInfoFromContext(ctx)
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventNodeStart,
		RunID:     info.RunID,
		NodeName:  node,
		Step:      info.Step,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}

	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.open[spanKey(info.RunID, node)] = span
	t.mu.Unlock()

	t.notify(ctx, span)
}

func (t *TracingObserver[S]) OnNodeEnd(ctx context.Context, node string, _ StateUpdate[S], duration time.Duration) {
	t.finish(ctx, node, nil, duration)
}

func (t *TracingObserver[S]) OnError(ctx context.Context, node string, err error) {
	t.finish(ctx, node, err, 0)
}

func (t *TracingObserver[S]) OnToolCall(ctx context.Context, node, tool, input string) {
	info, _ := RunInfoFromContext(ctx)
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventToolCall,
		RunID:     info.RunID,
		NodeName:  node,
		Step:      info.Step,
		StartTime: time.Now(),
		Metadata:  map[string]any{"tool": tool, "input": input},
	}

	t.mu.Lock()
	if parent := t.open[spanKey(info.RunID, node)]; parent != nil {
		span.ParentID = parent.ID
	}
	t.spans = append(t.spans, span)
	t.tools[spanKey(info.RunID, node, tool)] = span
	t.mu.Unlock()

	t.notify(ctx, span)
}

func (t *TracingObserver[S]) OnToolResult(ctx context.Context, node, tool, output string, err error) {
	info, _ := RunInfoFromContext(ctx)
	key := spanKey(info.RunID, node, tool)

	t.mu.Lock()
	span := t.tools[key]
	delete(t.tools, key)
	if span != nil {
		span.EndTime = time.Now()
		span.Duration = span.EndTime.Sub(span.StartTime)
		span.Error = err
		span.Metadata["output"] = output
	}
	t.mu.Unlock()

	if span != nil {
		t.notify(ctx, span)
	}
}

func (t *TracingObserver[S]) OnCheckpointSaved(ctx context.Context, cp store.Checkpoint[S]) {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventCheckpoint,
		RunID:     cp.RunID,
		NodeName:  cp.Node,
		Step:      cp.Step,
		StartTime: cp.CreatedAt,
		EndTime:   cp.CreatedAt,
		Metadata:  make(map[string]any),
	}
	if cp.PausedBefore != "" {
		span.Metadata["paused_before"] = cp.PausedBefore
	}

	t.mu.Lock()
	if parent := t.open[spanKey(cp.RunID, cp.Node)]; parent != nil {
		span.ParentID = parent.ID
	}
	t.spans = append(t.spans, span)
	t.mu.Unlock()

	t.notify(ctx, span)
}

// finish closes the open span of node. Errors raised outside of a node
// invocation get a span of their own.
func (t *TracingObserver[S]) finish(ctx context.Context, node string, err error, duration time.Duration) {
	info, _ := RunInfoFromContext(ctx)
	key := spanKey(info.RunID, node)

	t.mu.Lock()
	span := t.open[key]
	delete(t.open, key)
	if span == nil {
		span = &TraceSpan{
			ID:        uuid.NewString(),
			RunID:     info.RunID,
			NodeName:  node,
			Step:      info.Step,
			StartTime: time.Now(),
			Metadata:  make(map[string]any),
		}
		t.spans = append(t.spans, span)
	}
	span.EndTime = time.Now()
	span.Duration = duration
	if duration == 0 {
		span.Duration = span.EndTime.Sub(span.StartTime)
	}
	span.Error = err
	span.Event = TraceEventNodeEnd
	if err != nil {
		span.Event = TraceEventNodeError
	}
	t.mu.Unlock()

	t.notify(ctx, span)
}

func (t *TracingObserver[S]) notify(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	hooks := append([]TraceHook(nil), t.hooks...)
	t.mu.Unlock()
	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

// Spans returns all collected spans in the order they were opened.
func (t *TracingObserver[S]) Spans() []*TraceSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*TraceSpan(nil), t.spans...)
}

// Clear removes all collected spans
func (t *TracingObserver[S]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
	t.open = make(map[string]*TraceSpan)
	t.tools = make(map[string]*TraceSpan)
}

func spanKey(parts ...string) string {
	return fmt.Sprint(parts)
}
