package graph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallnest/stepgraph/store"
)

type counterState struct {
	Count int      `json:"count"`
	Trace []string `json:"trace,omitempty"`
}

// step returns a node that adds delta to Count and records its name.
func step(name string, delta int) NodeFunc[counterState] {
	return func(_ context.Context, s GraphState[counterState]) (StateUpdate[counterState], error) {
		return NewStateUpdate(counterState{
			Count: s.Data.Count + delta,
			Trace: append(append([]string(nil), s.Data.Trace...), name),
		}), nil
	}
}

// chain builds entry -> ... -> END over the given node names, each adding 1.
func chain(names ...string) *StateGraph[counterState] {
	g := NewStateGraph[counterState]()
	for _, n := range names {
		g.AddNode(n, step(n, 1))
	}
	g.SetEntryPoint(names[0])
	for i := 0; i < len(names)-1; i++ {
		g.AddEdge(names[i], names[i+1])
	}
	g.AddEdge(names[len(names)-1], END)
	return g
}

type failingCheckpointer[S any] struct{}

var errDiskFull = errors.New("disk full")

func (failingCheckpointer[S]) Save(context.Context, store.Checkpoint[S]) error { return errDiskFull }

func (failingCheckpointer[S]) Load(context.Context, string) (*store.Checkpoint[S], error) {
	return nil, nil
}

// recordingObserver records every callback as "<hook>:<node>".
type recordingObserver[S any] struct {
	NoOpObserver[S]
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recordingObserver[S]) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver[S]) OnNodeStart(_ context.Context, node string, _ GraphState[S]) {
	r.add("start:" + node)
}

func (r *recordingObserver[S]) OnNodeEnd(_ context.Context, node string, _ StateUpdate[S], _ time.Duration) {
	r.add("end:" + node)
}

func (r *recordingObserver[S]) OnError(_ context.Context, node string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.add("error:" + node)
}

func (r *recordingObserver[S]) OnToolCall(_ context.Context, node, tool, _ string) {
	r.add("tool_call:" + node + ":" + tool)
}

func (r *recordingObserver[S]) OnToolResult(_ context.Context, node, tool, _ string, _ error) {
	r.add("tool_result:" + node + ":" + tool)
}

func (r *recordingObserver[S]) OnCheckpointSaved(_ context.Context, cp store.Checkpoint[S]) {
	r.add("checkpoint:" + cp.Node)
}

func (r *recordingObserver[S]) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
