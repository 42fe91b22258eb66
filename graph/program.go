package graph

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/stepgraph/log"
	"github.com/smallnest/stepgraph/store"
)

// Status is the kind of result a run ended with.
type Status int

const (
	StatusCompleted Status = iota
	StatusInterrupted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusInterrupted:
		return "interrupted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// InterruptKind tells whether an interrupted node already ran.
type InterruptKind int

const (
	// InterruptBefore: the node has not been invoked.
	InterruptBefore InterruptKind = iota + 1
	// InterruptAfter: the node ran, its update was merged and checkpointed.
	InterruptAfter
)

func (k InterruptKind) String() string {
	switch k {
	case InterruptBefore:
		return "before"
	case InterruptAfter:
		return "after"
	default:
		return "none"
	}
}

// Outcome is the result of a run.
type Outcome[S any] struct {
	Status Status
	// State is the final state, the state at the pause point, or the last
	// state reached before a failure.
	State S
	// Node is the interrupted node, or the node a failure is attributed to.
	Node  string
	Kind  InterruptKind
	Step  int
	RunID string
	Err   error

	prev string
}

// Checkpoint returns the checkpoint that resumes an interrupted outcome.
// It matches what the program saved, so it can be used without a checkpointer.
func (o Outcome[S]) Checkpoint() store.Checkpoint[S] {
	cp := store.Checkpoint[S]{RunID: o.RunID, Step: o.Step, Node: o.Node, State: o.State}
	if o.Kind == InterruptBefore {
		cp.Node = o.prev
		cp.PausedBefore = o.Node
	}
	return cp
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

type runOptions struct {
	runID    string
	config   *ExecutionConfig
	observer any
}

// WithRunID sets the run identity checkpoints are saved under. Resumed runs
// keep the run id of their checkpoint.
func WithRunID(runID string) RunOption {
	return func(o *runOptions) { o.runID = runID }
}

// WithRunConfig replaces the program's execution limits for one run.
func WithRunConfig(cfg ExecutionConfig) RunOption {
	return func(o *runOptions) {
		cfg = cfg.normalize()
		o.config = &cfg
	}
}

// WithRunObserver replaces the program's observer for one run. An observer
// for a different state type than the program's is ignored.
func WithRunObserver[S any](obs Observer[S]) RunOption {
	return func(o *runOptions) { o.observer = obs }
}

// Program is a compiled graph. It is immutable and safe for concurrent runs.
type Program[S any] struct {
	nodes            map[string]Node[S]
	order            []string
	edges            map[string]string
	edgeList         []Edge
	conditionalEdges map[string]conditionalEdge[S]
	conditionalOrder []string
	entryPoint       string

	schema          StateSchema[S]
	checkpointer    store.Checkpointer[S]
	runID           string
	observer        Observer[S]
	interruptBefore map[string]struct{}
	interruptAfter  map[string]struct{}
	config          ExecutionConfig
	logger          log.Logger
}

// Nodes returns the node names in registration order.
func (p *Program[S]) Nodes() []string {
	return append([]string(nil), p.order...)
}

// EntryPoint returns the node fresh runs start at.
func (p *Program[S]) EntryPoint() string { return p.entryPoint }

// Config returns the execution limits.
func (p *Program[S]) Config() ExecutionConfig { return p.config }

// run is the mutable state of one execution.
type run[S any] struct {
	id         string
	state      S
	step       int
	current    string
	prev       string
	skipBefore bool
	recent     []visit[S]
	emit       func(GraphEvent[S]) bool
	stopped    bool

	config   ExecutionConfig
	observer Observer[S]
}

// visit records a node execution and the state it was handed.
type visit[S any] struct {
	node  string
	input S
}

func (r *run[S]) send(ev GraphEvent[S]) bool {
	if r.stopped || r.emit == nil {
		return !r.stopped
	}
	ev.RunID = r.id
	ev.Timestamp = time.Now()
	if !r.emit(ev) {
		r.stopped = true
	}
	return !r.stopped
}

func (p *Program[S]) newRun(state S, opts []RunOption) *run[S] {
	o := p.options(opts)
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	r := &run[S]{id: o.runID, state: state, current: p.entryPoint, prev: START}
	p.configure(r, o)
	return r
}

func (p *Program[S]) options(opts []RunOption) runOptions {
	o := runOptions{runID: p.runID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// configure applies the per-run overrides in o to r.
func (p *Program[S]) configure(r *run[S], o runOptions) {
	r.config, r.observer = p.config, p.observer
	if o.config != nil {
		r.config = *o.config
	}
	if o.observer != nil {
		obs, ok := o.observer.(Observer[S])
		if !ok {
			p.logger.Warn("run %s: ignoring observer of type %T", r.id, o.observer)
			return
		}
		r.observer = obs
	}
}

// Run executes the program from its entry point.
func (p *Program[S]) Run(ctx context.Context, initial S, opts ...RunOption) Outcome[S] {
	return p.execute(ctx, p.newRun(initial, opts))
}

// Invoke runs the program and returns the final state. An interrupted run
// returns the state at the pause point and a *GraphInterrupt.
func (p *Program[S]) Invoke(ctx context.Context, initial S, opts ...RunOption) (S, error) {
	return p.Run(ctx, initial, opts...).Result()
}

// Result converts an outcome to the (state, error) form used by Invoke.
func (o Outcome[S]) Result() (S, error) {
	switch o.Status {
	case StatusCompleted:
		return o.State, nil
	case StatusInterrupted:
		return o.State, &GraphInterrupt{Node: o.Node, Kind: o.Kind, State: o.State, Step: o.Step, RunID: o.RunID}
	default:
		return o.State, o.Err
	}
}

// Resume continues a run from cp. The node recorded in cp is not executed
// again: routing starts from its outgoing edge. A checkpoint written by an
// interrupt-before pause resumes at the paused node without pausing again.
func (p *Program[S]) Resume(ctx context.Context, cp store.Checkpoint[S], opts ...RunOption) Outcome[S] {
	return p.resume(ctx, cp, nil, opts)
}

// ResumeLatest loads the latest checkpoint of runID and resumes from it.
func (p *Program[S]) ResumeLatest(ctx context.Context, runID string, opts ...RunOption) Outcome[S] {
	cp, err := p.GetState(ctx, runID)
	if err == nil && cp == nil {
		err = fmt.Errorf("%w %s", ErrNoCheckpoint, runID)
	}
	if err != nil {
		return Outcome[S]{Status: StatusFailed, RunID: runID, Err: err}
	}
	return p.Resume(ctx, *cp, opts...)
}

func (p *Program[S]) resume(ctx context.Context, cp store.Checkpoint[S], emit func(GraphEvent[S]) bool, opts []RunOption) Outcome[S] {
	r := &run[S]{id: cp.RunID, state: cp.State, step: cp.Step, prev: cp.Node, emit: emit}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	p.configure(r, p.options(opts))

	if cp.PausedBefore != "" {
		if _, ok := p.nodes[cp.PausedBefore]; !ok {
			return p.fail(ctx, r, cp.PausedBefore, &MissingNodeError{Node: cp.PausedBefore})
		}
		r.current = cp.PausedBefore
		r.skipBefore = true
		return p.execute(ctx, r)
	}

	next, ok, err := p.route(ctx, cp.Node, r.state)
	if err != nil {
		return p.fail(ctx, r, cp.Node, err)
	}
	if !ok {
		return p.complete(r)
	}
	if r.step >= r.config.MaxSteps {
		return p.fail(ctx, r, cp.Node, &MaxStepsExceededError{Max: r.config.MaxSteps, Reached: r.step})
	}
	r.current = next
	return p.execute(ctx, r)
}

// execute drives the step loop from r.current.
func (p *Program[S]) execute(ctx context.Context, r *run[S]) Outcome[S] {
	for {
		current := r.current
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, r, current, &CancelledError{Node: current, Err: err})
		}

		if _, ok := p.interruptBefore[current]; ok && !r.skipBefore {
			if p.checkpointer != nil {
				cp := store.Checkpoint[S]{
					RunID:        r.id,
					Step:         r.step,
					Node:         r.prev,
					CreatedAt:    now(),
					State:        r.state,
					PausedBefore: current,
				}
				if err := p.save(ctx, r, cp); err != nil {
					return p.fail(ctx, r, current, err)
				}
			}
			return p.interrupt(r, current, InterruptBefore)
		}
		r.skipBefore = false

		node := p.nodes[current]
		input := NewGraphState(r.state)
		nodeCtx := withRunInfo(ctx, RunInfo{
			RunID:  r.id,
			Node:   current,
			Step:   r.step + 1,
			tools:  r.toolObserver(),
			logger: p.logger,
		})

		p.logger.Debug("run %s step %d: entering %s", r.id, r.step+1, current)
		p.notify(r, func(o Observer[S]) { o.OnNodeStart(nodeCtx, current, input) })
		if !r.send(GraphEvent[S]{Kind: EventNodeEnter, Node: current, Step: r.step, State: r.state}) {
			return p.stop(r)
		}

		start := time.Now()
		update, err := invokeNode(nodeCtx, node, input)
		duration := time.Since(start)
		if err != nil {
			return p.fail(nodeCtx, r, current, &NodeFailedError{Node: current, Err: err})
		}

		r.state = p.schema.Merge(r.state, update.Data)
		r.step++

		if p.checkpointer != nil {
			cp := store.Checkpoint[S]{
				RunID:     r.id,
				Step:      r.step,
				Node:      current,
				CreatedAt: now(),
				State:     r.state,
			}
			if err := p.save(nodeCtx, r, cp); err != nil {
				return p.fail(nodeCtx, r, current, err)
			}
			if r.stopped {
				return p.stop(r)
			}
		}

		p.notify(r, func(o Observer[S]) { o.OnNodeEnd(nodeCtx, current, update, duration) })
		if !r.send(GraphEvent[S]{Kind: EventNodeExit, Node: current, Step: r.step, State: r.state, Duration: duration}) {
			return p.stop(r)
		}

		if _, ok := p.interruptAfter[current]; ok {
			return p.interrupt(r, current, InterruptAfter)
		}

		next, ok, err := p.route(ctx, current, r.state)
		if err != nil {
			return p.fail(ctx, r, current, err)
		}
		if !ok {
			return p.complete(r)
		}

		if r.config.CycleDetection {
			if err := p.detectCycle(r, current, input.Data); err != nil {
				return p.fail(ctx, r, current, err)
			}
		}

		if r.step >= r.config.MaxSteps {
			return p.fail(ctx, r, current, &MaxStepsExceededError{Max: r.config.MaxSteps, Reached: r.step})
		}

		r.prev, r.current = current, next
	}
}

// route picks the successor of from. ok is false when the run should end.
func (p *Program[S]) route(ctx context.Context, from string, state S) (string, bool, error) {
	if from == START {
		return p.entryPoint, true, nil
	}
	if _, ok := p.nodes[from]; !ok {
		return "", false, &MissingNodeError{Node: from}
	}

	if ce, ok := p.conditionalEdges[from]; ok {
		next := ce.selector(ctx, NewGraphState(state))
		if next == "" || next == END {
			return "", false, nil
		}
		if _, ok := p.nodes[next]; !ok {
			return "", false, &InvalidEdgeError{Node: from, Reason: fmt.Sprintf("selector returned unknown node %q", next)}
		}
		return next, true, nil
	}

	if to, ok := p.edges[from]; ok && to != END {
		return to, true, nil
	}
	return "", false, nil
}

// detectCycle fails when node has run more than CycleThreshold times within
// the window on a state equal to input. A node that keeps being handed a
// different state is making progress, however often it repeats.
func (p *Program[S]) detectCycle(r *run[S], node string, input S) error {
	r.recent = append(r.recent, visit[S]{node: node, input: input})
	if over := len(r.recent) - r.config.CycleWindow; over > 0 {
		r.recent = r.recent[over:]
	}

	count := 0
	for _, v := range r.recent {
		if v.node == node && reflect.DeepEqual(v.input, input) {
			count++
		}
	}
	if count <= r.config.CycleThreshold {
		return nil
	}

	recent := make([]string, len(r.recent))
	for i, v := range r.recent {
		recent[i] = v.node
	}
	return &CycleDetectedError{Node: node, Recent: recent}
}

func (p *Program[S]) save(ctx context.Context, r *run[S], cp store.Checkpoint[S]) error {
	if err := p.checkpointer.Save(ctx, cp); err != nil {
		return &CheckpointFailedError{Node: cp.Node, Step: cp.Step, Err: err}
	}
	if co, ok := r.observer.(CheckpointObserver[S]); ok {
		safeCall(p.logger, "OnCheckpointSaved", func() { co.OnCheckpointSaved(ctx, cp) })
	}
	r.send(GraphEvent[S]{Kind: EventCheckpointSaved, Node: cp.Node, Step: cp.Step, State: cp.State})
	return nil
}

func (p *Program[S]) complete(r *run[S]) Outcome[S] {
	p.logger.Debug("run %s completed after %d steps", r.id, r.step)
	r.send(GraphEvent[S]{Kind: EventCompleted, Step: r.step, State: r.state})
	return Outcome[S]{Status: StatusCompleted, State: r.state, Step: r.step, RunID: r.id}
}

func (p *Program[S]) interrupt(r *run[S], node string, kind InterruptKind) Outcome[S] {
	p.logger.Info("run %s interrupted %s %s at step %d", r.id, kind, node, r.step)
	r.send(GraphEvent[S]{Kind: EventInterrupted, Node: node, Step: r.step, State: r.state})
	return Outcome[S]{
		Status: StatusInterrupted,
		State:  r.state,
		Node:   node,
		Kind:   kind,
		Step:   r.step,
		RunID:  r.id,
		prev:   r.prev,
	}
}

func (p *Program[S]) fail(ctx context.Context, r *run[S], node string, err error) Outcome[S] {
	p.logger.Error("run %s failed at %s: %v", r.id, node, err)
	p.notify(r, func(o Observer[S]) { o.OnError(ctx, node, err) })
	r.send(GraphEvent[S]{Kind: EventError, Node: node, Step: r.step, State: r.state, Err: err})
	return Outcome[S]{Status: StatusFailed, State: r.state, Node: node, Step: r.step, RunID: r.id, Err: err}
}

// stop ends a stream whose consumer stopped pulling events.
func (p *Program[S]) stop(r *run[S]) Outcome[S] {
	err := &CancelledError{Node: r.current, Err: errStreamClosed}
	return Outcome[S]{Status: StatusFailed, State: r.state, Node: r.current, Step: r.step, RunID: r.id, Err: err}
}

func (p *Program[S]) notify(r *run[S], fn func(Observer[S])) {
	if r.observer == nil {
		return
	}
	safeCall(p.logger, "callback", func() { fn(r.observer) })
}

func (r *run[S]) toolObserver() ToolObserver {
	to, _ := r.observer.(ToolObserver)
	return to
}

// invokeNode calls node and converts a panic into an error.
func invokeNode[S any](ctx context.Context, node Node[S], input GraphState[S]) (update StateUpdate[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return node.Invoke(ctx, input)
}

func now() time.Time {
	return store.Now()
}
