// Package graph provides the graph construction and execution engine of stepgraph.
//
// A graph is a set of named nodes over a single state type S. Each node reads
// the current state and returns a StateUpdate; the program folds the update
// into the state through a StateSchema and then picks the next node through
// a static edge or a conditional edge. Execution is strictly sequential: one
// node per step.
//
// # Building
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNodeFunc("inc", func(ctx context.Context, s graph.GraphState[Counter]) (graph.StateUpdate[Counter], error) {
//		return graph.NewStateUpdate(Counter{Count: s.Data.Count + 1}), nil
//	})
//	g.SetEntryPoint("inc")
//	g.AddEdge("inc", graph.END)
//
//	program, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := program.Invoke(ctx, Counter{})
//
// Compile validates every name the graph references and returns an
// immutable Program that can serve concurrent runs.
//
// # Merging
//
// The default schema replaces the state with the update. MapSchema merges
// map[string]any states key by key with per-key reducers, and MergeFunc
// adapts any function. The generic helpers AppendSlice, AddCounter,
// MergeMap and Override cover the common field policies of struct states.
//
// # Durable runs
//
// With a checkpointer configured, the program saves a checkpoint after every
// step. A save failure fails the run. Interrupt points pause a run before or
// after a node; Resume and ResumeLatest continue it from a checkpoint
// without running the checkpointed node again:
//
//	cp := graph.NewMemoryCheckpointer[Counter]()
//	program, _ := g.WithCheckpointer(cp, "run-1").WithInterruptAfter("inc").Compile()
//
//	outcome := program.Run(ctx, Counter{})
//	if outcome.Status == graph.StatusInterrupted {
//		outcome = program.ResumeLatest(ctx, outcome.RunID)
//	}
//
// GetState and UpdateState inspect and edit the latest checkpoint of a run.
//
// # Limits
//
// ExecutionConfig bounds a run by step count and by a cycle check that
// fails when a node keeps running without changing the state.
//
// # Observing
//
// Observers receive node start, end and error callbacks synchronously in
// step order. Observers may also implement ToolObserver and
// CheckpointObserver. Stream exposes the same run as a lazy iterator of
// GraphEvents that ends with exactly one terminal event.
package graph
