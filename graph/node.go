package graph

import "context"

// Node is a unit of work in a graph. It reads the current state and returns
// an update, or an error that fails the run.
type Node[S any] interface {
	Invoke(ctx context.Context, state GraphState[S]) (StateUpdate[S], error)
}

// NodeFunc adapts a function to Node.
type NodeFunc[S any] func(ctx context.Context, state GraphState[S]) (StateUpdate[S], error)

func (f NodeFunc[S]) Invoke(ctx context.Context, state GraphState[S]) (StateUpdate[S], error) {
	return f(ctx, state)
}

// Selector picks the next node from the state produced by the node a
// conditional edge starts at. Returning END or "" ends the run.
type Selector[S any] func(ctx context.Context, state GraphState[S]) string
