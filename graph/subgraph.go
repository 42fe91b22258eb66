package graph

import (
	"context"
	"fmt"
)

// Subgraph runs a compiled program as a single node of a parent graph.
// The child's whole run counts as one parent step. An interrupt inside the
// child fails the parent node with the *GraphInterrupt as cause.
type Subgraph[S any] struct {
	name    string
	program *Program[S]
}

// NewSubgraph compiles graph and wraps it as a node.
func NewSubgraph[S any](name string, graph *StateGraph[S]) (*Subgraph[S], error) {
	program, err := graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile subgraph %s: %w", name, err)
	}
	return &Subgraph[S]{name: name, program: program}, nil
}

// AsNode wraps the program as a node of a parent graph with the same state
// type. The node's update is the child's final state.
func (p *Program[S]) AsNode(name string) *Subgraph[S] {
	return &Subgraph[S]{name: name, program: p}
}

// Invoke runs the child program from its entry point.
func (s *Subgraph[S]) Invoke(ctx context.Context, state GraphState[S]) (StateUpdate[S], error) {
	var opts []RunOption
	if info, ok := RunInfoFromContext(ctx); ok {
		opts = append(opts, WithRunID(fmt.Sprintf("%s/%s", info.RunID, s.name)))
	}

	result, err := s.program.Invoke(ctx, state.Data, opts...)
	if err != nil {
		return StateUpdate[S]{}, fmt.Errorf("subgraph %s execution failed: %w", s.name, err)
	}
	return NewStateUpdate(result), nil
}

// AddSubgraph adds a child program with a different state type as a node.
// in projects the parent state onto the child's input and out folds the
// child's final state into the parent update.
func AddSubgraph[S, T any](g *StateGraph[S], name string, child *Program[T], in func(S) T, out func(parent S, child T) S) *StateGraph[S] {
	sub := child.AsNode(name)
	return g.AddNode(name, NodeFunc[S](func(ctx context.Context, state GraphState[S]) (StateUpdate[S], error) {
		update, err := sub.Invoke(ctx, NewGraphState(in(state.Data)))
		if err != nil {
			return StateUpdate[S]{}, err
		}
		return NewStateUpdate(out(state.Data, update.Data)), nil
	}))
}

// CreateSubgraph builds, compiles and adds a same-typed subgraph in one call.
func CreateSubgraph[S any](g *StateGraph[S], name string, build func(*StateGraph[S])) (*StateGraph[S], error) {
	child := NewStateGraph[S]()
	build(child)
	sub, err := NewSubgraph(name, child)
	if err != nil {
		return g, err
	}
	return g.AddNode(name, sub), nil
}
