package graph

// GraphState holds the current state of a run.
type GraphState[S any] struct {
	Data S
}

// NewGraphState wraps data as the current state.
func NewGraphState[S any](data S) GraphState[S] {
	return GraphState[S]{Data: data}
}

// StateUpdate is the value a node proposes. The engine folds it into the
// current state through the program's StateSchema.
type StateUpdate[S any] struct {
	Data S
}

// NewStateUpdate wraps data as a proposed update.
func NewStateUpdate[S any](data S) StateUpdate[S] {
	return StateUpdate[S]{Data: data}
}

// StateSchema defines how an update is merged into the current state.
// Merge must be pure, deterministic and total.
type StateSchema[S any] interface {
	Merge(current, update S) S
}

// OverrideSchema replaces the current state with the update. It is the
// default schema of every graph.
type OverrideSchema[S any] struct{}

func (OverrideSchema[S]) Merge(_, update S) S { return update }

// MergeFunc adapts a function to StateSchema.
type MergeFunc[S any] func(current, update S) S

func (f MergeFunc[S]) Merge(current, update S) S { return f(current, update) }
