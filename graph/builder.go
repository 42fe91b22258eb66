package graph

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/smallnest/stepgraph/log"
	"github.com/smallnest/stepgraph/store"
)

type conditionalEdge[S any] struct {
	selector Selector[S]
	targets  []string
}

// StateGraph accumulates the definition of a graph over state type S.
// Every method returns the graph so calls can be chained; Compile validates
// the definition and freezes it into a Program.
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	order            []string
	edges            []Edge
	conditionalEdges map[string]conditionalEdge[S]
	conditionalOrder []string
	entryPoint       string

	schema          StateSchema[S]
	checkpointer    store.Checkpointer[S]
	runID           string
	observers       []Observer[S]
	interruptBefore []string
	interruptAfter  []string
	config          ExecutionConfig
	logger          log.Logger
}

// NewStateGraph creates an empty graph using OverrideSchema and
// DefaultExecutionConfig.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]conditionalEdge[S]),
		schema:           OverrideSchema[S]{},
		config:           DefaultExecutionConfig(),
	}
}

// AddNode registers node under name. Registering a name twice replaces the
// earlier node; it keeps its original registration position and a warning
// is logged.
func (g *StateGraph[S]) AddNode(name string, node Node[S]) *StateGraph[S] {
	if _, exists := g.nodes[name]; exists {
		g.log().Warn("node %q registered twice, replacing the earlier definition", name)
	} else {
		g.order = append(g.order, name)
	}
	g.nodes[name] = node
	return g
}

// AddNodeFunc registers a function as a node.
func (g *StateGraph[S]) AddNodeFunc(name string, fn func(ctx context.Context, state GraphState[S]) (StateUpdate[S], error)) *StateGraph[S] {
	return g.AddNode(name, NodeFunc[S](fn))
}

// SetEntryPoint sets the node every fresh run starts at.
func (g *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	g.entryPoint = name
	return g
}

// AddEdge adds a static edge. to may be END. A conditional edge from the
// same node takes priority at run time.
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	g.edges = append(g.edges, Edge{From: from, To: to})
	return g
}

// AddEdges adds several static edges.
func (g *StateGraph[S]) AddEdges(edges ...Edge) *StateGraph[S] {
	g.edges = append(g.edges, edges...)
	return g
}

// AddConditionalEdge routes out of from with selector. targets optionally
// lists every name selector may return so Compile can check them.
func (g *StateGraph[S]) AddConditionalEdge(from string, selector Selector[S], targets ...string) *StateGraph[S] {
	if _, exists := g.conditionalEdges[from]; !exists {
		g.conditionalOrder = append(g.conditionalOrder, from)
	}
	g.conditionalEdges[from] = conditionalEdge[S]{selector: selector, targets: targets}
	return g
}

// WithSchema sets the merge policy.
func (g *StateGraph[S]) WithSchema(schema StateSchema[S]) *StateGraph[S] {
	g.schema = schema
	return g
}

// WithCheckpointer persists a checkpoint after every step. runID is the
// default run identity; Run accepts WithRunID to override it per call.
func (g *StateGraph[S]) WithCheckpointer(cp store.Checkpointer[S], runID string) *StateGraph[S] {
	g.checkpointer = cp
	g.runID = runID
	return g
}

// WithObserver adds observers. Multiple observers are called in the order added.
func (g *StateGraph[S]) WithObserver(observers ...Observer[S]) *StateGraph[S] {
	g.observers = append(g.observers, observers...)
	return g
}

// WithInterruptBefore pauses a run before any of the named nodes executes.
func (g *StateGraph[S]) WithInterruptBefore(nodes ...string) *StateGraph[S] {
	g.interruptBefore = append(g.interruptBefore, nodes...)
	return g
}

// WithInterruptAfter pauses a run after any of the named nodes executed and
// its checkpoint was saved.
func (g *StateGraph[S]) WithInterruptAfter(nodes ...string) *StateGraph[S] {
	g.interruptAfter = append(g.interruptAfter, nodes...)
	return g
}

// WithConfig replaces the execution limits. Non-positive limits fall back to
// their defaults.
func (g *StateGraph[S]) WithConfig(cfg ExecutionConfig) *StateGraph[S] {
	g.config = cfg
	return g
}

// WithMaxSteps sets only the step bound.
func (g *StateGraph[S]) WithMaxSteps(n int) *StateGraph[S] {
	g.config.MaxSteps = n
	return g
}

// WithLogger sets the logger used by the graph and its program.
func (g *StateGraph[S]) WithLogger(logger log.Logger) *StateGraph[S] {
	g.logger = logger
	return g
}

func (g *StateGraph[S]) log() log.Logger {
	if g.logger != nil {
		return g.logger
	}
	return log.GetDefaultLogger()
}

// Compile validates the graph and returns an immutable Program. Names are
// checked in registration order: the entry point, then static edges, then
// conditional edges, then interrupt points. The first unknown name is
// reported as a *MissingNodeError.
func (g *StateGraph[S]) Compile() (*Program[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if err := g.requireNode(g.entryPoint); err != nil {
		return nil, err
	}

	edges := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		if err := g.requireNode(e.From); err != nil {
			return nil, err
		}
		if e.To != END {
			if err := g.requireNode(e.To); err != nil {
				return nil, err
			}
		}
		if prev, dup := edges[e.From]; dup {
			return nil, &InvalidEdgeError{
				Node:   e.From,
				Reason: fmt.Sprintf("second static edge to %q, already routed to %q", e.To, prev),
			}
		}
		edges[e.From] = e.To
	}

	for _, from := range g.conditionalOrder {
		if err := g.requireNode(from); err != nil {
			return nil, err
		}
		ce := g.conditionalEdges[from]
		if ce.selector == nil {
			return nil, &InvalidEdgeError{Node: from, Reason: "nil selector"}
		}
		for _, to := range ce.targets {
			if to != END {
				if err := g.requireNode(to); err != nil {
					return nil, err
				}
			}
		}
	}

	before, err := g.nodeSet(g.interruptBefore)
	if err != nil {
		return nil, err
	}
	after, err := g.nodeSet(g.interruptAfter)
	if err != nil {
		return nil, err
	}

	var observer Observer[S]
	switch len(g.observers) {
	case 0:
	case 1:
		observer = g.observers[0]
	default:
		m := NewMultiObserver(g.observers...)
		m.logger = g.log()
		observer = m
	}

	schema := g.schema
	if schema == nil {
		schema = OverrideSchema[S]{}
	}

	return &Program[S]{
		nodes:            maps.Clone(g.nodes),
		order:            slices.Clone(g.order),
		edges:            edges,
		edgeList:         slices.Clone(g.edges),
		conditionalEdges: maps.Clone(g.conditionalEdges),
		conditionalOrder: slices.Clone(g.conditionalOrder),
		entryPoint:       g.entryPoint,
		schema:           schema,
		checkpointer:     g.checkpointer,
		runID:            g.runID,
		observer:         observer,
		interruptBefore:  before,
		interruptAfter:   after,
		config:           g.config.normalize(),
		logger:           g.log(),
	}, nil
}

func (g *StateGraph[S]) requireNode(name string) error {
	if _, ok := g.nodes[name]; !ok {
		return &MissingNodeError{Node: name}
	}
	return nil
}

func (g *StateGraph[S]) nodeSet(names []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if err := g.requireNode(n); err != nil {
			return nil, err
		}
		set[n] = struct{}{}
	}
	return set, nil
}
