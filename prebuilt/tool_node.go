package prebuilt

import (
	"context"

	"github.com/smallnest/stepgraph/graph"
	"github.com/smallnest/stepgraph/tool"
)

// ToolCallState is implemented by states that carry tool calls. S is the
// implementing type itself.
type ToolCallState[S any] interface {
	// PendingToolCalls returns the calls the next ToolNode should run, in order.
	PendingToolCalls() []tool.Call
	// WithToolResult returns a copy of the state with result recorded.
	WithToolResult(result tool.Result) S
}

// ToolNode runs the pending tool calls of the state one after another and
// returns the state with every result folded in. An unknown tool name or a
// failing tool fails the node; no result of that step is kept.
type ToolNode[S ToolCallState[S]] struct {
	registry *tool.Registry
}

var _ graph.Node[AgentState] = (*ToolNode[AgentState])(nil)

// NewToolNode creates a ToolNode dispatching to registry.
func NewToolNode[S ToolCallState[S]](registry *tool.Registry) *ToolNode[S] {
	return &ToolNode[S]{registry: registry}
}

func (n *ToolNode[S]) Invoke(ctx context.Context, state graph.GraphState[S]) (graph.StateUpdate[S], error) {
	next := state.Data
	for _, call := range state.Data.PendingToolCalls() {
		graph.ReportToolCall(ctx, call.Name, call.Arguments)
		result, err := n.registry.Call(ctx, call)
		graph.ReportToolResult(ctx, call.Name, result.Content, err)
		if err != nil {
			return graph.StateUpdate[S]{}, err
		}
		next = next.WithToolResult(result)
	}
	return graph.NewStateUpdate(next), nil
}

// ToolsCondition routes to toolsNode while the state has pending tool calls
// and ends the run otherwise.
func ToolsCondition[S ToolCallState[S]](toolsNode string) graph.Selector[S] {
	return func(_ context.Context, state graph.GraphState[S]) string {
		if len(state.Data.PendingToolCalls()) > 0 {
			return toolsNode
		}
		return graph.END
	}
}
