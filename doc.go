// Package stepgraph is a stateful execution graph engine.
//
// Applications describe a workflow as named nodes over one state type,
// connect them with static or conditional edges and compile the result into
// a Program. A Program runs one node per step, merges every update into the
// state, checkpoints after each step and can pause before or after chosen
// nodes. Paused or crashed runs resume from their last checkpoint without
// repeating finished work.
//
// # Packages
//
//   - graph: builder, execution engine, observers, streaming and error types
//   - store: checkpoint contracts and codecs, with memory, file, redis,
//     postgres and sqlite implementations in its subpackages
//   - tool and prebuilt: tool registry and the ToolNode
//   - config: YAML and HCL settings for limits, stores and logging
//   - log: the logging interface and its golog implementation
//
// # Quick Start
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNodeFunc("inc", func(ctx context.Context, s graph.GraphState[Counter]) (graph.StateUpdate[Counter], error) {
//		return graph.NewStateUpdate(Counter{N: s.Data.N + 1}), nil
//	})
//	g.SetEntryPoint("inc")
//	g.AddEdge("inc", graph.END)
//	g.WithCheckpointer(graph.NewMemoryCheckpointer[Counter](), "run-1")
//
//	program, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	outcome := program.Run(ctx, Counter{})
//
// See the examples directory for durable execution and human-in-the-loop
// workflows.
package stepgraph
