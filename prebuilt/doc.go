// Package prebuilt provides ready-made nodes for common graph shapes.
//
// ToolNode executes the tool calls a state carries, in order, through a
// tool.Registry. Together with ToolsCondition it forms the usual
// agent/tools loop:
//
//	g := graph.NewStateGraph[prebuilt.AgentState]()
//	g.AddNode("agent", agent)
//	g.AddNode("tools", prebuilt.NewToolNode[prebuilt.AgentState](registry))
//	g.SetEntryPoint("agent")
//	g.AddConditionalEdge("agent", prebuilt.ToolsCondition[prebuilt.AgentState]("tools"), "tools", graph.END)
//	g.AddEdge("tools", "agent")
//
// Any state type can take part by implementing ToolCallState.
package prebuilt
