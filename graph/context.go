package graph

import (
	"context"

	"github.com/smallnest/stepgraph/log"
)

type runInfoKey struct{}

// RunInfo describes the node invocation a context belongs to.
type RunInfo struct {
	RunID string
	Node  string
	// Step is the step number the node will produce when it succeeds.
	Step int

	tools  ToolObserver
	logger log.Logger
}

func withRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// RunInfoFromContext returns the RunInfo the engine attached to a node's
// context. ok is false outside of a run.
func RunInfoFromContext(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}

// ReportToolCall forwards a tool call to the run's observer if it
// implements ToolObserver.
func ReportToolCall(ctx context.Context, tool, input string) {
	info, ok := RunInfoFromContext(ctx)
	if !ok || info.tools == nil {
		return
	}
	safeCall(info.logger, "OnToolCall", func() { info.tools.OnToolCall(ctx, info.Node, tool, input) })
}

// ReportToolResult forwards a tool result to the run's observer if it
// implements ToolObserver.
func ReportToolResult(ctx context.Context, tool, output string, err error) {
	info, ok := RunInfoFromContext(ctx)
	if !ok || info.tools == nil {
		return
	}
	safeCall(info.logger, "OnToolResult", func() { info.tools.OnToolResult(ctx, info.Node, tool, output, err) })
}
