// Package log provides the leveled logging interface used across stepgraph.
//
// The engine never writes to stdout directly. Step tracing goes to Debug,
// duplicate node registrations to Warn and recovered observer panics to
// Error. By default a stdlib-backed DefaultLogger at info level is installed;
// swap it with SetDefaultLogger or pass a logger to a graph builder.
//
//	logger := log.NewGologLoggerWithLevel(log.LogLevelDebug)
//	g := graph.NewStateGraph[Counter]().WithLogger(logger)
//
// GologLogger adapts github.com/kataras/golog and keeps the adapter's level
// and golog's own level in sync.
package log
