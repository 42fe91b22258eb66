package graph

import (
	"github.com/smallnest/stepgraph/store"
)

// END is a routing target meaning "stop the run successfully".
const END = "END"

// START is the node name recorded in checkpoints written before any node ran.
const START = store.StartNode

// Edge is a static transition between two nodes.
type Edge struct {
	From string
	To   string
}
