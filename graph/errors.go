package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntryPointNotSet is returned by Compile when no entry point was set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound matches every *MissingNodeError.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidEdge matches every *InvalidEdgeError.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrNodeFailed matches every *NodeFailedError.
	ErrNodeFailed = errors.New("node failed")

	// ErrMaxStepsExceeded matches every *MaxStepsExceededError.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")

	// ErrCycleDetected matches every *CycleDetectedError.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrCheckpointFailed matches every *CheckpointFailedError.
	ErrCheckpointFailed = errors.New("checkpoint failed")

	// ErrInterrupted matches every *GraphInterrupt.
	ErrInterrupted = errors.New("graph interrupted")

	// ErrNoCheckpointer is returned by state inspection on a program built
	// without a checkpointer.
	ErrNoCheckpointer = errors.New("no checkpointer configured")

	// ErrNoCheckpoint is returned when resuming a run that never checkpointed.
	ErrNoCheckpoint = errors.New("no checkpoint for run")
)

// MissingNodeError reports a reference to a node that was never registered.
type MissingNodeError struct {
	Node string
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("node not found: %q", e.Node)
}

func (e *MissingNodeError) Is(target error) bool { return target == ErrNodeNotFound }

// InvalidEdgeError reports a structurally invalid transition out of Node.
type InvalidEdgeError struct {
	Node   string
	Reason string
}

func (e *InvalidEdgeError) Error() string {
	return fmt.Sprintf("invalid edge from %q: %s", e.Node, e.Reason)
}

func (e *InvalidEdgeError) Is(target error) bool { return target == ErrInvalidEdge }

// NodeFailedError wraps the error returned by a node.
type NodeFailedError struct {
	Node string
	Err  error
}

func (e *NodeFailedError) Error() string {
	return fmt.Sprintf("error in node %s: %v", e.Node, e.Err)
}

func (e *NodeFailedError) Unwrap() error { return e.Err }

func (e *NodeFailedError) Is(target error) bool { return target == ErrNodeFailed }

// MaxStepsExceededError is returned when a run reaches its step bound with
// more work pending.
type MaxStepsExceededError struct {
	Max     int
	Reached int
}

func (e *MaxStepsExceededError) Error() string {
	return fmt.Sprintf("max steps exceeded: reached %d of %d", e.Reached, e.Max)
}

func (e *MaxStepsExceededError) Is(target error) bool { return target == ErrMaxStepsExceeded }

// CycleDetectedError is returned when Node keeps running without changing
// the state. Recent lists the visited nodes in the detection window, oldest first.
type CycleDetectedError struct {
	Node   string
	Recent []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected at node %s (recent: %s)", e.Node, strings.Join(e.Recent, " -> "))
}

func (e *CycleDetectedError) Is(target error) bool { return target == ErrCycleDetected }

// CheckpointFailedError wraps a checkpointer failure. The run stops because
// it could no longer be resumed from the store.
type CheckpointFailedError struct {
	Node string
	Step int
	Err  error
}

func (e *CheckpointFailedError) Error() string {
	return fmt.Sprintf("checkpoint failed after node %s at step %d: %v", e.Node, e.Step, e.Err)
}

func (e *CheckpointFailedError) Unwrap() error { return e.Err }

func (e *CheckpointFailedError) Is(target error) bool { return target == ErrCheckpointFailed }

// CancelledError is returned when the run context is done at a node boundary.
type CancelledError struct {
	Node string
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled before node %s: %v", e.Node, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// GraphInterrupt is the error form of an interrupted run, returned by Invoke.
// It is a control signal: the run can be resumed from RunID's latest checkpoint.
type GraphInterrupt struct {
	// Node is the node the run paused at.
	Node string
	// Kind tells whether Node has already run.
	Kind InterruptKind
	// State at the time of interruption
	State any
	Step  int
	RunID string
}

func (e *GraphInterrupt) Error() string {
	return fmt.Sprintf("graph interrupted %s node %s at step %d", e.Kind, e.Node, e.Step)
}

func (e *GraphInterrupt) Is(target error) bool { return target == ErrInterrupted }
