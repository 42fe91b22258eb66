package graph

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for nodes
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter randomizes each delay by up to a quarter in either direction.
	Jitter          bool
	RetryableErrors func(error) bool // Determines if an error should trigger retry
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryNode wraps a node with retry logic. The engine itself never retries;
// a node that should be retried is wrapped explicitly.
type RetryNode[S any] struct {
	name   string
	node   Node[S]
	config *RetryConfig
}

// NewRetryNode creates a new retry node
func NewRetryNode[S any](name string, node Node[S], config *RetryConfig) *RetryNode[S] {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryNode[S]{name: name, node: node, config: config}
}

// Invoke runs the node until it succeeds, returns a non-retryable error or
// runs out of attempts.
func (rn *RetryNode[S]) Invoke(ctx context.Context, state GraphState[S]) (StateUpdate[S], error) {
	var lastErr error
	delay := rn.config.InitialDelay

	for attempt := 1; attempt <= rn.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return StateUpdate[S]{}, fmt.Errorf("retry cancelled: %w", err)
		}

		update, err := rn.node.Invoke(ctx, state)
		if err == nil {
			return update, nil
		}
		lastErr = err

		if rn.config.RetryableErrors != nil && !rn.config.RetryableErrors(err) {
			return StateUpdate[S]{}, fmt.Errorf("non-retryable error in %s: %w", rn.name, err)
		}

		if attempt == rn.config.MaxAttempts {
			break
		}
		if info, ok := RunInfoFromContext(ctx); ok && info.logger != nil {
			info.logger.Warn("node %s attempt %d/%d failed: %v", rn.name, attempt, rn.config.MaxAttempts, err)
		}

		timer := time.NewTimer(rn.jittered(delay))
		select {
		case <-timer.C:
			delay = rn.next(delay)
		case <-ctx.Done():
			timer.Stop()
			return StateUpdate[S]{}, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return StateUpdate[S]{}, fmt.Errorf("max retries (%d) exceeded for %s: %w",
		rn.config.MaxAttempts, rn.name, lastErr)
}

func (rn *RetryNode[S]) next(delay time.Duration) time.Duration {
	factor := rn.config.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay = time.Duration(float64(delay) * factor)
	if rn.config.MaxDelay > 0 {
		delay = min(delay, rn.config.MaxDelay)
	}
	return delay
}

func (rn *RetryNode[S]) jittered(delay time.Duration) time.Duration {
	if !rn.config.Jitter || delay <= 0 {
		return delay
	}
	jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	return max(delay+jitter, 0)
}

// AddNodeWithRetry adds a node with retry logic
func (g *StateGraph[S]) AddNodeWithRetry(name string, node Node[S], config *RetryConfig) *StateGraph[S] {
	return g.AddNode(name, NewRetryNode(name, node, config))
}

// TimeoutNode wraps a node with timeout logic
type TimeoutNode[S any] struct {
	name    string
	node    Node[S]
	timeout time.Duration
}

// NewTimeoutNode creates a new timeout node
func NewTimeoutNode[S any](name string, node Node[S], timeout time.Duration) *TimeoutNode[S] {
	return &TimeoutNode[S]{name: name, node: node, timeout: timeout}
}

// Invoke runs the node and fails once the timeout elapses. The wrapped node
// receives a context that is cancelled at the deadline.
func (tn *TimeoutNode[S]) Invoke(ctx context.Context, state GraphState[S]) (StateUpdate[S], error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, tn.timeout)
	defer cancel()

	type result struct {
		update StateUpdate[S]
		err    error
	}
	resultChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		update, err := tn.node.Invoke(timeoutCtx, state)
		resultChan <- result{update: update, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil && ctx.Err() == nil && timeoutCtx.Err() != nil {
			return StateUpdate[S]{}, tn.timedOut(timeoutCtx)
		}
		return res.update, res.err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return StateUpdate[S]{}, err
		}
		return StateUpdate[S]{}, tn.timedOut(timeoutCtx)
	}
}

func (tn *TimeoutNode[S]) timedOut(ctx context.Context) error {
	return fmt.Errorf("node %s timed out after %v: %w", tn.name, tn.timeout, ctx.Err())
}

// AddNodeWithTimeout adds a node with timeout logic
func (g *StateGraph[S]) AddNodeWithTimeout(name string, node Node[S], timeout time.Duration) *StateGraph[S] {
	return g.AddNode(name, NewTimeoutNode(name, node, timeout))
}
