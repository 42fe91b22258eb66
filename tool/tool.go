package tool

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/tools"
)

// Call is a pending request to run a named tool.
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result is the output of a Call.
type Result struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Func adapts a function to langchaingo's tools.Tool.
type Func struct {
	ToolName        string
	ToolDescription string
	Fn              func(ctx context.Context, input string) (string, error)
}

var _ tools.Tool = Func{}

// NewFunc creates a function tool.
func NewFunc(name, description string, fn func(ctx context.Context, input string) (string, error)) Func {
	return Func{ToolName: name, ToolDescription: description, Fn: fn}
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.ToolDescription }

func (f Func) Call(ctx context.Context, input string) (string, error) {
	if f.Fn == nil {
		return "", fmt.Errorf("tool %s has no function", f.ToolName)
	}
	return f.Fn(ctx, input)
}

// DuplicateToolError is returned when a name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// NotFoundError is returned when a call names an unregistered tool.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// CallError wraps the error returned by a tool.
type CallError struct {
	Name string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Name, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
