package prebuilt

import (
	"slices"

	"github.com/smallnest/stepgraph/tool"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation.
type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []tool.Call `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Name       string      `json:"name,omitempty"`
}

// AgentState is a message list state. The tool calls of a trailing
// assistant message are pending until tool messages follow it.
type AgentState struct {
	Messages []Message `json:"messages"`
}

var _ ToolCallState[AgentState] = AgentState{}

func (s AgentState) PendingToolCalls() []tool.Call {
	if len(s.Messages) == 0 {
		return nil
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != RoleAssistant {
		return nil
	}
	return last.ToolCalls
}

func (s AgentState) WithToolResult(result tool.Result) AgentState {
	msgs := slices.Clip(slices.Clone(s.Messages))
	return AgentState{Messages: append(msgs, Message{
		Role:       RoleTool,
		Content:    result.Content,
		ToolCallID: result.CallID,
		Name:       result.Name,
	})}
}
