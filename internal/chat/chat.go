// Package chat defines the conversation message model shared by the pipeline,
// the provider adapters, and the checkpoint store.
//
// Messages form an ordered sequence; insertion order is semantically
// meaningful (the latest user message drives classification and routing).
package chat

import "strings"

// Role identifies the author of a message.
type Role string

// Message roles. RoleTool carries tool execution results back to the model.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall represents a function invocation requested by the model.
// Unified across vendors so downstream logic does not need per-provider
// branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// Message is a single conversation turn.
//
// ToolCalls is set only on assistant messages that requested tool execution.
// ToolCallID and ToolName are set only on tool-role messages carrying the
// result of a single call.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// User builds a user message.
func User(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// Assistant builds an assistant message.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// System builds a system message.
func System(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// ToolResult builds a tool-role message carrying one tool execution result.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: name}
}

// LatestUserText returns the content of the most recent user message.
// The boolean is false when the conversation contains no user message.
func LatestUserText(msgs []Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content, true
		}
	}
	return "", false
}

// Clone returns an independent copy of the message slice.
// Provider adapters and the pipeline mutate message slices; callers sharing
// history across requests must hand out copies.
func Clone(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if len(msgs[i].ToolCalls) > 0 {
			out[i].ToolCalls = make([]ToolCall, len(msgs[i].ToolCalls))
			copy(out[i].ToolCalls, msgs[i].ToolCalls)
		}
	}
	return out
}

// TrimmedEmpty reports whether the text is empty after trimming whitespace.
func TrimmedEmpty(text string) bool {
	return strings.TrimSpace(text) == ""
}
