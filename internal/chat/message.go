// Package chat models the conversation between the user, the language
// model and the analytic tools, and drives the turn loop that threads
// tool calls through to their results.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the model. Arguments are
// the raw JSON exactly as the model issued them; parsing happens at the
// registry boundary so a malformed call fails alone.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one transcript entry. An assistant message carries either
// final Content or a non-empty ToolCalls list, never both. A tool message
// carries the ToolCallID of the call it answers.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolResultMessage(callID, name string, payload json.RawMessage) Message {
	return Message{Role: RoleTool, ToolCallID: callID, ToolName: name, Content: string(payload)}
}

// ToolDescriptor is the schema contract advertised to the model for one
// tool: name, natural-language description and a JSON-schema parameter
// object (property name -> schema fragment).
type ToolDescriptor struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Completion is one chat endpoint response: either final text or one or
// more pending tool calls in the order the model issued them.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Completer is the chat-completion endpoint. Complete is the only
// blocking call in a turn; everything else runs synchronously in-process.
type Completer interface {
	Complete(ctx context.Context, system string, transcript []Message, tools []ToolDescriptor) (Completion, error)
}

// Usage accumulates token accounting across the round trips of a turn.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// TransportError is an endpoint-level failure: unreachable host, rejected
// request, timeout. It is the one error class that aborts a turn instead
// of flowing back through the tool-result channel. Retryable marks
// transient failures worth resubmitting with the same transcript.
type TransportError struct {
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat endpoint: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
