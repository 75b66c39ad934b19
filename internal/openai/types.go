// Package openai implements a client for OpenAI-compatible chat
// completion APIs.
package openai

// Message represents a chat message in the completion request wire format.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool invocation requested by the model. ID
// correlates the call with its tool result in the follow-up request.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its arguments as raw JSON
// text. The dispatcher owns parsing; malformed arguments are a tool
// failure, never a protocol failure.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes one tool in the catalogue sent to the model.
type ToolDefinition struct {
	Type     string       `json:"type"` // always "function"
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the function half of a ToolDefinition.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// AssistantToolCallMessage builds the assistant message that echoes the
// model's tool-call intent back in the follow-up request.
func AssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: "assistant", Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool-result message correlated by call id.
func ToolMessage(callID, content string) Message {
	return Message{Role: "tool", Content: content, ToolCallID: callID}
}
