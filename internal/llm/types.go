package llm

import "encoding/json"

// Message roles on the chat completions wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is an OpenAI-compatible chat message. ToolCalls is set on
// assistant messages that request function execution; ToolCallID ties a
// tool-role result back to its request.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-issued request to invoke a local capability.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its raw JSON arguments.
// Arguments stay raw here; the dispatcher owns validation.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable function to the model.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is the schema half of a Tool declaration.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is the request body for /chat/completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the subset of the completion response the agent needs.
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	} `json:"choices"`
}

// Completion is the provider-neutral result of one chat call: either plain
// assistant text or a set of tool calls to dispatch.
type Completion struct {
	Message      Message
	FinishReason string
}

// WantsTools reports whether the model ended the turn asking for function
// execution rather than producing a final answer.
func (c Completion) WantsTools() bool {
	return len(c.Message.ToolCalls) > 0
}

type moderationRequest struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}
