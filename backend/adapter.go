package backend

import (
	"context"
	"encoding/json"
)

// ChatMessage is one OpenAI-style chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolFunction describes one callable function within a ToolDef.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolDef is one tool a backend may choose to call, in the
// OpenAI function-calling shape.
type ToolDef struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolCall is a single invocation a backend asked the caller to make,
// carried verbatim in InferenceResult.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChallengeEnvelope is the decrypted request payload a peer sends,
// mirroring the reference implementation's InferenceRequest: either
// Messages or the legacy Prompt field is populated, never both.
// ToolChoice is passed through opaquely: it is either the literal
// strings "auto"/"none" or a ToolDef-shaped reference, and the
// adapter never interprets it.
type ChallengeEnvelope struct {
	Messages    []ChatMessage   `json:"messages,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Model       string          `json:"model,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Tools       []ToolDef       `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// Usage is always populated, zero-valued rather than omitted when a
// backend doesn't report token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is the backend's normalized response. Metadata
// carries the timing envelope back to the caller when the challenge
// request supplied one; the adapter itself never populates it.
type InferenceResult struct {
	Content      string         `json:"content"`
	FinishReason string         `json:"finish_reason"`
	Model        string         `json:"model"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	Usage        Usage          `json:"usage"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HealthStatus reports the outcome of an adapter health probe.
type HealthStatus struct {
	Healthy bool
	Detail  string
}

// Adapter is the contract every backend implementation satisfies.
// Peers never choose the model; ChatCompletion always substitutes the
// node's configured default model.
type Adapter interface {
	Name() string
	ChatCompletion(ctx context.Context, req ChallengeEnvelope) (*InferenceResult, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
