package types

// ChatCompletionRequest represents an OpenAI-compatible chat completion
// request. The field set matches the OpenAI Chat Completions API so
// existing SDKs and tools work against relay unchanged.
type ChatCompletionRequest struct {
	// Model is the ID of the model to route to.
	Model string `json:"model"`

	// Messages is the conversation history as a list of messages.
	Messages []Message `json:"messages"`

	// Temperature controls randomness in the response (0.0 to 2.0).
	// Optional, defaults to the backend's own default.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	// Optional, defaults to backend-specific limits.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0). Optional.
	TopP *float64 `json:"top_p,omitempty"`

	// Stream enables server-sent events (SSE) streaming.
	// Optional, defaults to false.
	Stream bool `json:"stream,omitempty"`

	// Stop is a list of sequences where generation will stop.
	// Optional, maximum 4 sequences.
	Stop []string `json:"stop,omitempty"`

	// User is a unique identifier for the end-user making the request.
	// Optional.
	User string `json:"user,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the author of the message ("system", "user", "assistant").
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`

	// Name is the name of the author (optional).
	Name string `json:"name,omitempty"`
}
