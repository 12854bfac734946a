package types

// ChatCompletionResponse represents an OpenAI-compatible chat completion
// response, returned for non-streaming requests.
type ChatCompletionResponse struct {
	// ID is a unique identifier for the chat completion.
	ID string `json:"id"`

	// Object is always "chat.completion".
	Object string `json:"object"`

	// Created is the Unix timestamp of when the completion was created.
	Created int64 `json:"created"`

	// Model is the model the caller asked for.
	Model string `json:"model"`

	// Choices is a list of completion choices (relay always returns one).
	Choices []Choice `json:"choices"`

	// Usage contains token usage statistics.
	Usage Usage `json:"usage"`
}

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of this choice in the list of choices.
	Index int `json:"index"`

	// Message is the generated message.
	Message Message `json:"message"`

	// FinishReason explains why the model stopped generating tokens
	// ("stop", "length").
	FinishReason string `json:"finish_reason"`
}

// Usage contains token usage statistics.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens (prompt + completion).
	TotalTokens int `json:"total_tokens"`
}

// ChatCompletionStreamChunk represents a chunk in a streaming response,
// sent as Server-Sent Events when stream=true. All chunks of one logical
// request share the same ID and Created values.
type ChatCompletionStreamChunk struct {
	// ID is the identifier shared by every chunk of this completion.
	ID string `json:"id"`

	// Object is always "chat.completion.chunk".
	Object string `json:"object"`

	// Created is the Unix timestamp assigned once per logical request.
	Created int64 `json:"created"`

	// Model is the model the caller asked for.
	Model string `json:"model"`

	// Choices is a list of streaming choices.
	Choices []StreamChoice `json:"choices"`

	// Err is set when the backend stream failed after this point; the
	// chunk carrying it is the last one delivered. Never serialized.
	Err error `json:"-"`
}

// StreamChoice represents a single choice in a streaming response.
type StreamChoice struct {
	// Index is the index of this choice in the list of choices.
	Index int `json:"index"`

	// Delta contains the incremental content.
	Delta Delta `json:"delta"`

	// FinishReason is non-nil only on the terminal chunk.
	FinishReason *string `json:"finish_reason"`
}

// Delta contains incremental content in a streaming response.
type Delta struct {
	// Role is the role of the message author (only in the first chunk).
	Role string `json:"role,omitempty"`

	// Content is the incremental text content.
	Content string `json:"content,omitempty"`
}

// ModelList is the response shape of the model catalog endpoint.
type ModelList struct {
	// Object is always "list".
	Object string `json:"object"`

	// Data is the list of available models.
	Data []ModelCard `json:"data"`
}

// ModelCard describes one routable model in the catalog endpoint.
type ModelCard struct {
	// ID is the model identifier callers route with.
	ID string `json:"id"`

	// Object is always "model".
	Object string `json:"object"`

	// Name is the display name.
	Name string `json:"name,omitempty"`

	// Description is a short description of the model.
	Description string `json:"description,omitempty"`

	// ContextWindow is the context window size in tokens.
	ContextWindow int `json:"context_window,omitempty"`

	// OwnedBy is the owning organization.
	OwnedBy string `json:"owned_by"`

	// ProviderCount is how many redundant backends serve this model.
	ProviderCount int `json:"provider_count,omitempty"`
}
