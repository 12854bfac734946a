package providers

// Message represents a single message in a conversation.
// It is backend-agnostic and is transformed to backend-specific formats
// by each adapter.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// CompletionRequest represents a backend-agnostic completion request.
type CompletionRequest struct {
	// Model is the model identifier the caller asked for
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// Metadata contains additional request context (request id, caller).
	// It is never sent upstream.
	Metadata map[string]string `json:"-"`
}

// CompletionResult is a backend's buffered completion result, normalized
// from the backend's native response format. Shaping into the outward
// OpenAI wire format happens in the router, not here.
type CompletionResult struct {
	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (stop, length)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information, if the backend
	// reports it
	Usage TokenUsage `json:"usage"`
}

// StreamFragment is one element of a backend's native incremental output.
// Backends differ in how they frame partial text: some send only the new
// text since the last fragment, some re-send everything generated so far.
// The adapter knows its upstream's framing and declares it per fragment
// via Cumulative; the stream normalizer in the router reduces cumulative
// fragments to deltas and passes incremental ones through untouched.
type StreamFragment struct {
	// Text is the partial text carried by this fragment
	Text string

	// Cumulative marks Text as the full output generated so far rather
	// than only the new text since the last fragment
	Cumulative bool

	// FinishReason is set on the backend's terminal fragment, if the
	// backend emits one at all
	FinishReason string

	// Usage is included on the terminal fragment when the backend
	// reports it
	Usage *TokenUsage

	// Err is set when the backend stream failed mid-flight. No further
	// fragments follow a fragment with Err set.
	Err error
}

// ModelDescriptor describes one logical model served by one or more
// backends. Descriptors are built once at registry-build time by merging
// duplicate entries across backends claiming the same model id, and are
// never mutated afterwards.
type ModelDescriptor struct {
	// ID is the unique model identifier used for routing
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Description is a short human-readable description
	Description string `json:"description,omitempty"`

	// ContextWindow is the model's context window size in tokens
	ContextWindow int `json:"context_window,omitempty"`

	// OwnedBy is the declared author or owning organization
	OwnedBy string `json:"owned_by"`

	// ProviderCount is the number of redundant backends currently
	// registered for this model id
	ProviderCount int `json:"provider_count"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
)
