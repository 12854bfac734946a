package types

import "fmt"

// ValidationError describes a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MaxStopSequences is the maximum number of stop sequences per request.
const MaxStopSequences = 4

// Validate checks required fields and value constraints. It returns a
// *ValidationError naming the first offending field.
func (r *ChatCompletionRequest) Validate() error {
	if r.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}

	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "at least one message is required"}
	}

	for i, msg := range r.Messages {
		switch msg.Role {
		case "system", "user", "assistant":
		default:
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("invalid role %q", msg.Role),
			}
		}
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return &ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}

	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return &ValidationError{Field: "top_p", Message: "must be between 0 and 1"}
	}

	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return &ValidationError{Field: "max_tokens", Message: "must be positive"}
	}

	if len(r.Stop) > MaxStopSequences {
		return &ValidationError{
			Field:   "stop",
			Message: fmt.Sprintf("at most %d stop sequences allowed", MaxStopSequences),
		}
	}

	return nil
}
