package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/tokens"
)

// NewCompletionID generates the opaque id assigned once per logical
// request and shared by every chunk of its stream.
func NewCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}

// buildResponse shapes a backend result into the canonical buffered
// response with a fresh id and timestamp. When the backend reported no
// usage and an estimator is installed, usage is estimated from the
// request and the generated text.
func buildResponse(result *providers.CompletionResult, req *providers.CompletionRequest, est tokens.Estimator) *types.ChatCompletionResponse {
	finish := result.FinishReason
	if finish == "" {
		finish = providers.FinishReasonStop
	}

	usage := result.Usage
	if usage.TotalTokens == 0 && est != nil {
		usage.PromptTokens = est.Messages(req.Model, req.Messages)
		usage.CompletionTokens = est.Text(req.Model, result.Content)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &types.ChatCompletionResponse{
		ID:      NewCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []types.Choice{
			{
				Index: 0,
				Message: types.Message{
					Role:    providers.RoleAssistant,
					Content: result.Content,
				},
				FinishReason: finish,
			},
		},
		Usage: types.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	}
}
