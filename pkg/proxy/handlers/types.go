package handlers

import (
	"context"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

// Dispatcher routes completion requests to backends. The router
// implements it; tests substitute scripted dispatchers.
type Dispatcher interface {
	Complete(ctx context.Context, req *providers.CompletionRequest) (*types.ChatCompletionResponse, error)
	CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *types.ChatCompletionStreamChunk, error)
}

// Catalog exposes the registry's model catalog to the models endpoint.
type Catalog interface {
	Catalog() []providers.ModelDescriptor
}
