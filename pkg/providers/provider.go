package providers

import "context"

// Provider is the capability interface every backend adapter implements.
// One adapter instance serves exactly one model id; redundant adapters may
// be registered for the same id and the router load-balances across them.
//
// All methods accept a context.Context for cancellation and deadline
// control. Implementations must respect context cancellation and release
// upstream resources (sockets, sessions) when the context is cancelled.
//
// Example usage:
//
//	result, err := provider.Complete(ctx, &CompletionRequest{
//	    Model: "m1",
//	    Messages: []Message{{Role: RoleUser, Content: "Hello!"}},
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Content)
type Provider interface {
	// Complete performs a buffered completion against the upstream
	// backend and returns the normalized result. Any upstream failure
	// is returned as a *BackendError (or *AuthError for credential
	// rejections).
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// CompleteStream performs a streaming completion. It returns a
	// channel of raw fragments in the backend's native framing; the
	// channel is closed when the stream ends. A mid-stream failure is
	// delivered as a final fragment with Err set, after which the
	// channel closes.
	//
	// The returned stream is single-pass and non-restartable. Callers
	// that stop reading must cancel ctx so the adapter can release the
	// upstream connection.
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan *StreamFragment, error)

	// Descriptor returns the model this adapter serves. Adapters with an
	// empty model id are excluded from the registry at build time.
	Descriptor() ModelDescriptor

	// Name returns the backend's configured name, unique per adapter
	// instance (e.g. "openai-primary", "mirror-eu").
	Name() string

	// SupportsStreaming reports whether CompleteStream is implemented.
	SupportsStreaming() bool

	// Close releases any resources the adapter holds (HTTP connections,
	// sessions). After Close the adapter must not be used.
	Close() error
}
