// Package backends provides test doubles for the backend Provider
// interface.
package backends

import (
	"context"
	"sync/atomic"
	"time"

	"mercator-hq/relay/pkg/providers"
)

// MockProvider is a scriptable implementation of the Provider interface
// for tests. Zero value is not usable; create it with NewMockProvider.
type MockProvider struct {
	name       string
	descriptor providers.ModelDescriptor

	// Result and Err script Complete. Err wins when both are set.
	Result *providers.CompletionResult
	Err    error

	// Fragments scripts CompleteStream; they are copied to the channel
	// in order. StreamErr fails CompleteStream before any fragment.
	Fragments []*providers.StreamFragment
	StreamErr error

	// Delay is applied inside Complete before answering, honoring ctx.
	Delay time.Duration

	// Streaming toggles SupportsStreaming.
	Streaming bool

	calls  atomic.Int64
	closed atomic.Bool
}

// NewMockProvider creates a mock serving the given model id.
func NewMockProvider(name, modelID string) *MockProvider {
	return &MockProvider{
		name: name,
		descriptor: providers.ModelDescriptor{
			ID:      modelID,
			Name:    modelID,
			OwnedBy: "mock",
		},
		Result: &providers.CompletionResult{
			Content:      "mock response",
			FinishReason: providers.FinishReasonStop,
		},
		Streaming: true,
	}
}

// Calls reports how many completion calls (buffered or streamed) the
// mock has received.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	return m.closed.Load()
}

// Complete implements providers.Provider.
func (m *MockProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResult, error) {
	m.calls.Add(1)

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// CompleteStream implements providers.Provider.
func (m *MockProvider) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamFragment, error) {
	m.calls.Add(1)

	if m.StreamErr != nil {
		return nil, m.StreamErr
	}

	out := make(chan *providers.StreamFragment, len(m.Fragments))
	go func() {
		defer close(out)
		for _, f := range m.Fragments {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Descriptor implements providers.Provider.
func (m *MockProvider) Descriptor() providers.ModelDescriptor {
	return m.descriptor
}

// Name implements providers.Provider.
func (m *MockProvider) Name() string {
	return m.name
}

// SupportsStreaming implements providers.Provider.
func (m *MockProvider) SupportsStreaming() bool {
	return m.Streaming
}

// Close implements providers.Provider.
func (m *MockProvider) Close() error {
	m.closed.Store(true)
	return nil
}
