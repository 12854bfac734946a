package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/relay/internal/backends"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/tokens"
)

// staticIndex is a fixed model index for router tests.
type staticIndex map[string][]providers.Provider

func (idx staticIndex) ProvidersFor(modelID string) ([]providers.Provider, error) {
	handles, ok := idx[modelID]
	if !ok || len(handles) == 0 {
		return nil, &providers.NotFoundError{Model: modelID}
	}
	return handles, nil
}

func chatRequest(model string) *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: "hello"},
		},
	}
}

func TestRouterComplete(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Result = &providers.CompletionResult{
		Content:      "routed response",
		FinishReason: providers.FinishReasonStop,
		Usage:        providers.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}

	rt := New(staticIndex{"test-model": {mock}})

	resp, err := rt.Complete(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	if !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Errorf("response ID = %q, want chatcmpl- prefix", resp.ID)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("Object = %q, want chat.completion", resp.Object)
	}
	if resp.Model != "test-model" {
		t.Errorf("Model = %q, want the requested model", resp.Model)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("Choices length = %d, want 1", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.Message.Role != providers.RoleAssistant {
		t.Errorf("Message.Role = %q, want assistant", choice.Message.Role)
	}
	if choice.Message.Content != "routed response" {
		t.Errorf("Message.Content = %q, want backend content", choice.Message.Content)
	}
	if choice.FinishReason != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q, want stop", choice.FinishReason)
	}
	if resp.Usage.TotalTokens != 8 {
		t.Errorf("Usage.TotalTokens = %d, want 8", resp.Usage.TotalTokens)
	}
}

func TestRouterNotFound(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	rt := New(staticIndex{"test-model": {mock}})

	_, err := rt.Complete(context.Background(), chatRequest("unknown-model"))

	var notFound *providers.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Complete() error = %v, want *NotFoundError", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("backend called %d times for an unknown model, want 0", mock.Calls())
	}
}

func TestRouterRetriesTransientFailure(t *testing.T) {
	failing := backends.NewMockProvider("backend-bad", "test-model")
	failing.Err = &providers.BackendError{Backend: "backend-bad", StatusCode: 500, Message: "upstream exploded"}

	healthy := backends.NewMockProvider("backend-good", "test-model")
	healthy.Result = &providers.CompletionResult{Content: "recovered", FinishReason: providers.FinishReasonStop}

	rt := New(staticIndex{"test-model": {failing, healthy}})

	resp, err := rt.Complete(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("Complete() failed despite a healthy alternate: %v", err)
	}
	if resp.Choices[0].Message.Content != "recovered" {
		t.Errorf("content = %q, want answer from the healthy backend", resp.Choices[0].Message.Content)
	}
	// Both orders of the random permutation are legal; the failed
	// backend is never attempted twice.
	if failing.Calls() > 1 {
		t.Errorf("failing backend called %d times, want at most 1", failing.Calls())
	}
}

func TestRouterEmptyContentIsBackendError(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Result = &providers.CompletionResult{Content: ""}

	rt := New(staticIndex{"test-model": {mock}})

	_, err := rt.Complete(context.Background(), chatRequest("test-model"))

	var backendErr *providers.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Complete() error = %v, want *BackendError for empty content", err)
	}
}

func TestRouterDoesNotRetryAuthErrors(t *testing.T) {
	rejecting := backends.NewMockProvider("backend-bad", "test-model")
	rejecting.Err = &providers.AuthError{Backend: "backend-bad", Code: "cred-1", Message: "expired"}

	// Force the rejecting backend to be tried first by making it the
	// only handle.
	rt := New(staticIndex{"test-model": {rejecting}})

	_, err := rt.Complete(context.Background(), chatRequest("test-model"))

	var authErr *providers.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Complete() error = %v, want *AuthError surfaced unretried", err)
	}
	if rejecting.Calls() != 1 {
		t.Errorf("rejecting backend called %d times, want exactly 1", rejecting.Calls())
	}
}

func TestRouterTimeout(t *testing.T) {
	slow := backends.NewMockProvider("backend-slow", "test-model")
	slow.Delay = time.Second

	rt := New(staticIndex{"test-model": {slow}}, WithTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := rt.Complete(context.Background(), chatRequest("test-model"))
	elapsed := time.Since(start)

	var timeoutErr *providers.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Complete() error = %v, want *TimeoutError", err)
	}
	if timeoutErr.Backend != "backend-slow" {
		t.Errorf("TimeoutError.Backend = %q, want the dispatched backend", timeoutErr.Backend)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Complete() returned after %v, want promptly at the 30ms deadline", elapsed)
	}
	if kind := providers.Classify(err); kind != providers.KindTimeout {
		t.Errorf("Classify() = %q, want timeout", kind)
	}
}

func TestRouterPropagatesCallerCancellation(t *testing.T) {
	slow := backends.NewMockProvider("backend-slow", "test-model")
	slow.Delay = time.Second

	rt := New(staticIndex{"test-model": {slow}}, WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := rt.Complete(ctx, chatRequest("test-model"))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		t.Error("caller cancellation surfaced as a backend timeout")
	}
}

func TestRouterConcurrentCompletes(t *testing.T) {
	const callers = 100

	a := backends.NewMockProvider("backend-a", "test-model")
	b := backends.NewMockProvider("backend-b", "test-model")

	rt := New(staticIndex{"test-model": {a, b}})

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rt.Complete(context.Background(), chatRequest("test-model"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Complete() failed: %v", err)
		}
	}
	if a.Calls()+b.Calls() != callers {
		t.Errorf("backends saw %d calls total, want %d", a.Calls()+b.Calls(), callers)
	}
}

func TestRouterCompleteStream(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Fragments = []*providers.StreamFragment{
		{Text: "Hel"},
		{Text: "lo "},
		{Text: "world"},
	}

	rt := New(staticIndex{"test-model": {mock}})

	chunks, err := rt.CompleteStream(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("CompleteStream() failed: %v", err)
	}

	var text strings.Builder
	var finish string
	var ids []string
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		ids = append(ids, chunk.ID)
		for _, c := range chunk.Choices {
			text.WriteString(c.Delta.Content)
			if c.FinishReason != nil {
				finish = *c.FinishReason
			}
		}
	}

	if got := text.String(); got != "Hello world" {
		t.Errorf("concatenated deltas = %q, want %q", got, "Hello world")
	}
	if finish != providers.FinishReasonStop {
		t.Errorf("finish reason = %q, want synthesized stop", finish)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Errorf("chunk %d has ID %q, want all chunks sharing %q", i, ids[i], ids[0])
		}
	}
}

func TestRouterCompleteStreamNoStreamingBackend(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Streaming = false

	rt := New(staticIndex{"test-model": {mock}})

	_, err := rt.CompleteStream(context.Background(), chatRequest("test-model"))

	var backendErr *providers.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("CompleteStream() error = %v, want *BackendError", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("non-streaming backend was called %d times", mock.Calls())
	}
}

func TestRouterCompleteStreamPropagatesFragmentError(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Fragments = []*providers.StreamFragment{
		{Text: "partial "},
		{Err: &providers.BackendError{Backend: "backend-a", Message: "connection reset"}},
	}

	rt := New(staticIndex{"test-model": {mock}})

	chunks, err := rt.CompleteStream(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("CompleteStream() failed: %v", err)
	}

	var last *providers.BackendError
	sawText := false
	for chunk := range chunks {
		if chunk.Err != nil {
			if !errors.As(chunk.Err, &last) {
				t.Fatalf("stream error = %v, want *BackendError", chunk.Err)
			}
			continue
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content != "" {
				sawText = true
			}
			if c.FinishReason != nil {
				t.Error("stream emitted finish_reason after a backend error")
			}
		}
	}

	if !sawText {
		t.Error("text emitted before the failure was dropped")
	}
	if last == nil {
		t.Error("backend failure never surfaced on the chunk stream")
	}
}

func TestRouterEstimatesMissingUsage(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Result = &providers.CompletionResult{
		Content:      strings.Repeat("a", 40),
		FinishReason: providers.FinishReasonStop,
	}

	rt := New(staticIndex{"test-model": {mock}},
		WithUsageEstimator(tokens.NewHeuristic(nil)))

	resp, err := rt.Complete(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	if resp.Usage.CompletionTokens != 10 {
		t.Errorf("CompletionTokens = %d, want 10 from a 40-char completion", resp.Usage.CompletionTokens)
	}
	if resp.Usage.PromptTokens == 0 {
		t.Error("PromptTokens = 0, want an estimate for the prompt")
	}
	if resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Errorf("TotalTokens = %d, want prompt + completion", resp.Usage.TotalTokens)
	}
}

func TestRouterKeepsReportedUsage(t *testing.T) {
	mock := backends.NewMockProvider("backend-a", "test-model")
	mock.Result = &providers.CompletionResult{
		Content:      "metered",
		FinishReason: providers.FinishReasonStop,
		Usage:        providers.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}

	rt := New(staticIndex{"test-model": {mock}},
		WithUsageEstimator(tokens.NewHeuristic(nil)))

	resp, err := rt.Complete(context.Background(), chatRequest("test-model"))
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}

	if resp.Usage.TotalTokens != 8 {
		t.Errorf("TotalTokens = %d, want the backend-reported 8", resp.Usage.TotalTokens)
	}
}
