package routing

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/tokens"
)

// DefaultRequestTimeout bounds a request's total wall-clock time when no
// timeout is configured.
const DefaultRequestTimeout = 120 * time.Second

// ModelIndex resolves a model id to the backend handles serving it.
// Implemented by *registry.Registry; injected rather than reached for
// globally so a rebuilt registry can be swapped in under the router.
type ModelIndex interface {
	ProvidersFor(modelID string) ([]providers.Provider, error)
}

// Metrics receives routing outcomes. May be nil.
type Metrics interface {
	RecordRequest(backend, model, outcome string, duration time.Duration)
	RecordStreamChunk(backend string)
}

// Router dispatches completion requests across the registry's backends.
// For each request it selects a handle uniformly at random among the
// candidates for the model, applies the per-request deadline, invokes the
// backend, and shapes the result into the canonical wire format. On a
// transient backend failure it re-selects an alternate handle for the
// same model (never the one that just failed); credential rejections and
// elapsed deadlines are not retried.
//
// Router is stateless apart from borrowed registry references and is safe
// for concurrent use.
type Router struct {
	index     ModelIndex
	timeout   time.Duration
	logger    *slog.Logger
	metrics   Metrics
	estimator tokens.Estimator
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(rt *Router) {
		if d > 0 {
			rt.timeout = d
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		rt.logger = logger.With("component", "router")
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// WithUsageEstimator installs a token estimator used to fill in usage
// figures for backends that do not report their own.
func WithUsageEstimator(e tokens.Estimator) Option {
	return func(rt *Router) {
		rt.estimator = e
	}
}

// New creates a router over index.
func New(index ModelIndex, opts ...Option) *Router {
	rt := &Router{
		index:   index,
		timeout: DefaultRequestTimeout,
		logger:  slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Complete routes a buffered completion.
//
// Fails with *providers.NotFoundError when no backend serves req.Model,
// with *providers.TimeoutError when the deadline elapses first, with
// ctx.Err() when the caller cancelled, and otherwise with the classified
// backend failure. A backend returning
// empty content is a backend failure, not a success. The in-flight
// upstream call is cancelled via its context when the deadline fires
// rather than left running unobserved.
func (rt *Router) Complete(ctx context.Context, req *providers.CompletionRequest) (*types.ChatCompletionResponse, error) {
	handles, err := rt.index.ProvidersFor(req.Model)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	var lastErr error
	for _, idx := range rand.Perm(len(handles)) {
		handle := handles[idx]
		start := time.Now()

		result, err := handle.Complete(callCtx, req)
		if err == nil && result.Content == "" {
			err = &providers.BackendError{
				Backend: handle.Name(),
				Message: "backend returned empty content",
			}
		}

		if err == nil {
			rt.record(handle.Name(), req.Model, "success", start)
			return buildResponse(result, req, rt.estimator), nil
		}

		if callCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			if errors.Is(ctx.Err(), context.Canceled) {
				// The caller went away; that is cancellation, not a
				// backend timeout.
				rt.record(handle.Name(), req.Model, "cancelled", start)
				return nil, ctx.Err()
			}
			rt.record(handle.Name(), req.Model, "timeout", start)
			return nil, &providers.TimeoutError{Backend: handle.Name(), Deadline: rt.timeout}
		}

		rt.record(handle.Name(), req.Model, "error", start)
		rt.logger.Warn("backend call failed",
			"backend", handle.Name(),
			"model", req.Model,
			"error", err,
		)

		if !providers.Retryable(err) {
			return nil, err
		}
		lastErr = err
		// Re-select among the remaining handles; the failed one is not
		// attempted again within this request.
	}

	return nil, lastErr
}

// CompleteStream routes a streaming completion and returns the canonical
// chunk sequence: lazy, single-pass, non-restartable and finite. It
// always ends with a finish_reason="stop" chunk (synthesized when the
// backend stream ends without one) unless it ends early with a chunk
// whose Err is set.
//
// One deadline governs every suspension point of the stream. When the
// consumer stops pulling and cancels ctx, the router stops pulling from
// the backend and cancels the backend's context, releasing its
// connection.
func (rt *Router) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *types.ChatCompletionStreamChunk, error) {
	handles, err := rt.index.ProvidersFor(req.Model)
	if err != nil {
		return nil, err
	}

	candidates := make([]providers.Provider, 0, len(handles))
	for _, h := range handles {
		if h.SupportsStreaming() {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return nil, &providers.BackendError{
			Message: "no backend for model " + req.Model + " supports streaming",
		}
	}

	streamCtx, cancel := context.WithTimeout(ctx, rt.timeout)

	var (
		handle    providers.Provider
		fragments <-chan *providers.StreamFragment
		lastErr   error
	)
	for _, idx := range rand.Perm(len(candidates)) {
		handle = candidates[idx]
		fragments, err = handle.CompleteStream(streamCtx, req)
		if err == nil {
			break
		}
		rt.logger.Warn("backend stream open failed",
			"backend", handle.Name(),
			"model", req.Model,
			"error", err,
		)
		if !providers.Retryable(err) {
			cancel()
			return nil, err
		}
		lastErr = err
		fragments = nil
	}
	if fragments == nil {
		cancel()
		return nil, lastErr
	}

	norm := newNormalizer(req.Model, rt.timeout)
	out := make(chan *types.ChatCompletionStreamChunk)

	go func() {
		defer close(out)
		defer cancel()

		n := norm.run(streamCtx, fragments, out)
		rt.logger.Debug("stream finished",
			"backend", handle.Name(),
			"model", req.Model,
			"chunks", n,
		)
		if rt.metrics != nil {
			for ; n > 0; n-- {
				rt.metrics.RecordStreamChunk(handle.Name())
			}
		}
	}()

	return out, nil
}

func (rt *Router) record(backend, model, outcome string, start time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordRequest(backend, model, outcome, time.Since(start))
	}
}
