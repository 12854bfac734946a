package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/limits/ratelimit"
	"mercator-hq/relay/pkg/providers"
)

// Provider adapts any OpenAI-compatible chat completions API (OpenAI
// itself, Ollama, vLLM, LM Studio, commercial aggregators) to the relay
// backend contract. Authentication is a static bearer key; the shared
// per-backend limiter throttles every outbound call.
type Provider struct {
	cfg     config.BackendConfig
	desc    providers.ModelDescriptor
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New creates an adapter from its backend configuration.
func New(cfg config.BackendConfig) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend %q: base_url is required", cfg.Name)
	}

	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Provider{
		cfg: cfg,
		desc: providers.ModelDescriptor{
			ID:            cfg.Model.ID,
			Name:          cfg.Model.Name,
			Description:   cfg.Model.Description,
			ContextWindow: cfg.Model.ContextWindow,
			OwnedBy:       cfg.Model.OwnedBy,
		},
		client: &http.Client{
			Transport: transport,
			// No client-level timeout: streams stay open past any fixed
			// duration, and buffered calls are bounded by the request
			// context.
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate),
		logger:  slog.Default().With("component", "backend", "backend", cfg.Name),
	}, nil
}

// SetWaitObserver attaches the telemetry sink to the adapter's limiter.
func (p *Provider) SetWaitObserver(obs ratelimit.WaitObserver) {
	p.limiter.SetObserver(obs)
}

// Name returns the backend's configured name.
func (p *Provider) Name() string { return p.cfg.Name }

// Descriptor returns the model this backend serves.
func (p *Provider) Descriptor() providers.ModelDescriptor { return p.desc }

// SupportsStreaming reports whether streaming is enabled for this backend.
func (p *Provider) SupportsStreaming() bool { return p.cfg.SupportsStreaming() }

// Close releases idle upstream connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// wireRequest is the upstream chat completions request body.
type wireRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	TopP        float64             `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

// wireResponse is the upstream buffered response body.
type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs a buffered completion.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResult, error) {
	if err := p.limiter.Acquire(ctx, p.cfg.Name); err != nil {
		return nil, err
	}

	resp, err := p.doRequest(ctx, p.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.BackendError{
			Backend: p.cfg.Name,
			Message: "failed to read response body",
			Cause:   err,
		}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &providers.BackendError{
			Backend: p.cfg.Name,
			Message: "malformed response body",
			Cause:   err,
		}
	}
	if len(wire.Choices) == 0 {
		return nil, &providers.BackendError{
			Backend: p.cfg.Name,
			Message: "response contained no choices",
		}
	}

	choice := wire.Choices[0]
	return &providers.CompletionResult{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: providers.TokenUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}, nil
}

func (p *Provider) buildBody(req *providers.CompletionRequest, stream bool) *wireRequest {
	return &wireRequest{
		Model:       p.cfg.Model.ID,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
}

// doRequest posts the body to the chat completions endpoint with the
// adapter's own retry budget: transient failures (network errors, 5xx)
// back off exponentially; auth rejections, client errors, and context
// cancellation return immediately.
func (p *Provider) doRequest(ctx context.Context, body *wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			p.logger.Debug("retrying upstream request", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}

		resp, err := p.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &providers.BackendError{
				Backend: p.cfg.Name,
				Message: "upstream request failed",
				Cause:   err,
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &providers.AuthError{
				Backend: p.cfg.Name,
				Message: strings.TrimSpace(string(errBody)),
			}
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &providers.BackendError{
				Backend:    p.cfg.Name,
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(errBody)),
			}
			p.logger.Warn("upstream returned retryable status",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		default:
			return nil, &providers.BackendError{
				Backend:    p.cfg.Name,
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(errBody)),
			}
		}
	}

	return nil, lastErr
}
