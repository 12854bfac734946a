package sessionchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/limits/ratelimit"
	"mercator-hq/relay/pkg/providers"
)

// Provider adapts an upstream chat service that authenticates with
// renewable auth codes instead of static API keys. Every call draws a
// credential from the pool first and reports the outcome afterwards:
// the observed remaining balance on success, or an auth failure on a
// 401/402-class rejection. On a rejection the adapter retries once with
// a freshly obtained credential; the router never retries auth failures
// itself.
type Provider struct {
	cfg     config.BackendConfig
	desc    providers.ModelDescriptor
	client  *http.Client
	limiter *ratelimit.Limiter
	pool    *credentials.Pool
	logger  *slog.Logger
}

// New creates a session-authenticated adapter drawing credentials from
// pool.
func New(cfg config.BackendConfig, pool *credentials.Pool) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend %q: base_url is required", cfg.Name)
	}
	if pool == nil {
		return nil, fmt.Errorf("backend %q: credential pool is required", cfg.Name)
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
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate),
		pool:    pool,
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

// chatRequest is the upstream request body.
type chatRequest struct {
	Messages []providers.Message `json:"messages"`
	Stream   bool                `json:"stream,omitempty"`
}

// chatResponse is the upstream buffered response body. The service
// reports the credential's remaining balance with every answer.
type chatResponse struct {
	Text    string  `json:"text"`
	Balance float64 `json:"balance"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete performs a buffered completion, driving the credential
// feedback loop around the upstream call.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResult, error) {
	if err := p.limiter.Acquire(ctx, p.cfg.Name); err != nil {
		return nil, err
	}

	result, err := p.completeOnce(ctx, req)

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		p.pool.ReportAuthFailure(authErr.Code)
		p.logger.Warn("credential rejected, retrying with a fresh one", "code", authErr.Code)
		result, err = p.completeOnce(ctx, req)
		if errors.As(err, &authErr) {
			p.pool.ReportAuthFailure(authErr.Code)
		}
	}

	return result, err
}

func (p *Provider) completeOnce(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResult, error) {
	cred, err := p.pool.GetValid(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, cred, &chatRequest{Messages: req.Messages})
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

	var wire chatResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &providers.BackendError{
			Backend: p.cfg.Name,
			Message: "malformed response body",
			Cause:   err,
		}
	}

	// The feedback loop: every successful call refreshes the pool's view
	// of this credential.
	p.pool.ReportBalance(cred.Code, wire.Balance)

	result := &providers.CompletionResult{
		Content:      wire.Text,
		FinishReason: providers.FinishReasonStop,
	}
	if wire.Usage != nil {
		result.Usage = providers.TokenUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.PromptTokens + wire.Usage.CompletionTokens,
		}
	}
	return result, nil
}

// post sends an authenticated request. A 401/402 response is an
// *providers.AuthError carrying the rejected credential code.
func (p *Provider) post(ctx context.Context, cred *credentials.Credential, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Auth-Code", cred.Code)
	if cred.Session != "" {
		httpReq.Header.Set("Cookie", cred.Session)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &providers.BackendError{
			Backend: p.cfg.Name,
			Message: "upstream request failed",
			Cause:   err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
		return nil, &providers.AuthError{
			Backend: p.cfg.Name,
			Code:    cred.Code,
			Message: strings.TrimSpace(string(errBody)),
		}
	}
	return nil, &providers.BackendError{
		Backend:    p.cfg.Name,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(errBody)),
	}
}

// CheckBalance implements credentials.BalanceChecker by querying the
// upstream balance endpoint, so the pool's cron refresher can observe
// drain that happened outside this process.
func (p *Provider) CheckBalance(ctx context.Context, cred *credentials.Credential) (float64, error) {
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/balance"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("X-Auth-Code", cred.Code)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("balance query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance query returned status %d", resp.StatusCode)
	}

	var wire struct {
		Balance float64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return 0, fmt.Errorf("malformed balance response: %w", err)
	}
	return wire.Balance, nil
}
