package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

type stubDispatcher struct{}

func (stubDispatcher) Complete(ctx context.Context, req *providers.CompletionRequest) (*types.ChatCompletionResponse, error) {
	return &types.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []types.Choice{
			{Message: types.Message{Role: "assistant", Content: "ok"}, FinishReason: "stop"},
		},
	}, nil
}

func (stubDispatcher) CompleteStream(ctx context.Context, req *providers.CompletionRequest) (<-chan *types.ChatCompletionStreamChunk, error) {
	ch := make(chan *types.ChatCompletionStreamChunk)
	close(ch)
	return ch, nil
}

type stubCatalog struct{ models []providers.ModelDescriptor }

func (c stubCatalog) Catalog() []providers.ModelDescriptor { return c.models }

func newTestServer(cfg config.ServerConfig, metricsCfg config.MetricsConfig, metricsHandler http.Handler) *Server {
	return New(cfg, metricsCfg, Deps{
		Dispatcher:     stubDispatcher{},
		Catalog:        stubCatalog{models: []providers.ModelDescriptor{{ID: "test-model"}}},
		MetricsHandler: metricsHandler,
	})
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(config.ServerConfig{}, config.MetricsConfig{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"chat completion", http.MethodPost, "/v1/chat/completions",
			`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`, http.StatusOK},
		{"models", http.MethodGet, "/v1/models", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready", http.MethodGet, "/ready", "", http.StatusOK},
		{"metrics disabled", http.MethodGet, "/metrics", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestServerMetricsRoute(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := newTestServer(config.ServerConfig{},
		config.MetricsConfig{Enabled: true, Path: "/metrics"}, metricsHandler)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServerAPIKeyGuardsCompletionSurface(t *testing.T) {
	srv := newTestServer(config.ServerConfig{APIKeys: []string{"sk-relay-test"}},
		config.MetricsConfig{}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Probes stay open.
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// The completion surface rejects unauthenticated requests.
	resp, err = ts.Client().Get(ts.URL + "/v1/models")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("/v1/models status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/models", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer sk-relay-test")
	authResp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusOK {
		t.Errorf("authenticated /v1/models status = %d, want %d", authResp.StatusCode, http.StatusOK)
	}

	var list types.ModelList
	if err := json.NewDecoder(authResp.Body).Decode(&list); err != nil {
		t.Fatalf("decoding model list: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != "test-model" {
		t.Errorf("model list = %+v, want single test-model entry", list.Data)
	}
}
