package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

// staticCatalog serves a fixed descriptor list for handler tests.
type staticCatalog []providers.ModelDescriptor

func (c staticCatalog) Catalog() []providers.ModelDescriptor {
	return c
}

func TestModelsHandler(t *testing.T) {
	catalog := staticCatalog{
		{ID: "alpha", Name: "Alpha", OwnedBy: "acme", ContextWindow: 8192, ProviderCount: 2},
		{ID: "beta", Name: "Beta", OwnedBy: "beta-labs", ProviderCount: 1},
	}

	r := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	NewModelsHandler(catalog).ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding model list: %v", err)
	}
	if list.Object != "list" {
		t.Errorf("object = %q, want list", list.Object)
	}
	if len(list.Data) != 2 {
		t.Fatalf("got %d models, want 2", len(list.Data))
	}

	first := list.Data[0]
	if first.ID != "alpha" || first.Object != "model" || first.ProviderCount != 2 {
		t.Errorf("unexpected first card: %+v", first)
	}
	if first.ContextWindow != 8192 {
		t.Errorf("context window = %d, want 8192", first.ContextWindow)
	}
}

func TestModelsHandlerEmptyCatalog(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	NewModelsHandler(staticCatalog{}).ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var list types.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding model list: %v", err)
	}
	if list.Data == nil {
		t.Error("data should serialize as an empty array, not null")
	}
}

func TestModelsHandlerMethodNotAllowed(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/models", nil)
	w := httptest.NewRecorder()
	NewModelsHandler(staticCatalog{}).ServeHTTP(w, r)

	if w.Code != 405 {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name       string
		catalog    staticCatalog
		wantStatus int
	}{
		{"registry populated", staticCatalog{{ID: "alpha"}}, 200},
		{"registry empty", staticCatalog{}, 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ready", nil)
			w := httptest.NewRecorder()
			NewReadyHandler(tt.catalog).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
