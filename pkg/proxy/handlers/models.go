package handlers

import (
	"log/slog"
	"net/http"

	"mercator-hq/relay/pkg/proxy"
	"mercator-hq/relay/pkg/proxy/types"
)

// ModelsHandler serves GET /v1/models from the registry catalog.
type ModelsHandler struct {
	catalog Catalog
}

// NewModelsHandler creates a new model catalog handler.
func NewModelsHandler(c Catalog) *ModelsHandler {
	return &ModelsHandler{catalog: c}
}

// ServeHTTP implements http.Handler.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	descriptors := h.catalog.Catalog()

	list := types.ModelList{
		Object: "list",
		Data:   make([]types.ModelCard, 0, len(descriptors)),
	}
	for _, d := range descriptors {
		list.Data = append(list.Data, types.ModelCard{
			ID:            d.ID,
			Object:        "model",
			Name:          d.Name,
			Description:   d.Description,
			ContextWindow: d.ContextWindow,
			OwnedBy:       d.OwnedBy,
			ProviderCount: d.ProviderCount,
		})
	}

	if err := proxy.WriteJSONResponse(w, http.StatusOK, list); err != nil {
		slog.ErrorContext(r.Context(), "failed to write models response", "error", err)
	}
}
