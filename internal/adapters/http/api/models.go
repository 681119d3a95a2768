package api

import "net/http"

// ModelsHandler lists loaded models.
type ModelsHandler struct {
	deps Dependencies
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(deps Dependencies) *ModelsHandler {
	return &ModelsHandler{deps: deps}
}

// HandleGetModels handles GET /models requests.
func (h *ModelsHandler) HandleGetModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Infos())
}
