// Package api exposes predictions and model info over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/progresscast/internal/app"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/model"
)

// Dependencies required by HTTP handlers. *app.Registry satisfies it.
type Dependencies interface {
	// Predict reports false when no forecast is available.
	Predict(ctx context.Context, family estimator.Family, userID int64, activity model.Activity) (app.Result, bool)

	// Infos describes the loaded models.
	Infos() []app.ModelInfo
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	healthHandler     *HealthHandler
	predictionHandler *PredictionHandler
	modelsHandler     *ModelsHandler
}

// NewServer creates a new API server with all handlers. family is used
// when a request does not name one.
func NewServer(deps Dependencies, family estimator.Family) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		predictionHandler: NewPredictionHandler(deps, family),
		modelsHandler:     NewModelsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/models", MetricsMiddleware(s.modelsHandler.HandleGetModels, "models"))
	mux.HandleFunc("/predictions/", MetricsMiddleware(s.predictionHandler.HandleGetPrediction, "predictions"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
