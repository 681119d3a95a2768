package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/progresscast/internal/app"
	"github.com/okian/progresscast/internal/domain/estimator"
	"github.com/okian/progresscast/internal/domain/model"
)

// PredictionHandler serves forecasts.
type PredictionHandler struct {
	deps   Dependencies
	family estimator.Family
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(deps Dependencies, family estimator.Family) *PredictionHandler {
	return &PredictionHandler{deps: deps, family: family}
}

// predictionResponse flattens the Result next to the availability flag.
type predictionResponse struct {
	Available bool `json:"available"`
	*app.Result
}

// HandleGetPrediction handles GET /predictions/{user_id}/{activity}[?family=linear|forest].
// An unavailable forecast is a 200 with available=false so callers never block on it.
func (h *PredictionHandler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/predictions/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: expected /predictions/{user_id}/{activity}", ErrBadRequest))
		return
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "bad_user_id", ErrBadUserID)
		return
	}
	activity, err := model.ParseActivity(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_activity", err)
		return
	}
	family := h.family
	if f := r.URL.Query().Get("family"); f != "" {
		if family, err = estimator.ParseFamily(f); err != nil {
			writeError(w, http.StatusBadRequest, "unknown_family", err)
			return
		}
	}

	res, ok := h.deps.Predict(r.Context(), family, userID, activity)
	if !ok {
		writeJSON(w, http.StatusOK, predictionResponse{Available: false})
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{Available: true, Result: &res})
}
