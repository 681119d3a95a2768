// Package estimator holds the regression model families, the feature scaler,
// the train/test split and the evaluation metrics used by the predictor.
package estimator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Family names a regression model family.
type Family string

const (
	FamilyLinear Family = "linear"
	FamilyForest Family = "forest"
)

// DefaultFamily is used when nothing else is configured.
const DefaultFamily = FamilyForest

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(strings.TrimSpace(s))); f {
	case FamilyLinear, FamilyForest:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownFamily, s, FamilyLinear, FamilyForest)
	}
}

// Regressor predicts one continuous value from a feature row.
type Regressor interface {
	json.Marshaler
	json.Unmarshaler

	// Family reports which family the model belongs to.
	Family() Family
	// Fit trains on rows X with targets y, replacing any previous state.
	Fit(X [][]float64, y []float64) error
	// Predict returns the prediction for one row.
	Predict(x []float64) (float64, error)
	// Fitted reports whether Fit or UnmarshalJSON has populated the model.
	Fitted() bool
}

// Ensemble is a regressor made of several sub-models whose spread is a
// measure of uncertainty.
type Ensemble interface {
	Regressor
	// PredictAll returns one prediction per sub-model.
	PredictAll(x []float64) ([]float64, error)
}

// New returns an unfitted regressor of the given family.
func New(f Family, opts ...ForestOption) (Regressor, error) {
	switch f {
	case FamilyLinear:
		return NewLinear(), nil
	case FamilyForest:
		return NewForest(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
}

// shape checks a design matrix against its targets and returns (rows, cols).
func shape(X [][]float64, y []float64) (int, int, error) {
	if len(X) == 0 {
		return 0, 0, fmt.Errorf("%w: empty design matrix", ErrTooFewSamples)
	}
	if len(X) != len(y) {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, 0, fmt.Errorf("%w: zero columns", ErrShapeMismatch)
	}
	for i, row := range X {
		if len(row) != p {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), p)
		}
	}
	return len(X), p, nil
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
