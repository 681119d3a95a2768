package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit population variance.
// Constant features get a scale of 1 so they map to 0.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fitted reports whether Fit has run.
func (s *Scaler) Fitted() bool { return len(s.Mean) > 0 }

// NFeatures returns the width the scaler was fitted on.
func (s *Scaler) NFeatures() int { return len(s.Mean) }

// Fit learns per-column mean and scale from X.
func (s *Scaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: empty design matrix", ErrTooFewSamples)
	}
	p := len(X[0])
	mean := make([]float64, p)
	scale := make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i, row := range X {
			if len(row) != p {
				return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), p)
			}
			col[i] = row[j]
		}
		m, std := popMeanStd(col)
		mean[j] = m
		scale[j] = std
		if std < 10*epsilon(m) {
			scale[j] = 1
		}
	}
	s.Mean, s.Scale = mean, scale
	return nil
}

// Transform scales one row.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row of X.
func (s *Scaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		r, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func popMeanStd(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	m, v := stat.MeanVariance(xs, nil)
	n := float64(len(xs))
	v = v * (n - 1) / n
	if v < 0 {
		v = 0
	}
	return m, math.Sqrt(v)
}

// epsilon is the spacing of float64 values near x, floored at machine epsilon.
func epsilon(x float64) float64 {
	const machine = 2.220446049250313e-16
	if e := math.Nextafter(math.Abs(x), math.Inf(1)) - math.Abs(x); e > machine {
		return e
	}
	return machine
}
