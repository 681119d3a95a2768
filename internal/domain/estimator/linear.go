package estimator

import (
	"encoding/json"
	"fmt"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Solver names recorded on a fitted Linear model.
const (
	SolverOLS     = "ols"
	SolverMinNorm = "min_norm"
)

// rcond is the relative singular value cutoff used for rank decisions.
const rcond = 1e-10

// Linear is an ordinary least squares model with an intercept.
//
// Well-posed designs (more rows than columns plus one, full column rank) are
// solved by sajari/regression. Anything else gets the minimum-norm least
// squares solution through an SVD of the centered design, so small or
// collinear training sets still produce finite coefficients.
type Linear struct {
	intercept float64
	coeffs    []float64
	solver    string
}

// NewLinear returns an unfitted linear model.
func NewLinear() *Linear { return &Linear{} }

// Family implements Regressor.
func (l *Linear) Family() Family { return FamilyLinear }

// Fitted implements Regressor.
func (l *Linear) Fitted() bool { return l.coeffs != nil }

// Intercept returns the fitted intercept.
func (l *Linear) Intercept() float64 { return l.intercept }

// Coefficients returns a copy of the fitted coefficients.
func (l *Linear) Coefficients() []float64 {
	out := make([]float64, len(l.coeffs))
	copy(out, l.coeffs)
	return out
}

// Solver reports how the coefficients were obtained.
func (l *Linear) Solver() string { return l.solver }

// Fit implements Regressor.
func (l *Linear) Fit(X [][]float64, y []float64) error {
	n, p, err := shape(X, y)
	if err != nil {
		return err
	}

	centered, xMean, yMean := center(X, y, n, p)
	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		// Degenerate input; predict the mean.
		l.intercept, l.coeffs, l.solver = yMean, make([]float64, p), SolverMinNorm
		return nil
	}
	values := svd.Values(nil)
	tol := 0.0
	if len(values) > 0 {
		tol = values[0] * rcond
	}
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}

	if rank == p && n > p+1 {
		if b0, b, ok := fitOLS(X, y, p); ok {
			l.intercept, l.coeffs, l.solver = b0, b, SolverOLS
			return nil
		}
	}

	beta := minNorm(&svd, values, tol, y, yMean, n, p)
	l.intercept = yMean - floats.Dot(xMean, beta)
	l.coeffs = beta
	l.solver = SolverMinNorm
	return nil
}

// Predict implements Regressor.
func (l *Linear) Predict(x []float64) (float64, error) {
	if !l.Fitted() {
		return 0, ErrNotFitted
	}
	if len(x) != len(l.coeffs) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), len(l.coeffs))
	}
	return l.intercept + floats.Dot(l.coeffs, x), nil
}

type linearJSON struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Solver       string    `json:"solver"`
}

// MarshalJSON implements json.Marshaler.
func (l *Linear) MarshalJSON() ([]byte, error) {
	if !l.Fitted() {
		return nil, ErrNotFitted
	}
	return json.Marshal(linearJSON{Intercept: l.intercept, Coefficients: l.coeffs, Solver: l.solver})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Linear) UnmarshalJSON(data []byte) error {
	var v linearJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(v.Coefficients) == 0 || !finite(v.Intercept) || !finite(v.Coefficients...) {
		return fmt.Errorf("%w: linear coefficients missing or non-finite", ErrInvalidPayload)
	}
	l.intercept, l.coeffs, l.solver = v.Intercept, v.Coefficients, v.Solver
	return nil
}

func fitOLS(X [][]float64, y []float64, p int) (float64, []float64, bool) {
	var r regression.Regression
	r.SetObserved("next_score")
	for i := 0; i < p; i++ {
		r.SetVar(i, fmt.Sprintf("x%d", i))
	}
	for i, row := range X {
		r.Train(regression.DataPoint(y[i], row))
	}
	if err := r.Run(); err != nil {
		return 0, nil, false
	}
	coeffs := r.GetCoeffs()
	if len(coeffs) != p+1 || !finite(coeffs...) {
		return 0, nil, false
	}
	return coeffs[0], coeffs[1:], true
}

// center returns X minus its column means along with the means of X and y.
func center(X [][]float64, y []float64, n, p int) (*mat.Dense, []float64, float64) {
	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		xMean[j] = stat.Mean(col, nil)
	}
	a := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, X[i][j]-xMean[j])
		}
	}
	return a, xMean, stat.Mean(y, nil)
}

// minNorm computes pinv(A)·(y - mean(y)) from a thin SVD of A.
func minNorm(svd *mat.SVD, values []float64, tol float64, y []float64, yMean float64, n, p int) []float64 {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	b := make([]float64, n)
	for i := range y {
		b[i] = y[i] - yMean
	}

	beta := make([]float64, p)
	uk := make([]float64, n)
	vk := make([]float64, p)
	for k, s := range values {
		if s <= tol {
			continue
		}
		mat.Col(uk, k, &u)
		mat.Col(vk, k, &v)
		floats.AddScaled(beta, floats.Dot(uk, b)/s, vk)
	}
	return beta
}
