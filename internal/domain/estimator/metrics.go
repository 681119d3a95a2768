package estimator

import (
	"fmt"
	"math"
	"sort"
)

// Metric keys.
const (
	TrainMAE  = "train_mae"
	TrainRMSE = "train_rmse"
	TrainR2   = "train_r2"
	TestMAE   = "test_mae"
	TestRMSE  = "test_rmse"
	TestR2    = "test_r2"
	NSamples  = "n_samples"
	NFeatures = "n_features"
)

// DefaultRMSE stands in for a missing test_rmse when deriving confidence.
const DefaultRMSE = 20.0

// Metrics is a flat record of evaluation results.
type Metrics map[string]float64

// Get returns a metric and whether it was recorded.
func (m Metrics) Get(key string) (float64, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the recorded keys in sorted order.
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Score holds the error measures of one evaluation.
type Score struct {
	MAE  float64
	RMSE float64
	R2   float64
}

// Evaluate predicts every row of X and scores the result against y.
func Evaluate(r Regressor, X [][]float64, y []float64) (Score, error) {
	if len(X) != len(y) {
		return Score{}, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	pred := make([]float64, len(X))
	for i, row := range X {
		p, err := r.Predict(row)
		if err != nil {
			return Score{}, fmt.Errorf("row %d: %w", i, err)
		}
		pred[i] = p
	}
	return Score{MAE: MAE(y, pred), RMSE: RMSE(y, pred), R2: R2(y, pred)}, nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue)))
}

// R2 is the coefficient of determination. When yTrue has no variance it is
// 1 for a perfect fit and 0 otherwise, so it is always finite.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var res, tot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		res += d * d
		t := yTrue[i] - mean
		tot += t * t
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}
