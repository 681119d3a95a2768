package estimator

import (
	"fmt"
	"math"
	"math/rand"
)

// Split is a shuffled partition of a design matrix.
type Split struct {
	TrainX [][]float64
	TrainY []float64
	TestX  [][]float64
	TestY  []float64
}

// TrainTestSplit shuffles rows with a seeded source and holds out
// ceil(testSize*n) of them. At least one row must remain for training.
func TrainTestSplit(X [][]float64, y []float64, testSize float64, seed int64) (Split, error) {
	if len(X) != len(y) {
		return Split{}, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size %v outside (0, 1)", testSize)
	}
	n := len(X)
	nTest := int(math.Ceil(testSize * float64(n)))
	if n-nTest < 1 {
		return Split{}, fmt.Errorf("%w: %d samples leave nothing to train on with test size %v",
			ErrTooFewSamples, n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec // reproducible split
	var s Split
	for k, i := range perm {
		if k < nTest {
			s.TestX = append(s.TestX, X[i])
			s.TestY = append(s.TestY, y[i])
			continue
		}
		s.TrainX = append(s.TrainX, X[i])
		s.TrainY = append(s.TrainY, y[i])
	}
	return s, nil
}
