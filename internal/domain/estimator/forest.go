package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Default forest hyperparameters.
const (
	DefaultTrees           = 100
	DefaultMaxDepth        = 10
	DefaultMinSamplesSplit = 5
	DefaultMinSamplesLeaf  = 2
	DefaultSeed            = 42
)

// minGain is the smallest squared-error reduction accepted for a split.
const minGain = 1e-12

const leaf = -1

// ForestConfig holds the forest hyperparameters. A MaxDepth of zero means
// unlimited depth.
type ForestConfig struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

// DefaultForestConfig returns the default hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           DefaultTrees,
		MaxDepth:        DefaultMaxDepth,
		MinSamplesSplit: DefaultMinSamplesSplit,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		Seed:            DefaultSeed,
	}
}

// ForestOption applies a configuration option to a Forest.
type ForestOption func(*Forest)

// WithTrees sets the number of trees.
func WithTrees(n int) ForestOption {
	return func(f *Forest) {
		if n > 0 {
			f.cfg.Trees = n
		}
	}
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(d int) ForestOption {
	return func(f *Forest) { f.cfg.MaxDepth = d }
}

// WithMinSamplesSplit sets the minimum node size eligible for a split.
func WithMinSamplesSplit(n int) ForestOption {
	return func(f *Forest) {
		if n >= 2 {
			f.cfg.MinSamplesSplit = n
		}
	}
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf.
func WithMinSamplesLeaf(n int) ForestOption {
	return func(f *Forest) {
		if n >= 1 {
			f.cfg.MinSamplesLeaf = n
		}
	}
}

// WithSeed sets the bootstrap seed.
func WithSeed(seed int64) ForestOption {
	return func(f *Forest) { f.cfg.Seed = seed }
}

// WithForestConfig replaces the whole configuration, ignoring invalid fields.
func WithForestConfig(c ForestConfig) ForestOption {
	return func(f *Forest) {
		WithTrees(c.Trees)(f)
		WithMaxDepth(c.MaxDepth)(f)
		WithMinSamplesSplit(c.MinSamplesSplit)(f)
		WithMinSamplesLeaf(c.MinSamplesLeaf)(f)
		WithSeed(c.Seed)(f)
	}
}

type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type tree []node

func (t tree) predict(x []float64) float64 {
	i := 0
	for t[i].Feature != leaf {
		if x[t[i].Feature] <= t[i].Threshold {
			i = t[i].Left
		} else {
			i = t[i].Right
		}
	}
	return t[i].Value
}

// Forest is a bagged ensemble of CART regression trees. Every tree sees a
// bootstrap sample of the rows and considers every feature at every split.
type Forest struct {
	cfg         ForestConfig
	nFeatures   int
	trees       []tree
	importances []float64
}

// NewForest returns an unfitted forest.
func NewForest(opts ...ForestOption) *Forest {
	f := &Forest{cfg: DefaultForestConfig()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Family implements Regressor.
func (f *Forest) Family() Family { return FamilyForest }

// Fitted implements Regressor.
func (f *Forest) Fitted() bool { return len(f.trees) > 0 }

// Config returns the hyperparameters.
func (f *Forest) Config() ForestConfig { return f.cfg }

// Importances returns the normalized impurity-based feature importances,
// averaged over trees. They sum to 1 unless no tree ever split.
func (f *Forest) Importances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}

// Fit implements Regressor.
func (f *Forest) Fit(X [][]float64, y []float64) error {
	n, p, err := shape(X, y)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed)) //nolint:gosec // reproducible bootstrap
	trees := make([]tree, 0, f.cfg.Trees)
	importances := make([]float64, p)
	sample := make([]int, n)
	for t := 0; t < f.cfg.Trees; t++ {
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		b := &builder{cfg: f.cfg, X: X, y: y, gain: make([]float64, p)}
		b.grow(append([]int(nil), sample...), 0)
		trees = append(trees, b.nodes)

		if total := floats.Sum(b.gain); total > 0 {
			floats.AddScaled(importances, 1/total, b.gain)
		}
	}
	floats.Scale(1/float64(len(trees)), importances)

	f.nFeatures = p
	f.trees = trees
	f.importances = importances
	return nil
}

// Predict implements Regressor. It is the mean of the per-tree predictions.
func (f *Forest) Predict(x []float64) (float64, error) {
	all, err := f.PredictAll(x)
	if err != nil {
		return 0, err
	}
	return stat.Mean(all, nil), nil
}

// PredictAll implements Ensemble.
func (f *Forest) PredictAll(x []float64) ([]float64, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	if len(x) != f.nFeatures {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), f.nFeatures)
	}
	out := make([]float64, len(f.trees))
	for i, t := range f.trees {
		out[i] = t.predict(x)
	}
	return out, nil
}

type forestJSON struct {
	Config      ForestConfig `json:"config"`
	NFeatures   int          `json:"n_features"`
	Importances []float64    `json:"importances"`
	Trees       []tree       `json:"trees"`
}

// MarshalJSON implements json.Marshaler.
func (f *Forest) MarshalJSON() ([]byte, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	return json.Marshal(forestJSON{
		Config:      f.cfg,
		NFeatures:   f.nFeatures,
		Importances: f.importances,
		Trees:       f.trees,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Trees are checked for dangling
// child indices and out-of-range features so Predict cannot panic.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var v forestJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if v.NFeatures <= 0 || len(v.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidPayload)
	}
	for ti, t := range v.Trees {
		if err := t.validate(v.NFeatures); err != nil {
			return fmt.Errorf("%w: tree %d: %w", ErrInvalidPayload, ti, err)
		}
	}
	f.cfg = v.Config
	f.nFeatures = v.NFeatures
	f.importances = v.Importances
	f.trees = v.Trees
	return nil
}

func (t tree) validate(nFeatures int) error {
	if len(t) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t {
		if n.Feature == leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// Children always follow their parent.
		if n.Left <= i || n.Left >= len(t) || n.Right <= i || n.Right >= len(t) {
			return fmt.Errorf("node %d: bad children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// builder grows one tree depth-first into a flat node slice.
type builder struct {
	cfg   ForestConfig
	X     [][]float64
	y     []float64
	nodes tree
	gain  []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	mean, sse := b.moments(idx)
	b.nodes = append(b.nodes, node{Feature: leaf, Value: mean})

	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return id
	}
	if len(idx) < b.cfg.MinSamplesSplit || len(idx) < 2*b.cfg.MinSamplesLeaf || sse <= minGain {
		return id
	}
	s, ok := b.best(idx, sse)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r, Value: mean}
	b.gain[s.feature] += s.gain
	return id
}

// moments returns the mean and the sum of squared deviations of y over idx.
func (b *builder) moments(idx []int) (float64, float64) {
	var sum, sq float64
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sq - sum*sum/n
	if sse < 0 {
		sse = 0
	}
	return mean, sse
}

// best scans every feature for the threshold with the largest reduction in
// squared error that leaves at least MinSamplesLeaf rows on each side.
func (b *builder) best(idx []int, parentSSE float64) (split, bool) {
	m := len(idx)
	minLeaf := b.cfg.MinSamplesLeaf
	order := make([]int, m)

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}

	best := split{feature: leaf}
	for f := range b.X[idx[0]] {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		var leftSum, leftSq float64
		for k := 1; k < m; k++ {
			yi := b.y[order[k-1]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := b.X[order[k-1]][f], b.X[order[k]][f]
			if lo == hi || k < minLeaf || m-k < minLeaf {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(k)) + (rightSq - rightSum*rightSum/float64(m-k))
			gain := parentSSE - sse
			if gain > best.gain+minGain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, gain: gain}
			}
		}
	}
	return best, best.feature != leaf
}
