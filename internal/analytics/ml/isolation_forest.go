package ml

import (
	"math"
	"math/rand"
)

// Isolation forest defaults.
const (
	DefaultNumTrees      = 100
	DefaultMaxSamples    = 256
	DefaultContamination = 0.05
	DefaultSeed          = 42
)

// IsolationTree represents a single tree in the Isolation Forest
type IsolationTree struct {
	splitFeature int
	splitValue   float64
	left         *IsolationTree
	right        *IsolationTree
	size         int
	isLeaf       bool
}

// IsolationForest isolates samples by recursive random partitioning. Samples
// that need fewer splits to be isolated score as more anomalous.
type IsolationForest struct {
	trees         []*IsolationTree
	numTrees      int
	maxSamples    int
	subSampleSize int
	maxDepth      int
	contamination float64
	seed          int64
	rng           *rand.Rand
	threshold     float64
}

// IsolationForestOption configures an IsolationForest.
type IsolationForestOption func(*IsolationForest)

// WithNumTrees sets the ensemble size.
func WithNumTrees(n int) IsolationForestOption {
	return func(f *IsolationForest) {
		if n > 0 {
			f.numTrees = n
		}
	}
}

// WithMaxSamples caps the per-tree sub-sample size.
func WithMaxSamples(n int) IsolationForestOption {
	return func(f *IsolationForest) {
		if n > 0 {
			f.maxSamples = n
		}
	}
}

// WithContamination sets the expected outlier fraction used for thresholding.
func WithContamination(c float64) IsolationForestOption {
	return func(f *IsolationForest) {
		if c > 0 && c < 0.5 {
			f.contamination = c
		}
	}
}

// WithSeed fixes the random source used for sampling and splitting.
func WithSeed(seed int64) IsolationForestOption {
	return func(f *IsolationForest) {
		f.seed = seed
	}
}

// NewIsolationForest creates an unfitted forest.
func NewIsolationForest(opts ...IsolationForestOption) *IsolationForest {
	f := &IsolationForest{
		numTrees:      DefaultNumTrees,
		maxSamples:    DefaultMaxSamples,
		contamination: DefaultContamination,
		seed:          DefaultSeed,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements Detector.
func (f *IsolationForest) Name() string { return "isolation_forest" }

// Fit builds the trees from rows and derives the outlier threshold from the
// training scores. The random source is re-seeded on every fit, so fitting the
// same rows twice yields the same forest.
func (f *IsolationForest) Fit(rows [][]float64) error {
	if _, err := validateRows(rows); err != nil {
		return err
	}

	f.rng = rand.New(rand.NewSource(f.seed))
	f.subSampleSize = f.maxSamples
	if f.subSampleSize > len(rows) {
		f.subSampleSize = len(rows)
	}
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.subSampleSize), 2))))

	f.trees = make([]*IsolationTree, 0, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		sample := f.sampleData(rows)
		f.trees = append(f.trees, f.buildTree(sample, 0))
	}

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.Score(row)
	}
	f.threshold = Percentile(scores, 100*(1-f.contamination))
	return nil
}

// Score returns the anomaly score 2^(-E[h(x)]/c(psi)) in (0, 1]; higher is
// more anomalous.
func (f *IsolationForest) Score(row []float64) float64 {
	if len(f.trees) == 0 {
		return 0.5
	}

	total := 0.0
	for _, tree := range f.trees {
		total += f.pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.trees))

	c := averagePathLength(f.subSampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

// Threshold is the score above which a training row counts as an outlier.
func (f *IsolationForest) Threshold() float64 {
	return f.threshold
}

// Detect implements Detector. A row is an outlier when its score is strictly
// above the (1 - contamination) percentile of all training scores.
func (f *IsolationForest) Detect(rows [][]float64) ([]bool, error) {
	if err := f.Fit(rows); err != nil {
		return nil, err
	}
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = f.Score(row) > f.threshold
	}
	return out, nil
}

// sampleData draws subSampleSize rows without replacement.
func (f *IsolationForest) sampleData(rows [][]float64) [][]float64 {
	shuffled := make([][]float64, len(rows))
	copy(shuffled, rows)
	if f.subSampleSize >= len(rows) {
		return shuffled
	}

	// Fisher-Yates shuffle and take first subSampleSize elements
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:f.subSampleSize]
}

// buildTree recursively builds an isolation tree
func (f *IsolationForest) buildTree(rows [][]float64, depth int) *IsolationTree {
	if len(rows) <= 1 || depth >= f.maxDepth {
		return &IsolationTree{size: len(rows), isLeaf: true}
	}

	// Only features that still vary within the node can split it.
	candidates := make([]int, 0, len(rows[0]))
	for j := range rows[0] {
		lo, hi := featureRange(rows, j)
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &IsolationTree{size: len(rows), isLeaf: true}
	}

	splitFeature := candidates[f.rng.Intn(len(candidates))]
	minVal, maxVal := featureRange(rows, splitFeature)
	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	left, right := splitData(rows, splitFeature, splitValue)
	if len(left) == 0 || len(right) == 0 {
		return &IsolationTree{size: len(rows), isLeaf: true}
	}

	return &IsolationTree{
		splitFeature: splitFeature,
		splitValue:   splitValue,
		left:         f.buildTree(left, depth+1),
		right:        f.buildTree(right, depth+1),
		size:         len(rows),
	}
}

// pathLength calculates the path length for a row in a tree
func (f *IsolationForest) pathLength(tree *IsolationTree, row []float64, depth int) float64 {
	if tree.isLeaf {
		// Add average path length for remaining points in leaf
		return float64(depth) + averagePathLength(tree.size)
	}
	if row[tree.splitFeature] < tree.splitValue {
		return f.pathLength(tree.left, row, depth+1)
	}
	return f.pathLength(tree.right, row, depth+1)
}

// averagePathLength is c(n), the average path length of an unsuccessful
// search in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2H(n-1) - (2(n-1)/n)
	return 2*harmonicNumber(n-1) - (2 * float64(n-1) / float64(n))
}

// harmonicNumber approximates H(n) as ln(n) + Euler-Mascheroni.
func harmonicNumber(n int) float64 {
	return math.Log(float64(n)) + 0.5772156649
}

func featureRange(rows [][]float64, feature int) (float64, float64) {
	minVal := rows[0][feature]
	maxVal := rows[0][feature]
	for _, row := range rows[1:] {
		v := row[feature]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

func splitData(rows [][]float64, feature int, splitValue float64) ([][]float64, [][]float64) {
	left := make([][]float64, 0, len(rows))
	right := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return left, right
}
