// Package ml provides the isolation-forest anomaly classifier used by the
// detection pipeline, plus its trained-model artifact and lazy handle.
package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Config tunes forest training. The defaults match the baseline detector
// the scenario data was calibrated against.
type Config struct {
	NumTrees      int     `json:"num_trees"`
	SubSampleSize int     `json:"sub_sample_size"`
	MaxDepth      int     `json:"max_depth"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`
}

// DefaultConfig returns the baseline training parameters: 200 trees over
// 256-point subsamples, 2% expected contamination.
func DefaultConfig() Config {
	return Config{
		NumTrees:      200,
		SubSampleSize: 256,
		MaxDepth:      0, // derived from the subsample size
		Contamination: 0.02,
		Seed:          42,
	}
}

// treeNode is one node of an isolation tree. Exported fields keep the
// trained forest JSON-serializable for the model artifact.
type treeNode struct {
	SplitFeature int       `json:"f,omitempty"`
	SplitValue   float64   `json:"v,omitempty"`
	Left         *treeNode `json:"l,omitempty"`
	Right        *treeNode `json:"r,omitempty"`
	Size         int       `json:"n"`
	Leaf         bool      `json:"leaf,omitempty"`
}

// Forest is a trained isolation forest. Score follows the sign-flipped
// decision-function convention: values above zero are shorter-than-average
// isolation paths, i.e. more anomalous.
type Forest struct {
	trees         []*treeNode
	subSampleSize int
	offset        float64
	features      []string
	cfg           Config
	artifactPath  string
}

// Train fits a forest on the given feature matrix and fixes the label
// threshold at the (1 - contamination) quantile of the training scores.
func Train(data [][]float64, featureNames []string, cfg Config) (*Forest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("isolation forest: no training rows")
	}
	width := len(data[0])
	if width == 0 {
		return nil, fmt.Errorf("isolation forest: empty feature vectors")
	}
	for i, row := range data {
		if len(row) != width {
			return nil, fmt.Errorf("isolation forest: row %d has %d features, want %d", i, len(row), width)
		}
	}
	if cfg.NumTrees <= 0 || cfg.SubSampleSize <= 0 {
		return nil, fmt.Errorf("isolation forest: invalid config %+v", cfg)
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		return nil, fmt.Errorf("isolation forest: contamination %v outside (0, 0.5)", cfg.Contamination)
	}

	subSample := cfg.SubSampleSize
	if subSample > len(data) {
		subSample = len(data)
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = int(math.Ceil(math.Log2(float64(subSample)))) + 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{
		trees:         make([]*treeNode, 0, cfg.NumTrees),
		subSampleSize: subSample,
		features:      featureNames,
		cfg:           cfg,
	}
	for i := 0; i < cfg.NumTrees; i++ {
		sample := sampleRows(data, subSample, rng)
		f.trees = append(f.trees, buildTree(sample, 0, maxDepth, rng))
	}

	// Label threshold: scores above the (1 - contamination) quantile of the
	// training distribution are anomalous.
	trainScores := f.Score(data)
	sorted := append([]float64(nil), trainScores...)
	sort.Float64s(sorted)
	idx := int(math.Ceil((1-cfg.Contamination)*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	f.offset = sorted[idx]
	return f, nil
}

// Score returns the anomaly score for every row: the standard isolation
// score s in (0, 1) shifted by -0.5 so that higher means more anomalous and
// typical points sit near or below zero.
func (f *Forest) Score(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = f.scorePoint(row)
	}
	return out
}

// Label applies the trained contamination threshold per row.
func (f *Forest) Label(rows [][]float64) []bool {
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = f.scorePoint(row) > f.offset
	}
	return out
}

// Identity names the classifier for payload provenance.
func (f *Forest) Identity() string {
	return fmt.Sprintf("isolation_forest(trees=%d,subsample=%d)", len(f.trees), f.subSampleSize)
}

// FeatureNames returns the feature columns the forest was trained on.
func (f *Forest) FeatureNames() []string { return f.features }

// ArtifactPath returns the file the forest was loaded from or saved to,
// empty for an in-memory forest.
func (f *Forest) ArtifactPath() string { return f.artifactPath }

// Offset returns the trained label threshold.
func (f *Forest) Offset() float64 { return f.offset }

func (f *Forest) scorePoint(point []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, point, 0)
	}
	avg := total / float64(len(f.trees))

	// s = 2^(-E(h)/c(n)), then shifted so anomalies are positive.
	c := averagePathLength(f.subSampleSize)
	return math.Pow(2, -avg/c) - 0.5
}

func sampleRows(data [][]float64, sampleSize int, rng *rand.Rand) [][]float64 {
	if sampleSize > len(data) {
		sampleSize = len(data)
	}
	// Fisher-Yates shuffle, take the head.
	shuffled := make([][]float64, len(data))
	copy(shuffled, data)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:sampleSize]
}

func buildTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if len(data) <= 1 || depth >= maxDepth || allIdentical(data) {
		return &treeNode{Size: len(data), Leaf: true}
	}

	splitFeature := rng.Intn(len(data[0]))
	minVal, maxVal := featureRange(data, splitFeature)
	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range data {
		if row[splitFeature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{Size: len(data), Leaf: true}
	}

	return &treeNode{
		SplitFeature: splitFeature,
		SplitValue:   splitValue,
		Left:         buildTree(left, depth+1, maxDepth, rng),
		Right:        buildTree(right, depth+1, maxDepth, rng),
		Size:         len(data),
	}
}

func pathLength(node *treeNode, point []float64, depth int) float64 {
	if node.Leaf {
		return float64(depth) + averagePathLength(node.Size)
	}
	if point[node.SplitFeature] < node.SplitValue {
		return pathLength(node.Left, point, depth+1)
	}
	return pathLength(node.Right, point, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search: c(n) = 2H(n-1) - 2(n-1)/n.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}

func allIdentical(data [][]float64) bool {
	first := data[0]
	for _, row := range data[1:] {
		for j := range first {
			if math.Abs(row[j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}

func featureRange(data [][]float64, feature int) (float64, float64) {
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data {
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
