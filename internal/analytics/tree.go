package analytics

import (
	"math"
	"math/rand"
	"sort"
)

// decisionTree is a CART classifier using gini impurity. Trees track the
// impurity decrease contributed by each feature so the forest can report
// importances.
type decisionTree struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int

	root        *treeNode
	importances []float64
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	leaf      bool
	class     int
}

// fit builds the tree on the rows selected by idx
func (t *decisionTree) fit(X [][]float64, y []int, idx []int, rnd *rand.Rand) {
	t.importances = make([]float64, len(X[0]))
	t.root = t.buildNode(X, y, idx, 0, rnd)
}

func (t *decisionTree) buildNode(X [][]float64, y []int, idx []int, depth int, rnd *rand.Rand) *treeNode {
	majority, pure := majorityClass(y, idx)
	if pure || len(idx) < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) {
		return &treeNode{leaf: true, class: majority}
	}

	feature, threshold, gain, left, right := t.bestSplit(X, y, idx, rnd)
	if gain <= 0 || len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, class: majority}
	}

	// weighted impurity decrease, normalized later across the forest
	t.importances[feature] += float64(len(idx)) * gain

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.buildNode(X, y, left, depth+1, rnd),
		right:     t.buildNode(X, y, right, depth+1, rnd),
	}
}

// bestSplit searches a random subset of features for the gini-optimal
// threshold, sorting candidate values per feature.
func (t *decisionTree) bestSplit(X [][]float64, y []int, idx []int, rnd *rand.Rand) (int, float64, float64, []int, []int) {
	p := len(X[0])
	features := rnd.Perm(p)
	if t.maxFeatures > 0 && t.maxFeatures < p {
		features = features[:t.maxFeatures]
	}

	parent := giniOf(y, idx)
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0
	var bestLeft, bestRight []int

	for _, f := range features {
		sorted := append([]int(nil), idx...)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		leftCounts := map[int]int{}
		rightCounts := map[int]int{}
		for _, i := range sorted {
			rightCounts[y[i]]++
		}

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			leftCounts[y[i]]++
			rightCounts[y[i]]--

			cur, next := X[i][f], X[sorted[pos+1]][f]
			if cur == next {
				continue
			}

			nl, nr := pos+1, len(sorted)-pos-1
			weighted := (float64(nl)*giniCounts(leftCounts, nl) + float64(nr)*giniCounts(rightCounts, nr)) / float64(len(sorted))
			if gain := parent - weighted; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
				bestLeft = append([]int(nil), sorted[:pos+1]...)
				bestRight = append([]int(nil), sorted[pos+1:]...)
			}
		}
	}

	return bestFeature, bestThreshold, bestGain, bestLeft, bestRight
}

// predict classifies a single feature vector
func (t *decisionTree) predict(x []float64) int {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.class
}

func majorityClass(y []int, idx []int) (int, bool) {
	counts := map[int]int{}
	for _, i := range idx {
		counts[y[i]]++
	}
	best, bestCount := 0, -1
	for cls, c := range counts {
		if c > bestCount || (c == bestCount && cls < best) {
			best, bestCount = cls, c
		}
	}
	return best, len(counts) <= 1
}

func giniOf(y []int, idx []int) float64 {
	counts := map[int]int{}
	for _, i := range idx {
		counts[y[i]]++
	}
	return giniCounts(counts, len(idx))
}

func giniCounts(counts map[int]int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	if g < 0 {
		g = 0
	}
	return g
}

// sqrtFeatures is the usual classifier default for per-split subsampling
func sqrtFeatures(p int) int {
	k := int(math.Sqrt(float64(p)))
	if k < 1 {
		k = 1
	}
	return k
}
