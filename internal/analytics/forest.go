package analytics

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of CART classifiers with per-split
// feature subsampling. Seeded explicitly for reproducible fits.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64

	trees []*decisionTree
}

// NewRandomForest initializes the forest with classifier defaults
func NewRandomForest(nEstimators int, seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:     nEstimators,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Fit trains the forest with bootstrap sampling per tree
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	if len(y) != len(X) {
		return errors.New("randomforest: X and y length mismatch")
	}

	n := len(X)
	maxFeatures := sqrtFeatures(len(X[0]))
	rf.trees = make([]*decisionTree, rf.NEstimators)

	for t := 0; t < rf.NEstimators; t++ {
		rnd := rand.New(rand.NewSource(rf.Seed + int64(t)))
		idx := make([]int, n)
		for j := range idx {
			idx[j] = rnd.Intn(n)
		}
		tree := &decisionTree{
			maxDepth:        rf.MaxDepth,
			minSamplesSplit: rf.MinSamplesSplit,
			maxFeatures:     maxFeatures,
		}
		tree.fit(X, y, idx, rnd)
		rf.trees[t] = tree
	}

	return nil
}

// Predict returns the majority vote per row
func (rf *RandomForest) Predict(X [][]float64) []int {
	preds := make([]int, len(X))
	for i, x := range X {
		votes := map[int]int{}
		for _, tree := range rf.trees {
			votes[tree.predict(x)]++
		}
		best, bestCount := 0, -1
		for cls, c := range votes {
			if c > bestCount || (c == bestCount && cls < best) {
				best, bestCount = cls, c
			}
		}
		preds[i] = best
	}
	return preds
}

// FeatureImportances averages per-tree impurity decreases and normalizes
// them to sum to 1. One non-negative weight per input feature, in feature
// order. All-zero importances (degenerate fits) return uniform weights.
func (rf *RandomForest) FeatureImportances() []float64 {
	if len(rf.trees) == 0 {
		return nil
	}
	p := len(rf.trees[0].importances)
	importances := make([]float64, p)
	for _, tree := range rf.trees {
		floats.Add(importances, tree.importances)
	}

	total := floats.Sum(importances)
	if total == 0 {
		for i := range importances {
			importances[i] = 1 / float64(p)
		}
		return importances
	}
	floats.Scale(1/total, importances)
	return importances
}
