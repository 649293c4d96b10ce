// Package analytics implements the model-fitting engines of the pipeline:
// customer segmentation (k-means) and churn prediction (random forest).
// Every engine validates its preconditions up front and fails fast with a
// typed error instead of producing a misleading result; fits are seeded so
// identical input yields identical output.
package analytics

import (
	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes feature columns to zero mean and unit
// variance. Statistics come from the rows it was fit on, so callers fit it
// on the clustering subset rather than the full dataset.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes column means and standard deviations from X
func FitScaler(X [][]float64) *StandardScaler {
	if len(X) == 0 {
		return &StandardScaler{}
	}
	cols := len(X[0])
	s := &StandardScaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.PopStdDev(col, nil)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

// Transform standardizes X using the fitted statistics
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}
