package analytics

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

// churnSeed fixes the train/test split and forest for reproducibility
const churnSeed = 42

// churnFeatureNames is the classifier input, in reported order
var churnFeatureNames = []string{
	"Total",
	"Quantity",
	"Average Purchase Value",
	"Days Since Last Purchase",
}

// ChurnFeatures is the prepared training input for the churn classifier
type ChurnFeatures struct {
	X        [][]float64
	Y        []int
	Features []string
}

// ChurnResult reports the trained classifier's evaluation and rates
type ChurnResult struct {
	Accuracy       float64   `json:"accuracy"`
	Features       []string  `json:"features"`
	Importances    []float64 `json:"importances"`
	TestSize       int       `json:"test_size"`
	ChurnRate      float64   `json:"churn_rate"`
	RetentionRate  float64   `json:"retention_rate"`
	ChurnCount     int       `json:"churn_count"`
	TotalCustomers int       `json:"total_customers"`
}

// PrepareChurnFeatures derives the churn label and feature matrix.
// thresholdDays is the recency cutoff: a record is labeled churned when
// strictly more than thresholdDays have passed since its purchase date,
// measured against now. A pre-existing Churn column takes precedence over
// the derived label. Rows with missing or non-finite feature values are
// dropped. Fails with a typed validation error when Date, Total or
// Quantity is absent.
func PrepareChurnFeatures(d *dataset.Dataset, thresholdDays int, now time.Time, logger *slog.Logger) (*ChurnFeatures, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if thresholdDays < 1 {
		return nil, apierrors.ValidationError("churn threshold must be at least 1 day")
	}
	if missing := d.MissingColumns(dataset.ColDate, dataset.ColTotal, dataset.ColQuantity); len(missing) > 0 {
		return nil, apierrors.MissingColumns(missing...)
	}

	hasLabel := d.HasColumn(dataset.ColChurn)

	var X [][]float64
	var y []int
	dropped := 0
	for _, row := range d.Rows {
		date := row[dataset.ColDate]
		total := row[dataset.ColTotal]
		qty := row[dataset.ColQuantity]
		if date.Kind != dataset.KindDate || total.Kind != dataset.KindNumber || qty.Kind != dataset.KindNumber {
			dropped++
			continue
		}

		days := math.Floor(now.Sub(date.Time).Hours() / 24)
		avgPurchase := total.Num / math.Max(qty.Num, 1)

		vec := []float64{total.Num, qty.Num, avgPurchase, days}
		if !allFinite(vec) {
			dropped++
			continue
		}

		label := 0
		if hasLabel {
			v := row[dataset.ColChurn]
			if v.Kind != dataset.KindNumber {
				dropped++
				continue
			}
			if v.Num != 0 {
				label = 1
			}
		} else if days > float64(thresholdDays) {
			label = 1
		}

		X = append(X, vec)
		y = append(y, label)
	}

	if dropped > 0 {
		logger.Debug("dropped rows during churn preparation", slog.Int("rows", dropped))
	}

	return &ChurnFeatures{X: X, Y: y, Features: churnFeatureNames}, nil
}

// TrainChurn splits the prepared features 70/30 with a fixed seed, fits a
// random forest, and reports test accuracy, normalized feature importances
// and churn/retention rates. Returns (nil, nil) when training cannot
// proceed (no rows, or a split side came up empty) so callers can degrade
// instead of failing the whole request.
func TrainChurn(features *ChurnFeatures, logger *slog.Logger) (*ChurnResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if features == nil || len(features.X) == 0 {
		logger.Warn("churn training skipped, no usable rows")
		return nil, nil
	}

	trainIdx, testIdx := trainTestSplit(len(features.X), 0.3, churnSeed)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		logger.Warn("churn training skipped, not enough rows to split",
			slog.Int("rows", len(features.X)))
		return nil, nil
	}

	Xtrain, ytrain := subset(features.X, features.Y, trainIdx)
	Xtest, ytest := subset(features.X, features.Y, testIdx)

	forest := NewRandomForest(100, churnSeed)
	if err := forest.Fit(Xtrain, ytrain); err != nil {
		return nil, apierrors.ModelFitError(err.Error())
	}

	preds := forest.Predict(Xtest)
	correct := 0
	for i, p := range preds {
		if p == ytest[i] {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(ytest))

	churnCount := 0
	for _, label := range features.Y {
		churnCount += label
	}
	churnRate := float64(churnCount) / float64(len(features.Y))

	logger.Info("churn model trained",
		slog.Float64("accuracy", accuracy),
		slog.Int("train_size", len(trainIdx)),
		slog.Int("test_size", len(testIdx)),
	)

	return &ChurnResult{
		Accuracy:       accuracy,
		Features:       features.Features,
		Importances:    forest.FeatureImportances(),
		TestSize:       len(testIdx),
		ChurnRate:      churnRate,
		RetentionRate:  1 - churnRate,
		ChurnCount:     churnCount,
		TotalCustomers: len(features.Y),
	}, nil
}

// trainTestSplit shuffles indices with a seeded source and carves off the
// trailing testFraction as the test set.
func trainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	idx := rand.New(rand.NewSource(seed)).Perm(n)
	testSize := int(float64(n) * testFraction)
	if testSize == 0 && n > 1 {
		testSize = 1
	}
	split := n - testSize
	return idx[:split], idx[split:]
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	Xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		Xs[i] = X[j]
		ys[i] = y[j]
	}
	return Xs, ys
}

func allFinite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
