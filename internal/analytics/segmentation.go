package analytics

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

// segmentationSeed fixes the k-means random source for reproducibility
const segmentationSeed = 42

// ClusterStat summarizes one cluster's size and spend
type ClusterStat struct {
	Cluster      int     `json:"cluster"`
	Count        int     `json:"count"`
	TotalMean    float64 `json:"total_mean"`
	TotalSum     float64 `json:"total_sum"`
	QuantityMean float64 `json:"quantity_mean"`
	QuantitySum  float64 `json:"quantity_sum"`
}

// CategoryShare is a categorical value and its within-cluster proportion
type CategoryShare struct {
	Value      string  `json:"value"`
	Proportion float64 `json:"proportion"`
}

// ClusterProfile describes the qualitative makeup of one cluster
type ClusterProfile struct {
	Cluster         int                      `json:"cluster"`
	Dominant        map[string]CategoryShare `json:"dominant,omitempty"`
	TopProductLines []CategoryShare          `json:"top_product_lines,omitempty"`
}

// SegmentationResult is the full output of the segmentation engine
type SegmentationResult struct {
	Dataset  *dataset.Dataset `json:"-"`
	K        int              `json:"n_clusters"`
	Stats    []ClusterStat    `json:"clusters"`
	Profiles []ClusterProfile `json:"profiles"`
}

// profiledColumns are the categoricals summarized per cluster when present
var profiledColumns = []string{dataset.ColGender, dataset.ColCustomerType, dataset.ColPayment}

// Segment standardizes the clustering features and partitions rows into k
// groups. The feature set is {Total, Quantity} plus {Profit, Profit Margin}
// when those derived columns exist; rows missing any selected feature are
// excluded and receive no cluster id. Standardization statistics come from
// the clustering subset only. Returns a typed validation error for k < 1,
// and a model-fit error when fewer than k complete rows or fewer than two
// usable feature columns remain.
func Segment(d *dataset.Dataset, k int, logger *slog.Logger) (*SegmentationResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if k < 1 {
		return nil, apierrors.ValidationError("n_clusters must be at least 1")
	}

	features := []string{dataset.ColTotal, dataset.ColQuantity}
	if missing := d.MissingColumns(features...); len(missing) > 0 {
		return nil, apierrors.MissingColumns(missing...)
	}
	for _, extra := range []string{dataset.ColProfit, dataset.ColProfitMargin} {
		if d.HasColumn(extra) {
			features = append(features, extra)
		}
	}

	// rows with a complete feature vector
	var X [][]float64
	var rowIdx []int
	for i, row := range d.Rows {
		vec := make([]float64, len(features))
		complete := true
		for j, f := range features {
			v := row[f]
			if v.Kind != dataset.KindNumber {
				complete = false
				break
			}
			vec[j] = v.Num
		}
		if complete {
			X = append(X, vec)
			rowIdx = append(rowIdx, i)
		}
	}

	if len(X) < k {
		return nil, apierrors.ModelFitError("insufficient data for segmentation: need at least as many complete rows as clusters")
	}

	scaled := FitScaler(X).Transform(X)
	assign, err := NewKMeans(k, segmentationSeed).FitPredict(scaled)
	if err != nil {
		return nil, apierrors.ModelFitError(err.Error())
	}

	out := d.Clone()
	out.AddColumn(dataset.ColCluster)
	for _, row := range out.Rows {
		if _, ok := row[dataset.ColCluster]; !ok {
			row[dataset.ColCluster] = dataset.Missing()
		}
	}
	for pos, i := range rowIdx {
		out.Rows[i][dataset.ColCluster] = dataset.Number(float64(assign[pos]))
	}

	logger.Info("segmentation complete",
		slog.Int("n_clusters", k),
		slog.Int("clustered_rows", len(X)),
		slog.Int("total_rows", d.Len()),
	)

	return &SegmentationResult{
		Dataset:  out,
		K:        k,
		Stats:    clusterStats(out, k),
		Profiles: clusterProfiles(out, k),
	}, nil
}

// clusterStats computes count and Total/Quantity mean and sum per cluster
func clusterStats(d *dataset.Dataset, k int) []ClusterStat {
	totals := make([][]float64, k)
	quantities := make([][]float64, k)
	for _, row := range d.Rows {
		c, ok := clusterOf(row)
		if !ok {
			continue
		}
		if v := row[dataset.ColTotal]; v.Kind == dataset.KindNumber {
			totals[c] = append(totals[c], v.Num)
		}
		if v := row[dataset.ColQuantity]; v.Kind == dataset.KindNumber {
			quantities[c] = append(quantities[c], v.Num)
		}
	}

	stats := make([]ClusterStat, k)
	for c := 0; c < k; c++ {
		s := ClusterStat{Cluster: c, Count: len(totals[c])}
		if len(totals[c]) > 0 {
			s.TotalMean = stat.Mean(totals[c], nil)
			s.TotalSum = sum(totals[c])
		}
		if len(quantities[c]) > 0 {
			s.QuantityMean = stat.Mean(quantities[c], nil)
			s.QuantitySum = sum(quantities[c])
		}
		stats[c] = s
	}
	return stats
}

// clusterProfiles derives dominant categoricals and top product lines
func clusterProfiles(d *dataset.Dataset, k int) []ClusterProfile {
	profiles := make([]ClusterProfile, k)
	for c := 0; c < k; c++ {
		profiles[c] = ClusterProfile{Cluster: c}
	}

	counts := make([]map[string]map[string]int, k)
	sizes := make([]int, k)
	for c := range counts {
		counts[c] = make(map[string]map[string]int)
	}

	for _, row := range d.Rows {
		c, ok := clusterOf(row)
		if !ok {
			continue
		}
		sizes[c]++
		for _, col := range append(append([]string(nil), profiledColumns...), dataset.ColProductLine) {
			if !d.HasColumn(col) {
				continue
			}
			v := row[col]
			if v.Kind != dataset.KindString {
				continue
			}
			if counts[c][col] == nil {
				counts[c][col] = make(map[string]int)
			}
			counts[c][col][v.Str]++
		}
	}

	for c := 0; c < k; c++ {
		if sizes[c] == 0 {
			continue
		}
		for _, col := range profiledColumns {
			if top := topShares(counts[c][col], sizes[c], 1); len(top) > 0 {
				if profiles[c].Dominant == nil {
					profiles[c].Dominant = make(map[string]CategoryShare)
				}
				profiles[c].Dominant[col] = top[0]
			}
		}
		profiles[c].TopProductLines = topShares(counts[c][dataset.ColProductLine], sizes[c], 3)
	}

	return profiles
}

// topShares returns the n most frequent values with their proportions,
// ties broken alphabetically for stable output.
func topShares(freq map[string]int, total, n int) []CategoryShare {
	if len(freq) == 0 || total == 0 {
		return nil
	}
	shares := make([]CategoryShare, 0, len(freq))
	for v, c := range freq {
		shares = append(shares, CategoryShare{Value: v, Proportion: float64(c) / float64(total)})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Proportion != shares[j].Proportion {
			return shares[i].Proportion > shares[j].Proportion
		}
		return shares[i].Value < shares[j].Value
	})
	if len(shares) > n {
		shares = shares[:n]
	}
	return shares
}

func clusterOf(row dataset.Row) (int, bool) {
	v := row[dataset.ColCluster]
	if v.Kind != dataset.KindNumber {
		return 0, false
	}
	return int(v.Num), true
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}
