package analytics

import (
	"errors"
	"math"
	"math/rand"
)

// KMeans partitions data points into K clusters with k-means++ seeding.
// The random source is seeded explicitly so repeated fits on identical
// input produce identical assignments.
type KMeans struct {
	K       int
	MaxIter int
	Seed    int64

	Centroids [][]float64
	Inertia   float64
}

// NewKMeans creates a KMeans model with the given cluster count and seed
func NewKMeans(k int, seed int64) *KMeans {
	return &KMeans{
		K:       k,
		MaxIter: 300,
		Seed:    seed,
	}
}

// FitPredict trains the model and returns one cluster id in [0,K-1] per row
func (m *KMeans) FitPredict(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("kmeans: input data cannot be empty")
	}
	if m.K < 1 {
		return nil, errors.New("kmeans: K must be at least 1")
	}
	n, p := len(X), len(X[0])
	if n < m.K {
		return nil, errors.New("kmeans: fewer data points than clusters")
	}

	rnd := rand.New(rand.NewSource(m.Seed))
	m.initCenters(X, rnd)

	assign := make([]int, n)
	for it := 0; it < m.MaxIter; it++ {
		changed := false
		m.Inertia = 0

		// Assignment step
		for i := range X {
			best, bestD := 0, math.MaxFloat64
			for k := 0; k < m.K; k++ {
				if d := euclidSquared(X[i], m.Centroids[k]); d < bestD {
					bestD = d
					best = k
				}
			}
			if assign[i] != best {
				changed = true
			}
			assign[i] = best
			m.Inertia += bestD
		}

		// Update step
		sums := make([][]float64, m.K)
		counts := make([]int, m.K)
		for k := range sums {
			sums[k] = make([]float64, p)
		}
		for i, k := range assign {
			counts[k]++
			for j := 0; j < p; j++ {
				sums[k][j] += X[i][j]
			}
		}
		for k := 0; k < m.K; k++ {
			if counts[k] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				m.Centroids[k][j] = sums[k][j] / float64(counts[k])
			}
		}

		if !changed && it > 0 {
			break
		}
	}

	return assign, nil
}

// initCenters seeds centroids with k-means++: the first at random, each
// subsequent one sampled proportionally to squared distance from the
// nearest existing centroid.
func (m *KMeans) initCenters(X [][]float64, rnd *rand.Rand) {
	n := len(X)
	m.Centroids = make([][]float64, m.K)

	idx := rnd.Intn(n)
	m.Centroids[0] = append([]float64(nil), X[idx]...)

	distSq := make([]float64, n)
	for k := 1; k < m.K; k++ {
		total := 0.0
		for i, x := range X {
			minDist := math.MaxFloat64
			for _, c := range m.Centroids[:k] {
				if d := euclidSquared(x, c); d < minDist {
					minDist = d
				}
			}
			distSq[i] = minDist
			total += minDist
		}

		if total == 0 {
			// all remaining points coincide with a centroid
			m.Centroids[k] = append([]float64(nil), X[rnd.Intn(n)]...)
			continue
		}

		r := rnd.Float64() * total
		cumulative := 0.0
		chosen := n - 1
		for i, d := range distSq {
			cumulative += d
			if cumulative >= r {
				chosen = i
				break
			}
		}
		m.Centroids[k] = append([]float64(nil), X[chosen]...)
	}
}

func euclidSquared(a, b []float64) float64 {
	var sum float64
	for j := range a {
		d := a[j] - b[j]
		sum += d * d
	}
	return sum
}
