package fingerprint

import (
	"math"
	"math/rand"
)

// kmeans runs Lloyd's algorithm with k-means++ seeding over squared
// Euclidean distance. The seeded rand source is the only randomness, so a
// fixed seed yields identical centroids on every run. Callers guarantee
// len(vectors) >= k >= 1.
func kmeans(vectors [][]float32, k int, seed int64, maxIter int) [][]float32 {
	if maxIter < 1 {
		maxIter = 300
	}
	rng := rand.New(rand.NewSource(seed))
	centroids := seedCentroids(vectors, k, rng)
	assign := make([]int, len(vectors))
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			nearest := nearestCentroid(v, centroids)
			if assign[i] != nearest {
				assign[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}
		recomputeCentroids(vectors, assign, centroids)
	}
	return centroids
}

// seedCentroids picks k starting centroids: the first uniformly, each
// subsequent one weighted by squared distance to the nearest chosen
// centroid.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, cloneVector(vectors[rng.Intn(len(vectors))]))
	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			nearest := math.MaxFloat64
			for _, c := range centroids {
				if d := squaredDistance(v, c); d < nearest {
					nearest = d
				}
			}
			dists[i] = nearest
			total += nearest
		}
		next := len(vectors) - 1
		if total == 0 {
			next = rng.Intn(len(vectors))
		} else {
			target := rng.Float64() * total
			for i, d := range dists {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, cloneVector(vectors[next]))
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		if d := squaredDistance(v, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// recomputeCentroids replaces each centroid with the mean of its assigned
// vectors. An empty cluster reseeds from the vector farthest from its
// current centroid, first farthest winning, which keeps the repair
// deterministic.
func recomputeCentroids(vectors [][]float32, assign []int, centroids [][]float32) {
	dim := len(vectors[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assign[i]
		counts[c]++
		for j, x := range v {
			sums[c][j] += float64(x)
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			far := 0
			farDist := -1.0
			for i, v := range vectors {
				if d := squaredDistance(v, centroids[assign[i]]); d > farDist {
					far, farDist = i, d
				}
			}
			centroids[c] = cloneVector(vectors[far])
			continue
		}
		out := make([]float32, dim)
		for j := range out {
			out[j] = float32(sums[c][j] / float64(counts[c]))
		}
		centroids[c] = out
	}
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
