package similarity

import (
	"errors"
	"math/rand/v2"
)

const defaultMaxIterations = 50

// ErrInvalidK is returned when KMeans is asked for fewer than one cluster.
var ErrInvalidK = errors.New("k must be at least 1")

// KMeansOptions tunes KMeans.
type KMeansOptions struct {
	// Metric selects the assignment distance. Cosine uses 1 - cosine
	// similarity; every other metric uses euclidean distance.
	Metric Metric

	// MaxIterations bounds Lloyd iterations. Defaults to 50.
	MaxIterations int

	// Seed makes centroid seeding reproducible.
	Seed uint64
}

// Cluster is one k-means partition. Members index into the input slice.
type Cluster struct {
	Centroid []float32
	Members  []int
}

// KMeans partitions vectors into at most k clusters using k-means++ seeding
// and Lloyd iterations. It is best-effort: results depend on the seed and
// empty clusters keep their previous centroid.
func KMeans(vectors [][]float32, k int, opts KMeansOptions) ([]Cluster, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	if k > len(vectors) {
		k = len(vectors)
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	dist := distanceFunc(opts.Metric)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	centroids := seedCentroids(vectors, k, dist, rng)

	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearest(v, centroids, dist)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		groups := make([][][]float32, k)
		for i, c := range assignments {
			groups[c] = append(groups[c], vectors[i])
		}
		for c, g := range groups {
			if len(g) > 0 {
				centroids[c] = Centroid(g)
			}
		}
	}

	clusters := make([]Cluster, k)
	for c := range clusters {
		clusters[c].Centroid = centroids[c]
	}
	for i, c := range assignments {
		clusters[c].Members = append(clusters[c].Members, i)
	}

	return clusters, nil
}

func distanceFunc(metric Metric) func(a, b []float32) float64 {
	if metric == Cosine {
		return func(a, b []float32) float64 {
			return 1 - CosineSimilarity(a, b)
		}
	}
	return EuclideanDistance
}

// seedCentroids picks k starting centroids with k-means++: each next centroid
// is drawn with probability proportional to its squared distance from the
// closest centroid chosen so far.
func seedCentroids(vectors [][]float32, k int, dist func(a, b []float32) float64, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, clone(vectors[rng.IntN(len(vectors))]))

	weights := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := dist(v, centroids[nearest(v, centroids, dist)])
			weights[i] = d * d
			total += weights[i]
		}

		// Every remaining point coincides with a centroid.
		if total == 0 {
			centroids = append(centroids, clone(vectors[rng.IntN(len(vectors))]))
			continue
		}

		target := rng.Float64() * total
		pick := len(vectors) - 1
		for i, w := range weights {
			target -= w
			if target <= 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(vectors[pick]))
	}

	return centroids
}

func nearest(v []float32, centroids [][]float32, dist func(a, b []float32) float64) int {
	best := 0
	bestDist := dist(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := dist(v, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
