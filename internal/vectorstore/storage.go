package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"qahub/internal/domain"
)

// Storage persists vectors and supports similarity search. Search returns
// matches ordered by ascending distance.
type Storage interface {
	// Init prepares an empty store for vectors of the given dimension,
	// discarding anything stored before.
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.Match, error)
	Clear(ctx context.Context) error
}

// Metric names a dissimilarity function.
type Metric string

const (
	// L2 is the squared Euclidean distance.
	L2 Metric = "l2"
	// Cosine is one minus the cosine similarity.
	Cosine Metric = "cosine"
)

// ParseMetric maps a config value to a Metric. Empty means L2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", L2:
		return L2, nil
	case Cosine:
		return Cosine, nil
	default:
		return "", fmt.Errorf("unknown distance metric: %s", s)
	}
}

// Distance computes the dissimilarity between a and b. Cosine distance
// against a zero vector is 1.
func (m Metric) Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	switch m {
	case Cosine:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	default:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return sum, nil
	}
}

// TopK sorts matches by ascending distance, keeping insertion order for ties,
// and truncates to k. Non-positive k keeps everything.
func TopK(matches []domain.Match, k int) []domain.Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
