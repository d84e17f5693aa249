package memory

import (
	"context"
	"errors"
	"sync"

	"qahub/internal/domain"
	"qahub/internal/vectorstore"
)

// Storage is a simple in-memory vector store using a brute-force scan.
type Storage struct {
	mu        sync.RWMutex
	metric    vectorstore.Metric
	dimension int
	vectors   [][]float32
	docs      []domain.Document
}

func NewStorage(metric vectorstore.Metric) *Storage {
	if metric == "" {
		metric = vectorstore.L2
	}
	return &Storage{metric: metric}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.docs = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return nil, nil
	}
	matches := make([]domain.Match, 0, len(s.vectors))
	for i := range s.vectors {
		d, err := s.metric.Distance(s.vectors[i], vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, domain.Match{Document: s.docs[i], Distance: d})
	}
	return vectorstore.TopK(matches, topK), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.docs = nil
	return nil
}
