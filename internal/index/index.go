// Package index turns an embedder and a vector store into a text-level
// document index.
package index

import (
	"context"
	"fmt"
	"io"
	"sync"

	"qahub/internal/domain"
	"qahub/internal/vectorstore"
)

// Index embeds documents into a vector store and answers text queries.
type Index struct {
	embedder domain.Embedder
	store    vectorstore.Storage

	mu    sync.RWMutex
	count int
}

var _ domain.Index = (*Index)(nil)

func New(embedder domain.Embedder, store vectorstore.Storage) *Index {
	return &Index{embedder: embedder, store: store}
}

// ReplaceAll discards the current contents and indexes docs. IDs must be
// non-empty (ErrInvalidID) and unique (ErrDuplicateID). An empty slice
// leaves the index empty.
func (i *Index) ReplaceAll(ctx context.Context, docs []domain.Document) error {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: empty id", domain.ErrInvalidID)
		}
		if _, ok := seen[d.ID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(docs) == 0 {
		i.count = 0
		return i.store.Clear(ctx)
	}

	texts := make([]string, len(docs))
	for n, d := range docs {
		texts[n] = d.Text
	}
	if err := i.embedder.Prepare(texts); err != nil {
		return fmt.Errorf("prepare embedder: %w", err)
	}
	vectors := make([][]float32, len(docs))
	for n, text := range texts {
		v, err := i.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", docs[n].ID, err)
		}
		vectors[n] = v
	}
	if err := i.store.Init(ctx, i.embedder.Dimension()); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := i.store.Upsert(ctx, docs, vectors); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	i.count = len(docs)
	return nil
}

// Query returns up to k matches for text, most similar first. An empty
// index, or a query that shares no vocabulary with the corpus, yields no
// matches.
func (i *Index) Query(ctx context.Context, text string, k int) ([]domain.Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.count == 0 {
		return nil, nil
	}
	v, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(v) {
		return nil, nil
	}
	return i.store.Search(ctx, v, k)
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

// Close releases the underlying store when it holds resources.
func (i *Index) Close() error {
	if c, ok := i.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
