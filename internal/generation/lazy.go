// Package generation holds the process-wide generator handle and the
// generator backends in its subpackages.
package generation

import (
	"context"
	"errors"
	"sync"

	"qahub/internal/domain"
)

// Factory builds a generator. It may be slow (model download, remote
// handshake) and is called at most once per successful initialisation.
type Factory func() (domain.Generator, error)

// Lazy defers building the generator until the first Generate call and
// reuses it for the rest of the process lifetime. A failed build is retried
// on the next call.
type Lazy struct {
	mu      sync.Mutex
	factory Factory
	gen     domain.Generator
}

var _ domain.Generator = (*Lazy)(nil)

func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Generate initialises the generator if needed and delegates to it.
func (l *Lazy) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g, err := l.get()
	if err != nil {
		return "", err
	}
	return g.Generate(ctx, prompt, maxTokens)
}

// Loaded reports whether the generator has been built.
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen != nil
}

func (l *Lazy) get() (domain.Generator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != nil {
		return l.gen, nil
	}
	if l.factory == nil {
		return nil, errors.New("no generator configured")
	}
	g, err := l.factory()
	if err != nil {
		return nil, err
	}
	l.gen = g
	return g, nil
}
