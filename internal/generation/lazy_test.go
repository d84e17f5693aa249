package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qahub/internal/domain"
)

type echo struct{}

func (echo) Generate(_ context.Context, prompt string, _ int) (string, error) { return prompt, nil }

func TestLazy_BuildsOnce(t *testing.T) {
	var mu sync.Mutex
	builds := 0
	l := NewLazy(func() (domain.Generator, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return echo{}, nil
	})
	assert.False(t, l.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := l.Generate(context.Background(), "p", 10)
			assert.NoError(t, err)
			assert.Equal(t, "p", out)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, builds)
	assert.True(t, l.Loaded())
}

func TestLazy_RetriesFailedBuild(t *testing.T) {
	attempts := 0
	l := NewLazy(func() (domain.Generator, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("model unavailable")
		}
		return echo{}, nil
	})

	_, err := l.Generate(context.Background(), "p", 1)
	require.EqualError(t, err, "model unavailable")
	assert.False(t, l.Loaded())

	out, err := l.Generate(context.Background(), "p", 1)
	require.NoError(t, err)
	assert.Equal(t, "p", out)
	assert.Equal(t, 2, attempts)
}

func TestLazy_NilFactory(t *testing.T) {
	_, err := NewLazy(nil).Generate(context.Background(), "p", 1)
	assert.Error(t, err)
}
