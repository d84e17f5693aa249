package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedder_PrepareAndEmbed(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{
		"Bitcoin's supply is capped at 21 million coins.",
		"Ethereum enables smart contracts and NFTs.",
	}
	require.NoError(t, e.Prepare(corpus))
	assert.Greater(t, e.Dimension(), 0)

	v, err := e.Embed(context.Background(), corpus[0])
	require.NoError(t, err)
	assert.Len(t, v, e.Dimension())
	assert.InDelta(t, 1.0, norm(v), 1e-5)
}

func TestEmbedder_UnknownTextIsZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"solana validators"}))

	v, err := e.Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm(v))
}

func TestEmbedder_Errors(t *testing.T) {
	e := NewEmbedder()
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, e.Prepare(nil))
	assert.Error(t, e.Prepare([]string{"the a an"}))

	require.NoError(t, e.Prepare([]string{"bitcoin"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, "bitcoin")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	e := NewEmbedder()
	assert.Equal(t, []string{"bitcoin's", "max", "supply"}, e.Tokenize("What is Bitcoin's max supply?"))
	assert.Equal(t, []string{"capped", "21", "million"}, e.Tokenize("capped at 21 million"))
}

func TestEmbedder_RelatedTextIsCloser(t *testing.T) {
	e := NewEmbedder()
	corpus := []string{
		"Bitcoin's supply is capped at 21 million coins.",
		"Ethereum enables smart contracts and NFTs.",
		"Solana is known for high-speed transactions.",
	}
	require.NoError(t, e.Prepare(corpus))
	ctx := context.Background()
	q, err := e.Embed(ctx, "What is Bitcoin's max supply?")
	require.NoError(t, err)
	btc, _ := e.Embed(ctx, corpus[0])
	eth, _ := e.Embed(ctx, corpus[1])

	dist := func(a, b []float32) float64 {
		s := 0.0
		for i := range a {
			d := float64(a[i] - b[i])
			s += d * d
		}
		return s
	}
	assert.Less(t, dist(q, btc), 1.5)
	assert.InDelta(t, 2.0, dist(q, eth), 1e-5)
}
