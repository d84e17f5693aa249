package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qahub/internal/domain"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, L2, m)

	m, err = ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	_, err = ParseMetric("manhattan")
	assert.Error(t, err)
}

func TestMetricDistance(t *testing.T) {
	d, err := L2.Distance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 25.0, d)

	d, err = Cosine.Distance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)

	d, err = Cosine.Distance([]float32{1, 0}, []float32{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)

	d, err = Cosine.Distance([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	_, err = L2.Distance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestTopK_StableAscending(t *testing.T) {
	in := []domain.Match{
		{Document: domain.Document{ID: "a"}, Distance: 0.5},
		{Document: domain.Document{ID: "b"}, Distance: 0.1},
		{Document: domain.Document{ID: "c"}, Distance: 0.5},
		{Document: domain.Document{ID: "d"}, Distance: 0.9},
	}
	out := TopK(in, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].Document.ID)
	assert.Equal(t, "a", out[1].Document.ID)
	assert.Equal(t, "c", out[2].Document.ID)

	assert.Len(t, TopK(in, 0), 4)
}
