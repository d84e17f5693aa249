package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qahub/internal/domain"
	"qahub/internal/embedding/tfidf"
	"qahub/internal/vectorstore/memory"
	"qahub/internal/vectorstore/sqlite"
)

var cryptoDocs = []domain.Document{
	{ID: "doc1", Text: "Bitcoin's supply is capped at 21 million coins."},
	{ID: "doc2", Text: "Ethereum enables smart contracts and NFTs."},
	{ID: "doc3", Text: "Solana is known for high-speed transactions."},
}

func TestIndex_QueryFindsRelevantDocument(t *testing.T) {
	ctx := context.Background()
	idx := New(tfidf.NewEmbedder(), memory.NewStorage(""))
	require.NoError(t, idx.ReplaceAll(ctx, cryptoDocs))
	assert.Equal(t, 3, idx.Len())

	res, err := idx.Query(ctx, "What is Bitcoin's max supply?", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "doc1", res[0].Document.ID)
	assert.LessOrEqual(t, res[0].Distance, 1.5)
	assert.InDelta(t, 2.0, res[1].Distance, 1e-5)
}

func TestIndex_EmptyAndUnknownQueries(t *testing.T) {
	ctx := context.Background()
	idx := New(tfidf.NewEmbedder(), memory.NewStorage(""))

	res, err := idx.Query(ctx, "What is Ethereum?", 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, idx.ReplaceAll(ctx, cryptoDocs))
	res, err = idx.Query(ctx, "weather forecast tomorrow", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_ReplaceAllDiscardsPrevious(t *testing.T) {
	ctx := context.Background()
	idx := New(tfidf.NewEmbedder(), memory.NewStorage(""))
	require.NoError(t, idx.ReplaceAll(ctx, cryptoDocs))
	require.NoError(t, idx.ReplaceAll(ctx, []domain.Document{{ID: "doc1", Text: "Cardano uses proof of stake."}}))
	assert.Equal(t, 1, idx.Len())

	res, err := idx.Query(ctx, "Cardano stake", 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].Document.Text, "Cardano")

	require.NoError(t, idx.ReplaceAll(ctx, nil))
	assert.Equal(t, 0, idx.Len())
	res, err = idx.Query(ctx, "Cardano", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndex_RejectsDuplicateIDs(t *testing.T) {
	idx := New(tfidf.NewEmbedder(), memory.NewStorage(""))
	err := idx.ReplaceAll(context.Background(), []domain.Document{{ID: "a", Text: "x"}, {ID: "a", Text: "y"}})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

type failingEmbedder struct{ *tfidf.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func TestIndex_EmbedderFailurePropagates(t *testing.T) {
	idx := New(failingEmbedder{tfidf.NewEmbedder()}, memory.NewStorage(""))
	err := idx.ReplaceAll(context.Background(), cryptoDocs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder offline")
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_SQLiteBackendAndClose(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStorage(sqlite.Config{})
	require.NoError(t, err)
	idx := New(tfidf.NewEmbedder(), store)
	require.NoError(t, idx.ReplaceAll(ctx, cryptoDocs))

	res, err := idx.Query(ctx, "smart contracts", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "doc2", res[0].Document.ID)
	assert.NoError(t, idx.Close())
}

func TestIndex_RebuildOnSharedSQLiteFileKeepsActiveIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "qahub.sqlite")
	newSQLiteIndex := func() *Index {
		store, err := sqlite.NewStorage(sqlite.Config{Path: path})
		require.NoError(t, err)
		return New(tfidf.NewEmbedder(), store)
	}

	active := newSQLiteIndex()
	defer active.Close()
	require.NoError(t, active.ReplaceAll(ctx, cryptoDocs[:1]))

	next := newSQLiteIndex()
	require.NoError(t, next.ReplaceAll(ctx, cryptoDocs[1:]))

	res, err := active.Query(ctx, "bitcoin supply", 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "doc1", res[0].Document.ID)

	res, err = next.Query(ctx, "smart contracts", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "doc2", res[0].Document.ID)
	assert.NoError(t, next.Close())
}

func TestIndex_EmptyIDIsInvalid(t *testing.T) {
	idx := New(tfidf.NewEmbedder(), memory.NewStorage(""))
	err := idx.ReplaceAll(context.Background(), []domain.Document{{ID: "", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.NotErrorIs(t, err, domain.ErrDuplicateID)
}
