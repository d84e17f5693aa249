package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qahub/internal/answer"
	"qahub/internal/config"
	"qahub/internal/embedding/tfidf"
	"qahub/internal/generation/extractive"
	"qahub/internal/vectorstore"
	"qahub/internal/vectorstore/memory"
	"qahub/internal/vectorstore/sqlite"
)

func TestNew_DefaultConfigAnswersFromSeed(t *testing.T) {
	a, err := New(config.Default(), nil)
	require.NoError(t, err)

	_, err = a.Session.Seed(context.Background())
	require.NoError(t, err)
	assert.False(t, a.Generator.Loaded())

	ans, err := a.Session.Ask(context.Background(), "What is Bitcoin's max supply?")
	require.NoError(t, err)
	assert.False(t, ans.Refused)
	assert.NotEmpty(t, ans.Text)
	assert.True(t, a.Generator.Loaded())

	ans, err = a.Session.Ask(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, answer.RefusalMessage, ans.Text)
}

func TestNew_SQLiteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "sqlite"
	a, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = a.Session.Seed(context.Background())
	require.NoError(t, err)
	_, err = a.Session.Seed(context.Background())
	require.NoError(t, err)

	ans, err := a.Session.Ask(context.Background(), "Which is more eco-friendly than mining?")
	require.NoError(t, err)
	assert.False(t, ans.Refused)
	assert.Equal(t, "Proof of Stake is more eco-friendly than mining.", ans.Sources[0])
	require.NoError(t, a.Session.Close())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.Type = "gpt2"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestFactories(t *testing.T) {
	emb, err := NewEmbedder(config.EmbedderConfig{Type: "tfidf"})
	require.NoError(t, err)
	assert.IsType(t, &tfidf.Embedder{}, emb)

	t.Setenv("QAHUB_NO_KEY", "")
	_, err = NewEmbedder(config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIConfig{APIKeyEnv: "QAHUB_NO_KEY"}})
	assert.Error(t, err)

	store, err := NewStorage(config.VectorStoreConfig{Type: "memory"}, vectorstore.Cosine)
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, store)

	store, err = NewStorage(config.VectorStoreConfig{Type: "sqlite"}, vectorstore.L2)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Storage{}, store)
	require.NoError(t, store.(*sqlite.Storage).Close())

	gen, err := NewGenerator(config.GeneratorConfig{Type: "extractive"})
	require.NoError(t, err)
	assert.IsType(t, &extractive.Generator{}, gen)

	_, err = NewGenerator(config.GeneratorConfig{Type: "bogus"})
	assert.Error(t, err)
}

func TestNew_GeneratorInitFailureSurfacesOnAsk(t *testing.T) {
	t.Setenv("QAHUB_NO_KEY", "")
	cfg := config.Default()
	cfg.Generator = config.GeneratorConfig{Type: "openai", OpenAI: &config.OpenAIConfig{APIKeyEnv: "QAHUB_NO_KEY"}}
	a, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = a.Session.Seed(context.Background())
	require.NoError(t, err)
	_, err = a.Session.Ask(context.Background(), "What is Bitcoin's max supply?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QAHUB_NO_KEY")
}
