// Package app wires configuration into a ready-to-use session.
package app

import (
	"fmt"
	"os"
	"time"

	"qahub/internal/answer"
	"qahub/internal/config"
	"qahub/internal/convert"
	"qahub/internal/domain"
	"qahub/internal/embedding/ollama"
	"qahub/internal/embedding/openai"
	"qahub/internal/embedding/tfidf"
	"qahub/internal/generation"
	"qahub/internal/generation/extractive"
	genollama "qahub/internal/generation/ollama"
	genopenai "qahub/internal/generation/openai"
	"qahub/internal/index"
	"qahub/internal/log"
	"qahub/internal/session"
	"qahub/internal/vectorstore"
	"qahub/internal/vectorstore/memory"
	"qahub/internal/vectorstore/qdrant"
	"qahub/internal/vectorstore/sqlite"
)

// App bundles the session with the pieces presentation layers need.
type App struct {
	Config    *config.AppConfig
	Session   *session.Session
	Converter *convert.Registry
	Generator *generation.Lazy
	Logger    *log.Logger
}

// New validates cfg and builds the session. Remote generators are only
// contacted on the first answerable question.
func New(cfg *config.AppConfig, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Nop()
	}
	metric, err := vectorstore.ParseMetric(cfg.VectorStore.Metric)
	if err != nil {
		return nil, err
	}

	gen := generation.NewLazy(func() (domain.Generator, error) {
		g, err := NewGenerator(cfg.Generator)
		if err != nil {
			logger.Error("generator init failed", "type", cfg.Generator.Type, "error", err)
			return nil, err
		}
		logger.Info("generator ready", "type", cfg.Generator.Type)
		return g, nil
	})
	policy := answer.Policy{
		TopK:            cfg.Retrieval.TopK,
		Threshold:       cfg.Retrieval.DistanceThreshold,
		MaxOutputTokens: cfg.Retrieval.MaxOutputTokens,
	}
	newIndex := func() (domain.Index, error) {
		emb, err := NewEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
		store, err := NewStorage(cfg.VectorStore, metric)
		if err != nil {
			return nil, err
		}
		return index.New(emb, store), nil
	}
	registry := convert.NewRegistry()
	sess := session.New(answer.NewAnswerer(gen, policy), newIndex,
		session.WithConverter(registry),
		session.WithLogger(logger.With("component", "session")),
		session.WithLimits(session.Limits{MaxFiles: cfg.Ingest.MaxFiles, MaxFileBytes: cfg.MaxFileBytes()}),
	)
	return &App{Config: cfg, Session: sess, Converter: registry, Generator: gen, Logger: logger}, nil
}

// NewEmbedder builds a fresh embedder. TF-IDF state is per index, so every
// index gets its own instance.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		c := cfg.OpenAI
		if c == nil {
			c = &config.OpenAIConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Timeout:   seconds(c.TimeoutSecs),
		})
	case "ollama":
		c := cfg.Ollama
		if c == nil {
			c = &config.OllamaConfig{}
		}
		return ollama.NewEmbedder(ollama.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: seconds(c.TimeoutSecs)}), nil
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}

// NewStorage builds an empty vector store.
func NewStorage(cfg config.VectorStoreConfig, metric vectorstore.Metric) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.NewStorage(metric), nil
	case "sqlite":
		path := ""
		if cfg.SQLite != nil {
			path = cfg.SQLite.Path
		}
		return sqlite.NewStorage(sqlite.Config{Path: path, Metric: metric})
	case "qdrant":
		c := cfg.Qdrant
		if c == nil {
			c = &config.QdrantConfig{}
		}
		key := ""
		if c.APIKeyEnv != "" {
			key = os.Getenv(c.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        c.URL,
			APIKey:     key,
			Collection: c.Collection,
			Metric:     metric,
			Timeout:    seconds(c.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.Type)
	}
}

// NewGenerator builds the configured generator.
func NewGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "", "extractive":
		return extractive.New(), nil
	case "openai":
		c := cfg.OpenAI
		if c == nil {
			c = &config.OpenAIConfig{}
		}
		return genopenai.New(genopenai.Config{
			BaseURL:           c.BaseURL,
			APIKeyEnv:         c.APIKeyEnv,
			Model:             c.Model,
			Timeout:           seconds(c.TimeoutSecs),
			RequestsPerSecond: c.RequestsPerSecond,
		})
	case "ollama":
		c := cfg.Ollama
		if c == nil {
			c = &config.OllamaConfig{}
		}
		return genollama.New(genollama.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: seconds(c.TimeoutSecs)}), nil
	default:
		return nil, fmt.Errorf("unknown generator type: %s", cfg.Type)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
