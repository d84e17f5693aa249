package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds connection details for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// RequestsPerSecond paces generator calls; zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Metric string        `yaml:"metric"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig locates the SQLite database. An empty path keeps it in memory.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects and configures the answer generator.
type GeneratorConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// RetrievalConfig holds the relevance gate parameters.
type RetrievalConfig struct {
	TopK              int     `yaml:"top_k"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
	MaxOutputTokens   int     `yaml:"max_output_tokens"`
}

// IngestConfig bounds ingestion batches.
type IngestConfig struct {
	MaxFiles      int  `yaml:"max_files"`
	MaxFileSizeMB int  `yaml:"max_file_size_mb"`
	Seed          bool `yaml:"seed"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/qahub/config.yaml.
// If neither exists, it writes defaults to ~/.config/qahub/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "qahub", "config.yaml"), nil
}

// Default returns the offline configuration: TF-IDF embeddings, an
// in-memory store, the extractive generator and the seed documents.
func Default() *AppConfig {
	return &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "l2"},
		Generator:   GeneratorConfig{Type: "extractive"},
		Retrieval:   RetrievalConfig{TopK: 3, DistanceThreshold: 1.5, MaxOutputTokens: 150},
		Ingest:      IngestConfig{MaxFiles: 5, MaxFileSizeMB: 10, Seed: true},
		Server:      ServerConfig{Addr: ":8080"},
		Log:         LogConfig{Level: "info"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Embedder.Ollama, "nomic-embed-text", 30)
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini", 60)
	}
	if cfg.Generator.Type == "ollama" {
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Generator.Ollama, "llama3.2", 120)
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "docs"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "l2"
	}
}

func openAIDefaults(c *OpenAIConfig, model string, timeout int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeout
	}
}

func ollamaDefaults(c *OllamaConfig, model string, timeout int) {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeout
	}
}

// Validate rejects unknown implementation names and non-positive limits.
func (c *AppConfig) Validate() error {
	var errs []error
	if !oneOf(c.Embedder.Type, "tfidf", "openai", "ollama") {
		errs = append(errs, fmt.Errorf("embedder.type: unknown %q", c.Embedder.Type))
	}
	if !oneOf(c.VectorStore.Type, "memory", "sqlite", "qdrant") {
		errs = append(errs, fmt.Errorf("vector_store.type: unknown %q", c.VectorStore.Type))
	}
	if !oneOf(c.VectorStore.Metric, "", "l2", "cosine") {
		errs = append(errs, fmt.Errorf("vector_store.metric: unknown %q", c.VectorStore.Metric))
	}
	if !oneOf(c.Generator.Type, "extractive", "openai", "ollama") {
		errs = append(errs, fmt.Errorf("generator.type: unknown %q", c.Generator.Type))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be positive"))
	}
	if c.Retrieval.DistanceThreshold <= 0 {
		errs = append(errs, errors.New("retrieval.distance_threshold must be positive"))
	}
	if c.Retrieval.MaxOutputTokens <= 0 {
		errs = append(errs, errors.New("retrieval.max_output_tokens must be positive"))
	}
	if c.Ingest.MaxFiles <= 0 {
		errs = append(errs, errors.New("ingest.max_files must be positive"))
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("ingest.max_file_size_mb must be positive"))
	}
	return errors.Join(errs...)
}

// MaxFileBytes is the per-file ingestion limit in bytes.
func (c *AppConfig) MaxFileBytes() int64 {
	return int64(c.Ingest.MaxFileSizeMB) << 20
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
