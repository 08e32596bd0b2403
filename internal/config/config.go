// Package config assembles the application configuration: defaults, then an
// optional YAML file, then environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bull/campus-rag/internal/chunker"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/retrieval"
	"github.com/bull/campus-rag/internal/storage"
)

// PathEnv names the environment variable holding the YAML config path.
const PathEnv = "CAMPUS_RAG_CONFIG"

const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	APIKey    string `yaml:"-"`
}

// QdrantConfig holds the admin snapshot store. An empty Host disables it.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// Enabled reports whether a Qdrant host is configured.
func (q QdrantConfig) Enabled() bool { return q.Host != "" }

// AdminConfig says where the admin corpus comes from.
type AdminConfig struct {
	DocsPath    string `yaml:"docs_path"`
	Rebuild     bool   `yaml:"rebuild"`
	Concurrency int    `yaml:"concurrency"`
}

// GitHubConfig is the optional GitHub admin source. It is used instead of
// DocsPath when Owner and Repo are set.
type GitHubConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
	Ref   string `yaml:"ref"`
	Token string `yaml:"-"`
}

// Enabled reports whether a repository is configured.
func (g GitHubConfig) Enabled() bool { return g.Owner != "" && g.Repo != "" }

// AnswerConfig configures the answerer used by the ask tool.
type AnswerConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Port string `yaml:"port"`
	// HTTP serves MCP over streamable HTTP instead of stdio.
	HTTP bool `yaml:"http"`
}

// Config is the root configuration.
type Config struct {
	Chunking  chunker.Config    `yaml:"chunking"`
	Search    retrieval.Options `yaml:"search"`
	Metric    index.Metric      `yaml:"metric"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Qdrant    QdrantConfig      `yaml:"qdrant"`
	Admin     AdminConfig       `yaml:"admin"`
	GitHub    GitHubConfig      `yaml:"github"`
	Answer    AnswerConfig      `yaml:"answer"`
	Server    ServerConfig      `yaml:"server"`
	LogLevel  string            `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chunking: chunker.DefaultConfig(),
		Search:   retrieval.DefaultOptions(),
		Metric:   index.MetricCosine,
		Embedding: EmbeddingConfig{
			Provider:  ProviderOpenAI,
			Model:     embedding.DefaultModel,
			BatchSize: embedding.DefaultBatchSize,
		},
		Qdrant: QdrantConfig{
			Port:       6334,
			Collection: storage.DefaultCollection,
		},
		Admin: AdminConfig{
			DocsPath:    "docs",
			Concurrency: 4,
		},
		Server:   ServerConfig{Port: "8080"},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty and the file exists) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Admin.DocsPath, "ADMIN_DOCS_PATH")
	setString((*string)(&c.Chunking.Strategy), "CHUNKING_STRATEGY")
	setString((*string)(&c.Search.Strategy), "SEARCH_STRATEGY")
	setString((*string)(&c.Search.Fusion), "FUSION")
	setString((*string)(&c.Metric), "INDEX_METRIC")
	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setString(&c.Embedding.APIKey, "OPENAI_API_KEY")
	setString(&c.Qdrant.Host, "QDRANT_HOST")
	setString(&c.Qdrant.Collection, "QDRANT_COLLECTION")
	setString(&c.Server.Port, "PORT")
	setString(&c.GitHub.Owner, "GITHUB_OWNER")
	setString(&c.GitHub.Repo, "GITHUB_REPO")
	setString(&c.GitHub.Path, "GITHUB_PATH")
	setString(&c.GitHub.Ref, "GITHUB_REF")
	setString(&c.GitHub.Token, "GITHUB_TOKEN")
	setString(&c.Answer.Model, "ANSWER_MODEL")
	setString(&c.LogLevel, "LOG_LEVEL")

	return errors.Join(
		setInt(&c.Chunking.ChunkSize, "CHUNK_SIZE"),
		setInt(&c.Chunking.ChunkOverlap, "CHUNK_OVERLAP"),
		setFloat(&c.Chunking.Threshold, "SEMANTIC_THRESHOLD"),
		setInt(&c.Search.K, "SEARCH_K"),
		setFloat(&c.Search.Lambda, "MMR_LAMBDA"),
		setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION"),
		setInt(&c.Qdrant.Port, "QDRANT_PORT"),
		setInt(&c.Admin.Concurrency, "INDEX_CONCURRENCY"),
		setBool(&c.Admin.Rebuild, "ADMIN_REBUILD"),
		setBool(&c.Server.HTTP, "SERVER_MODE"),
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	*dst = i
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: fmt.Sprintf("not a number: %q", v)}
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return &domain.ConfigError{Field: key, Reason: fmt.Sprintf("not a boolean: %q", v)}
	}
	*dst = b
	return nil
}

// Validate checks every section and resolves derived values such as the
// embedding dimension of a known OpenAI model.
func (c *Config) Validate() error {
	strategy, err := chunker.ParseStrategy(string(c.Chunking.Strategy))
	if err != nil {
		return err
	}
	c.Chunking.Strategy = strategy
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	c.Search.Strategy, _ = retrieval.ParseStrategy(string(c.Search.Strategy))
	c.Search.Fusion, _ = retrieval.ParseFusion(string(c.Search.Fusion))
	if c.Metric, err = index.ParseMetric(string(c.Metric)); err != nil {
		return err
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			c.Embedding.Model = embedding.DefaultModel
		}
		dim, err := embedding.ModelDimension(c.Embedding.Model)
		if err != nil {
			return err
		}
		if c.Embedding.Dimension != 0 && c.Embedding.Dimension != dim {
			return &domain.ConfigError{
				Field:  "embedding.dimension",
				Reason: fmt.Sprintf("model %s produces %d dimensions, not %d", c.Embedding.Model, dim, c.Embedding.Dimension),
			}
		}
		c.Embedding.Dimension = dim
	case ProviderHash:
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = embedding.DefaultHashDimension
		}
		if c.Embedding.Dimension < 0 {
			return &domain.ConfigError{Field: "embedding.dimension", Reason: fmt.Sprintf("must be positive, got %d", c.Embedding.Dimension)}
		}
	default:
		return &domain.ConfigError{Field: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q (want openai or hash)", c.Embedding.Provider)}
	}

	if c.Qdrant.Enabled() && (c.Qdrant.Port <= 0 || c.Qdrant.Collection == "") {
		return &domain.ConfigError{Field: "qdrant", Reason: "port and collection are required when host is set"}
	}
	if c.Admin.Concurrency <= 0 {
		return &domain.ConfigError{Field: "admin.concurrency", Reason: fmt.Sprintf("must be positive, got %d", c.Admin.Concurrency)}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &domain.ConfigError{Field: "log_level", Reason: fmt.Sprintf("unknown level %q", s)}
	}
}
