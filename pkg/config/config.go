// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Kafka, Store, Chunking, OpenAI,
// Vision, Enrichment, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Store       StoreConfig       `yaml:"store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Search      SearchConfig      `yaml:"search"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Vision      VisionConfig      `yaml:"vision"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	// RateLimitRPS is the per-client request rate; 0 disables limiting.
	RateLimitRPS   float64 `yaml:"rateLimitRPS"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Kafka is optional; an
// empty broker list disables document events and analytics.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentEvents  string `yaml:"documentEvents"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	LockTTL  time.Duration `yaml:"lockTTL"`
}

// StoreConfig selects the chunk store backend and its hybrid search tuning.
type StoreConfig struct {
	Backend          string  `yaml:"backend"`
	VectorDimensions int     `yaml:"vectorDimensions"`
	HybridAlpha      float64 `yaml:"hybridAlpha"`
	Candidates       int     `yaml:"candidates"`
}

// ChunkingConfig controls the sliding window used to split extracted text.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// DocumentsConfig maps file extensions to the MIME types accepted for upload.
type DocumentsConfig struct {
	SupportedTypes map[string]string `yaml:"supportedTypes"`
}

// SearchConfig controls query result limits.
type SearchConfig struct {
	MaxResults   int `yaml:"maxResults"`
	DefaultLimit int `yaml:"defaultLimit"`
}

// OpenAIConfig holds credentials and model names for text generation and
// embeddings.
type OpenAIConfig struct {
	BaseURL         string        `yaml:"baseURL"`
	APIKey          string        `yaml:"apiKey"`
	ExpansionModel  string        `yaml:"expansionModel"`
	GenerationModel string        `yaml:"generationModel"`
	EmbeddingModel  string        `yaml:"embeddingModel"`
	MaxTokens       int           `yaml:"maxTokens"`
	Timeout         time.Duration `yaml:"timeout"`
	ExpandQueries   bool          `yaml:"expandQueries"`
}

// VisionConfig holds the image-analysis endpoint and key.
type VisionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EnrichmentConfig bounds the image enrichment fan-out.
type EnrichmentConfig struct {
	MaxConcurrency    int           `yaml:"maxConcurrency"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	CallTimeout       time.Duration `yaml:"callTimeout"`
}

// AnalyticsConfig controls event batching to Kafka and stats snapshots to
// PostgreSQL.
type AnalyticsConfig struct {
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DiagnosticsConfig toggles the gops agent.
type DiagnosticsConfig struct {
	Gops     bool   `yaml:"gops"`
	GopsAddr string `yaml:"gopsAddr"`
}

// Load reads a YAML config file (if provided), loads a .env file from the
// working directory when present, and applies environment-variable overrides.
// It returns a Config populated with sensible defaults for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if len(c.Documents.SupportedTypes) == 0 {
		return errors.New("documents.supportedTypes must not be empty")
	}
	switch c.Store.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.backend must be postgres or memory, got %q", c.Store.Backend)
	}
	if c.Store.HybridAlpha < 0 || c.Store.HybridAlpha > 1 {
		return fmt.Errorf("store.hybridAlpha must be in [0, 1], got %g", c.Store.HybridAlpha)
	}
	if c.Store.Backend == "postgres" && c.OpenAI.APIKey == "" {
		return errors.New("openai.apiKey is required for the postgres backend")
	}
	if c.Enrichment.MaxConcurrency <= 0 {
		return fmt.Errorf("enrichment.maxConcurrency must be positive, got %d", c.Enrichment.MaxConcurrency)
	}
	return nil
}

// MIMETypes returns the set of accepted MIME types.
func (d DocumentsConfig) MIMETypes() []string {
	out := make([]string, 0, len(d.SupportedTypes))
	for _, m := range d.SupportedTypes {
		out = append(out, m)
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  110 * time.Second,
			MaxUploadBytes:  32 << 20,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docqa",
			User:            "docqa",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docqa-analytics",
			Topics: KafkaTopics{
				DocumentEvents:  "document-events",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
			LockTTL:  5 * time.Minute,
		},
		Store: StoreConfig{
			Backend:          "postgres",
			VectorDimensions: 1536,
			HybridAlpha:      0.75,
			Candidates:       50,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Documents: DocumentsConfig{
			SupportedTypes: map[string]string{
				"pdf":  "application/pdf",
				"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"json": "application/json",
				"txt":  "text/plain",
			},
		},
		Search: SearchConfig{
			MaxResults:   50,
			DefaultLimit: 5,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ExpansionModel:  "gpt-4o-mini",
			GenerationModel: "gpt-4o",
			EmbeddingModel:  "text-embedding-3-small",
			MaxTokens:       1024,
			Timeout:         60 * time.Second,
			ExpandQueries:   true,
		},
		Vision: VisionConfig{
			Timeout: 20 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			MaxConcurrency:    4,
			RequestsPerSecond: 10,
			Burst:             10,
			CallTimeout:       20 * time.Second,
		},
		Analytics: AnalyticsConfig{
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Diagnostics: DiagnosticsConfig{
			GopsAddr: "127.0.0.1:6060",
		},
	}
}

// applyEnvOverrides reads DOCQA_* variables plus the credential names used by
// the hosted services and overrides the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCQA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCQA_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("DOCQA_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DOCQA_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DOCQA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DOCQA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DOCQA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DOCQA_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("DOCQA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("DOCQA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("DOCQA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DOCQA_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("DOCQA_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.Size = n
		}
	}
	if v := os.Getenv("DOCQA_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("DOCQA_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("AZURE_VISION_ENDPOINT"); v != "" {
		cfg.Vision.Endpoint = v
	}
	if v := os.Getenv("AZURE_VISION_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("DOCQA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCQA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DOCQA_GOPS"); v != "" {
		cfg.Diagnostics.Gops, _ = strconv.ParseBool(v)
	}
}
