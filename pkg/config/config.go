package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration for the review service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Provider  ProviderConfig  `yaml:"provider"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Teaching  TeachingConfig  `yaml:"teaching"`
	Batch     BatchConfig     `yaml:"batch"`
	Cache     CacheConfig     `yaml:"cache"`
	Messaging MessagingConfig `yaml:"messaging"`
	Temporal  TemporalConfig  `yaml:"temporal"`
	Security  SecurityConfig  `yaml:"security"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures storage
type DatabaseConfig struct {
	Type string `yaml:"type"` // "sqlite", "postgres"
	Path string `yaml:"path"` // For SQLite
	DSN  string `yaml:"dsn"`  // For Postgres
}

// ProviderConfig configures the OpenAI-compatible completion service
type ProviderConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`     // per call
	Retries  int           `yaml:"max_retries"` // on transient failures; capped at 1
}

// ScoringConfig configures the quality scorer and transcript parser
type ScoringConfig struct {
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	AgentNames  []string `yaml:"agent_names"` // sender labels treated as the agent
}

// TeachingConfig configures the teaching dialogue engine
type TeachingConfig struct {
	Temperature           float64 `yaml:"temperature"`            // conversational turns
	ExtractionTemperature float64 `yaml:"extraction_temperature"` // save_learning / agree extraction
	MaxTokens             int     `yaml:"max_tokens"`
	MinHistoryToSave      int     `yaml:"min_history_to_save"`
}

// BatchConfig controls batch scoring and the baseline job
type BatchConfig struct {
	MaxLeads          int    `yaml:"max_leads"`
	DefaultDaysBack   int    `yaml:"default_days_back"`
	BaselineOnStartup bool   `yaml:"baseline_on_startup"`
	BaselineSchedule  string `yaml:"baseline_schedule"` // cron spec with seconds; empty disables
}

// CacheConfig configures the score cache
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"` // "memory" or "redis"
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxSize    int           `yaml:"max_size"`
	RedisURL   string        `yaml:"redis_url"`
}

// MessagingConfig configures event publication over NATS
type MessagingConfig struct {
	Enabled    bool          `yaml:"enabled"`
	NATSURL    string        `yaml:"nats_url"`
	StreamName string        `yaml:"stream_name"`
	Timeout    time.Duration `yaml:"timeout"`
}

// TemporalConfig configures the Temporal-backed batch runner
type TemporalConfig struct {
	Enabled                  bool          `yaml:"enabled"`
	Host                     string        `yaml:"host"`
	Namespace                string        `yaml:"namespace"`
	TaskQueue                string        `yaml:"task_queue"`
	WorkflowExecutionTimeout time.Duration `yaml:"workflow_execution_timeout"`
}

// SecurityConfig configures API key checks and CORS
type SecurityConfig struct {
	EnableAuth     bool     `yaml:"enable_auth"`
	APIKeys        []string `yaml:"api_keys,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// LoadConfigFromFile loads configuration from a YAML file at the specified path.
// Values missing from the file keep their defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${OPENAI_API_KEY}) before parsing YAML
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Provider.Retries < 0 || c.Provider.Retries > 1 {
		return fmt.Errorf("provider.max_retries must be 0 or 1, got %d", c.Provider.Retries)
	}
	if c.Batch.MaxLeads <= 0 {
		return fmt.Errorf("batch.max_leads must be positive")
	}
	if c.Cache.Enabled && c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./convreview.db",
		},
		Provider: ProviderConfig{
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
			Retries:  1,
		},
		Scoring: ScoringConfig{
			Temperature: 0.3,
			MaxTokens:   2000,
			AgentNames:  []string{"sophie", "agent", "assistant", "ai", "bot", "us"},
		},
		Teaching: TeachingConfig{
			Temperature:           0.7,
			ExtractionTemperature: 0.2,
			MaxTokens:             600,
			MinHistoryToSave:      3,
		},
		Batch: BatchConfig{
			MaxLeads:        100,
			DefaultDaysBack: 30,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Backend:    "memory",
			DefaultTTL: 24 * time.Hour,
			MaxSize:    5000,
		},
		Messaging: MessagingConfig{
			NATSURL:    "nats://localhost:4222",
			StreamName: "CONVREVIEW",
			Timeout:    10 * time.Second,
		},
		Temporal: TemporalConfig{
			Host:                     "localhost:7233",
			Namespace:                "convreview",
			TaskQueue:                "convreview-batch",
			WorkflowExecutionTimeout: 2 * time.Hour,
		},
		Security: SecurityConfig{
			EnableAuth:     false,
			AllowedOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "convreview",
			OTLPEndpoint: "otel-collector:4317",
		},
	}
}
