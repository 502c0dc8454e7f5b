package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration, loaded by
// viper from a YAML file with environment overrides and validated with
// go-playground/validator before anything else starts.
type Config struct {
	Server struct {
		Port           int    `mapstructure:"port" validate:"min=1,max=65535"`
		Host           string `mapstructure:"host"`
		Mode           string `mapstructure:"mode" validate:"oneof=debug release test"`
		ReadTimeout    string `mapstructure:"read_timeout"`
		WriteTimeout   string `mapstructure:"write_timeout"`
		IdleTimeout    string `mapstructure:"idle_timeout"`
		MaxHeaderBytes int    `mapstructure:"max_header_bytes"`
		EnableCORS     bool   `mapstructure:"enable_cors"`
	} `mapstructure:"server"`

	Database struct {
		Type       string `mapstructure:"type" validate:"oneof=postgres sqlite"`
		PostgreSQL struct {
			DSN         string `mapstructure:"dsn"`
			MaxConns    int    `mapstructure:"max_connections" validate:"min=1"`
			MaxIdle     int    `mapstructure:"max_idle" validate:"min=1"`
			MaxLifetime string `mapstructure:"max_lifetime"`
			AutoMigrate bool   `mapstructure:"auto_migrate"`
		} `mapstructure:"postgresql"`
		SQLite struct {
			Path        string `mapstructure:"path"`
			AutoMigrate bool   `mapstructure:"auto_migrate"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"database"`

	// Sources configures the four federated source adapters (C1).
	Sources struct {
		Scholar struct {
			Enabled bool   `mapstructure:"enabled"`
			APIKey  string `mapstructure:"api_key"`
			Timeout string `mapstructure:"timeout"`
		} `mapstructure:"scholar"`
		Crossref struct {
			Enabled bool   `mapstructure:"enabled"`
			BaseURL string `mapstructure:"base_url"`
			Timeout string `mapstructure:"timeout"`
		} `mapstructure:"crossref"`
		OpenAlex struct {
			Enabled bool   `mapstructure:"enabled"`
			BaseURL string `mapstructure:"base_url"`
			Timeout string `mapstructure:"timeout"`
		} `mapstructure:"openalex"`
		Arxiv struct {
			Enabled bool   `mapstructure:"enabled"`
			BaseURL string `mapstructure:"base_url"`
			Timeout string `mapstructure:"timeout"`
		} `mapstructure:"arxiv"`
		PerSourceTimeout string `mapstructure:"per_source_timeout"`
	} `mapstructure:"sources"`

	// LLM configures the Gemini-via-OpenAI-compatible-endpoint client shared
	// by the relevance validator (C5), the query augmenter (C7), and the
	// embedding store (C8).
	LLM struct {
		APIKey           string `mapstructure:"api_key"`
		BaseURL          string `mapstructure:"base_url"`
		ChatModel        string `mapstructure:"chat_model"`
		EmbeddingModel   string `mapstructure:"embedding_model"`
		EmbeddingDim     int    `mapstructure:"embedding_dim"`
		RequestTimeout   string `mapstructure:"request_timeout"`
		PerSlotPaceDelay string `mapstructure:"per_slot_pace_delay"`
		Concurrency      int    `mapstructure:"concurrency"`
	} `mapstructure:"llm"`

	// VectorStore configures the embedding store's persisted pair (C8).
	VectorStore struct {
		PathPrefix string `mapstructure:"path_prefix"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"vector_store"`

	ResearchEmail string `mapstructure:"research_email"`
	AdminMode     bool   `mapstructure:"admin_mode"`

	Logging struct {
		Level     string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format    string `mapstructure:"format" validate:"oneof=json text"`
		AddSource bool   `mapstructure:"add_source"`
		Output    string `mapstructure:"output" validate:"oneof=stdout stderr file"`
		FilePath  string `mapstructure:"file_path"`
	} `mapstructure:"logging"`

	Security struct {
		APIKeys []string `mapstructure:"api_keys"`
		CORS    struct {
			Enabled        bool     `mapstructure:"enabled"`
			AllowedOrigins []string `mapstructure:"allowed_origins"`
			AllowedMethods []string `mapstructure:"allowed_methods"`
			AllowedHeaders []string `mapstructure:"allowed_headers"`
			MaxAge         string   `mapstructure:"max_age"`
		} `mapstructure:"cors"`
	} `mapstructure:"security"`

	Circuit struct {
		Enabled          bool   `mapstructure:"enabled"`
		FailureThreshold int    `mapstructure:"failure_threshold"`
		SuccessThreshold int    `mapstructure:"success_threshold"`
		Timeout          string `mapstructure:"timeout"`
		MaxRequests      int    `mapstructure:"max_requests"`
		SlidingWindow    string `mapstructure:"sliding_window"`
		MinRequestCount  int    `mapstructure:"min_request_count"`
	} `mapstructure:"circuit"`

	Retry struct {
		Enabled       bool    `mapstructure:"enabled"`
		MaxAttempts   int     `mapstructure:"max_attempts"`
		InitialDelay  string  `mapstructure:"initial_delay"`
		MaxDelay      string  `mapstructure:"max_delay"`
		BackoffFactor float64 `mapstructure:"backoff_factor"`
		Jitter        bool    `mapstructure:"jitter"`
	} `mapstructure:"retry"`

	Monitoring struct {
		Enabled     bool   `mapstructure:"enabled"`
		MetricsPort int    `mapstructure:"metrics_port"`
		HealthPath  string `mapstructure:"health_path"`
	} `mapstructure:"monitoring"`
}

// TimeoutConfig contains parsed timeout durations.
type TimeoutConfig struct {
	Default     time.Duration
	Database    time.Duration
	ExternalAPI time.Duration
	PerSource   time.Duration
	HealthCheck time.Duration
	Server      ServerTimeoutConfig
}

type ServerTimeoutConfig struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// LoadConfig loads configuration from the default path.
func LoadConfig() (*Config, error) {
	return LoadConfigFromPath("configs/config.yaml")
}

// LoadConfigFromPath loads configuration from a specific path, environment
// overrides (prefix LITSCOUT_), and built-in defaults, then validates it.
func LoadConfigFromPath(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("LITSCOUT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment variables that carry secrets directly, per §6.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("SERPAPI_KEY"); key != "" {
		config.Sources.Scholar.APIKey = key
	}
	if email := os.Getenv("RESEARCH_EMAIL"); email != "" {
		config.ResearchEmail = email
	}

	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if config.Sources.Scholar.APIKey == "" {
		// Per §6/§7: missing SERPAPI_KEY disables the adapter silently
		// rather than failing startup.
		config.Sources.Scholar.Enabled = false
	}
	if config.LLM.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	return &config, nil
}

// GetTimeoutConfig returns parsed timeout configurations.
func (c *Config) GetTimeoutConfig() (*TimeoutConfig, error) {
	serverRead, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid server read timeout: %w", err)
	}
	serverWrite, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid server write timeout: %w", err)
	}
	serverIdle, err := time.ParseDuration(c.Server.IdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid server idle timeout: %w", err)
	}
	perSource, err := time.ParseDuration(c.Sources.PerSourceTimeout)
	if err != nil {
		perSource = 45 * time.Second
	}

	return &TimeoutConfig{
		Default:     30 * time.Second,
		Database:    5 * time.Second,
		ExternalAPI: 15 * time.Second,
		PerSource:   perSource,
		HealthCheck: 5 * time.Second,
		Server: ServerTimeoutConfig{
			Read:  serverRead,
			Write: serverWrite,
			Idle:  serverIdle,
		},
	}, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool { return c.Server.Mode == "debug" }

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool { return c.Server.Mode == "release" }

// IsTest returns true if running in test mode.
func (c *Config) IsTest() bool { return c.Server.Mode == "test" }

// GetDatabaseConnectionString returns the appropriate database connection string.
func (c *Config) GetDatabaseConnectionString() (string, error) {
	switch c.Database.Type {
	case "postgres":
		if c.Database.PostgreSQL.DSN == "" {
			return "", fmt.Errorf("PostgreSQL DSN is required when type is postgres")
		}
		return c.Database.PostgreSQL.DSN, nil
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return "", fmt.Errorf("SQLite path is required when type is sqlite")
		}
		return c.Database.SQLite.Path, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.enable_cors", true)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.postgresql.max_connections", 25)
	viper.SetDefault("database.postgresql.max_idle", 10)
	viper.SetDefault("database.postgresql.max_lifetime", "1h")
	viper.SetDefault("database.postgresql.auto_migrate", true)
	viper.SetDefault("database.sqlite.path", "./litscout.db")
	viper.SetDefault("database.sqlite.auto_migrate", true)

	viper.SetDefault("sources.scholar.enabled", true)
	viper.SetDefault("sources.scholar.timeout", "15s")
	viper.SetDefault("sources.crossref.enabled", true)
	viper.SetDefault("sources.crossref.base_url", "https://api.crossref.org/works")
	viper.SetDefault("sources.crossref.timeout", "15s")
	viper.SetDefault("sources.openalex.enabled", true)
	viper.SetDefault("sources.openalex.base_url", "https://api.openalex.org/works")
	viper.SetDefault("sources.openalex.timeout", "15s")
	viper.SetDefault("sources.arxiv.enabled", true)
	viper.SetDefault("sources.arxiv.base_url", "http://export.arxiv.org/api/query")
	viper.SetDefault("sources.arxiv.timeout", "15s")
	viper.SetDefault("sources.per_source_timeout", "45s")

	viper.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("llm.chat_model", "gemini-2.5-flash")
	viper.SetDefault("llm.embedding_model", "text-embedding-004")
	viper.SetDefault("llm.embedding_dim", 768)
	viper.SetDefault("llm.request_timeout", "30s")
	viper.SetDefault("llm.per_slot_pace_delay", "7s")
	viper.SetDefault("llm.concurrency", 3)

	viper.SetDefault("vector_store.path_prefix", "data/embeddings")
	viper.SetDefault("vector_store.compress", false)

	viper.SetDefault("research_email", "research@example.com")
	viper.SetDefault("admin_mode", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("security.cors.enabled", true)
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
	viper.SetDefault("security.cors.max_age", "12h")

	viper.SetDefault("circuit.enabled", true)
	viper.SetDefault("circuit.failure_threshold", 5)
	viper.SetDefault("circuit.success_threshold", 3)
	viper.SetDefault("circuit.timeout", "60s")
	viper.SetDefault("circuit.max_requests", 10)
	viper.SetDefault("circuit.sliding_window", "60s")
	viper.SetDefault("circuit.min_request_count", 10)

	viper.SetDefault("retry.enabled", true)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_delay", "2s")
	viper.SetDefault("retry.max_delay", "8s")
	viper.SetDefault("retry.backoff_factor", 2.0)
	viper.SetDefault("retry.jitter", true)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
	viper.SetDefault("monitoring.health_path", "/health")
}
