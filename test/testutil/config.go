package testutil

import (
	"testing"

	"litscout/internal/config"
)

// TestConfig creates a minimal configuration suitable for unit and
// integration tests: SQLite in memory, every outbound adapter disabled
// except the ones a test explicitly re-enables, and quiet logging.
func TestConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}

	cfg.Server.Port = 0
	cfg.Server.Host = "localhost"
	cfg.Server.Mode = "test"
	cfg.Server.ReadTimeout = "5s"
	cfg.Server.WriteTimeout = "5s"
	cfg.Server.IdleTimeout = "30s"

	cfg.Database.Type = "sqlite"
	cfg.Database.SQLite.Path = ":memory:"
	cfg.Database.SQLite.AutoMigrate = true

	cfg.Sources.Scholar.Enabled = false
	cfg.Sources.Crossref.Enabled = false
	cfg.Sources.OpenAlex.Enabled = false
	cfg.Sources.Arxiv.Enabled = false
	cfg.Sources.PerSourceTimeout = "5s"

	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = "http://127.0.0.1:0"
	cfg.LLM.ChatModel = "gemini-2.5-flash"
	cfg.LLM.EmbeddingModel = "text-embedding-004"
	cfg.LLM.EmbeddingDim = 768
	cfg.LLM.RequestTimeout = "5s"
	cfg.LLM.PerSlotPaceDelay = "0s"
	cfg.LLM.Concurrency = 1

	cfg.ResearchEmail = "test@example.com"

	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Logging.AddSource = false
	cfg.Logging.Output = "stdout"

	cfg.Security.CORS.Enabled = true
	cfg.Security.CORS.AllowedOrigins = []string{"*"}

	cfg.Circuit.Enabled = false

	cfg.Retry.Enabled = true
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.InitialDelay = "10ms"
	cfg.Retry.MaxDelay = "50ms"
	cfg.Retry.BackoffFactor = 1.5
	cfg.Retry.Jitter = false

	cfg.Monitoring.Enabled = false

	return cfg
}

// TestConfigWithPostgreSQL overrides the database section of TestConfig to
// point at a live Postgres instance (typically a testcontainer).
func TestConfigWithPostgreSQL(t *testing.T, connectionString string) *config.Config {
	cfg := TestConfig(t)
	cfg.Database.Type = "postgres"
	cfg.Database.PostgreSQL.DSN = connectionString
	cfg.Database.PostgreSQL.MaxConns = 5
	cfg.Database.PostgreSQL.MaxIdle = 2
	cfg.Database.PostgreSQL.MaxLifetime = "5m"
	cfg.Database.PostgreSQL.AutoMigrate = true
	return cfg
}
