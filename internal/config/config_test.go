package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Approvals.PageSize)
	assert.Equal(t, 100, cfg.Approvals.MaxBulk)
	assert.Equal(t, 30*time.Second, cfg.Approvals.StatsCacheTTL)
	assert.Equal(t, "approval-decisions", cfg.Kafka.Topic)
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "development secret is filled in outside release mode")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  port: "9090"
approvals:
  page_size: 25
logger:
  format: console
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Approvals.PageSize)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorContains string
	}{
		{"release requires secret", func(c *Config) { c.Server.Mode = "release"; c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"page size too large", func(c *Config) { c.Approvals.PageSize = 500 }, "page_size"},
		{"bulk limit must be positive", func(c *Config) { c.Approvals.MaxBulk = 0 }, "max_bulk"},
		{"kafka topic required", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, "kafka.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Server:    ServerConfig{Mode: "debug"},
				Auth:      AuthConfig{JWTSecret: "x"},
				Approvals: ApprovalsConfig{PageSize: 10, MaxBulk: 100},
				Kafka:     KafkaConfig{Topic: "t"},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}
