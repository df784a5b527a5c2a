package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
openai_key: key-from-file
model: gpt-4o
server:
  port: 9090
  cors_origins: ["https://app.example.com"]
  shutdown_timeout: 5s
store:
  backend: redis
  redis:
    addr: redis.internal:6379
    session_ttl: 24h
flight_api_base_url: http://flights.internal
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-from-file", cfg.OpenAIKey)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Store.Redis.SessionTTL)
	assert.Equal(t, 10, cfg.Store.Redis.PoolSize)
	assert.Equal(t, "http://flights.internal", cfg.FlightAPIBaseURL)
}

func TestLoad_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "key-from-env")
	path := writeConfig(t, `model: gpt-4o-mini`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.OpenAIKey)
}

func TestLoad_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "key-from-env")
	path := writeConfig(t, `openai_key: key-from-file`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-from-file", cfg.OpenAIKey)
}

func TestLoad_UnknownBackendRejected(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: cassandra
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 70000
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_FlightAPIDefaultsToServerPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.FlightAPIBaseURL)
}
