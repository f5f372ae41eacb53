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
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.unsplash.com", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.PageSize)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ":8080", cfg.Proxy.Addr)
	assert.Equal(t, 4, cfg.Download.Workers)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plashr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  access_key: file-key
  page_size: 20
  timeout: 5s
redis:
  addr: redis:6379
  db: 2
kafka:
  enabled: true
  brokers: [k1:9092, k2:9092]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.API.AccessKey)
	assert.Equal(t, 20, cfg.API.PageSize)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plashr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  access_key: file-key\n"), 0o600))
	t.Setenv("PLASHR_API_ACCESS_KEY", "env-key")
	t.Setenv("PLASHR_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.API.AccessKey)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plashr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRequireAPI(t *testing.T) {
	cfg := &Config{API: APIConfig{PageSize: 30}}
	assert.Error(t, cfg.RequireAPI())

	cfg.API.AccessKey = "key"
	assert.NoError(t, cfg.RequireAPI())

	cfg.API.PageSize = 50
	assert.Error(t, cfg.RequireAPI())

	cfg.API.PageSize = 10
	assert.Error(t, cfg.RequireOAuth())
	cfg.API.SecretKey = "secret"
	assert.NoError(t, cfg.RequireOAuth())
}
