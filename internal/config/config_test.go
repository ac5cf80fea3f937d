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

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "cartsync", cfg.Mongo.Database)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.Cache.ProductTTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9000
mongo:
  database: fromfile
log:
  level: debug
`), 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CARTSYNC_MONGO__DATABASE", "fromenv")
	t.Setenv("CARTSYNC_HTTP__REQUEST_TIMEOUT", "5s")
	t.Setenv("CARTSYNC_KAFKA__BROKERS", "k1:9092, k2:9092")
	t.Setenv("CARTSYNC_HTTP__ALLOWED_ORIGINS", "*")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "fromenv", cfg.Mongo.Database)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CARTSYNC_REDIS__ENABLED=true\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CARTSYNC_REDIS__ENABLED") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "CARTSYNC_LOG__LEVEL", "loud"},
		{"bad port", "CARTSYNC_HTTP__PORT", "70000"},
		{"negative timeout", "CARTSYNC_HTTP__REQUEST_TIMEOUT", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "mongo.uri", envTransform("CARTSYNC_MONGO__URI"))
	assert.Equal(t, "http.max_request_body_size", envTransform("CARTSYNC_HTTP__MAX_REQUEST_BODY_SIZE"))
}
