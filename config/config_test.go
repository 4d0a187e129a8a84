package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://backend.test/api/")

	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Address)
	assert.Equal(t, "sqlite", cfg.CacheDriver)
	assert.Equal(t, "cash", cfg.PaymentMethod)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestNewConfigRequiresBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	os.Unsetenv("API_BASE_URL")

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestNewConfigLoadsEnvFile(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	os.Unsetenv("API_BASE_URL")
	t.Setenv("CATALOG_REFRESH_INTERVAL", "")
	os.Unsetenv("CATALOG_REFRESH_INTERVAL")

	path := filepath.Join(t.TempDir(), "terminal.env")
	content := "API_BASE_URL=https://from-file.test/\nCATALOG_REFRESH_INTERVAL=15m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-file.test/", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
}
