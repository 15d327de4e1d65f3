package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100_000, cfg.ExportMaxRows)
	assert.Equal(t, 30, cfg.ExportDefaultDays)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vibeanalytics.toml")
	body := `
env = "development"
port = "9000"
export_max_rows = 10
jwt_secret = "from-file"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("VA_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "env overrides file")
	assert.Equal(t, 10, cfg.ExportMaxRows, "file overrides default")
	assert.Equal(t, "from-file", cfg.JWTSecret, "unset env keeps file value")
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "text", cfg.LogFormat, "development defaults to text logs")
}

func TestExplicitLogFormatWins(t *testing.T) {
	t.Setenv("VA_ENV", "development")
	t.Setenv("VA_LOG_FORMAT", "json")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VA_EXPORT_MAX_ROWS", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
