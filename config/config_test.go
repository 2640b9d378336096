package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mfg.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.UseMemoryStore())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"MFG_PORT":         "9090",
		"MFG_DB_PATH":      "memory",
		"MFG_LOG_LEVEL":    "DEBUG",
		"MFG_LOG_FORMAT":   "json",
		"MFG_CORS_ORIGINS": "https://a.example, https://b.example,,",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{"MFG_PORT": "eighty"}))
	assert.Error(t, err)

	_, err = FromEnv(lookupFrom(map[string]string{"MFG_LOG_FORMAT": "xml"}))
	assert.Error(t, err)
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	// GIVEN: a .env file with a port and no matching process variable
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MFG_PORT=7070\n"), 0o600))
	t.Setenv("MFG_PORT", "")
	require.NoError(t, os.Unsetenv("MFG_PORT"))

	// WHEN
	cfg, err := Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"

	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("dropped")
	logger.WithField("module", "inventory").Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"module":"inventory"`)

	cfg.LogLevel = "loud"
	_, err = newLogger(cfg, &buf)
	assert.Error(t, err)
}
