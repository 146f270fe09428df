package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAMLThenEnvThenFlags(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
env: test
dsl_dir: models
database:
  url: postgres://rapid:secret@db:5432/rapid
  default_schema: app
  conn_max_lifetime: 5m
`)
	t.Setenv("RAPID_DSL_DIR", "from-env")
	t.Setenv("RAPID_AUTO_SYNC", "false")

	cfg, err := Load([]string{"-config", path, "-port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "from-env", cfg.DSLDir)
	assert.False(t, cfg.AutoSync)
	assert.Equal(t, "app", cfg.Database.DefaultSchema)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "reference/dictionaries", cfg.DictionariesDir)
	assert.Equal(t, "postgres://rapid:xxxxx@db:5432/rapid", cfg.RedactedDatabaseURL())
}

func TestLoad_EnvOnlyWhenFileMissing(t *testing.T) {
	t.Setenv("RAPID_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("RAPID_DB_URL", "postgres://localhost/rapid")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.AutoSync)
	assert.Equal(t, "public", cfg.Database.DefaultSchema)
	assert.Equal(t, "postgres://localhost/rapid", cfg.Database.URL)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("RAPID_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("RAPID_DB_URL", "")

	_, err := Load(nil)
	assert.ErrorContains(t, err, "database url is required")

	cfg, err := Load([]string{"-db", "postgres://localhost/x", "-auto-sync", "no"})
	require.NoError(t, err)
	assert.False(t, cfg.AutoSync)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"local", "production"} {
		cfg := &Config{Env: env}
		logger, err := cfg.NewLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
