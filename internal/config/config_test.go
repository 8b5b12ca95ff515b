package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "MIGRATIONS_PROFILE", "MIGRATIONS_DIR", "MIGRATIONS_TABLE",
		"DATABASE_URL", "DB_URL", "DB_ENGINE", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASS", "DB_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://app:pw@db:5432/app?sslmode=disable")
	t.Setenv("MIGRATIONS_TABLE", "app_migrations")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)

	p, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, "env", p.Name)
	require.Equal(t, "postgres", p.Database.Engine)
	require.Equal(t, "app_migrations", p.Table)
	require.Equal(t, DefaultDir, p.Dir)
}

func TestLoadDefaultsToSQLite(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	p, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, "sqlite", p.Database.Engine)
	require.Equal(t, DefaultSQLiteFile, p.Database.Name)
	require.Equal(t, DefaultTable, p.Table)
}

func TestSQLiteAliasGetsDefaultFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ENGINE", "sqlite3")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	p, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, DefaultSQLiteFile, p.Database.Name)
}

func TestLoadProfiles(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PASS", "s3cret")
	path := writeConfig(t, `
default_profile: local
log_level: debug
log_format: json
profiles:
  local:
    dir: ./db/migrations
    database:
      engine: sqlite
      name: ./local.db
  prod:
    table: prod_migrations
    database:
      engine: mariadb
      host: prod-host
      user: app
      password: ${DB_PASS}
      name: app
      params:
        tls: "true"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)

	local, err := cfg.Profile("")
	require.NoError(t, err)
	require.Equal(t, "local", local.Name)
	require.Equal(t, "./db/migrations", local.Dir)
	require.Equal(t, DefaultTable, local.Table)

	prod, err := cfg.Profile("prod")
	require.NoError(t, err)
	require.Equal(t, "s3cret", prod.Database.Password)
	require.Equal(t, "prod_migrations", prod.Table)
	require.Equal(t, "true", prod.Database.Params["tls"])

	_, err = cfg.Profile("nope")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestEnvOverridesLogSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MIGRATIONS_PROFILE", "local")
	path := writeConfig(t, `
log_level: debug
profiles:
  local:
    database:
      engine: sqlite
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "local", cfg.DefaultProfile)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
profiles:
  broken:
    database:
      engine: oracle
      name: x
  nameless:
    database:
      engine: postgres
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Profile("broken")
	require.Error(t, err)

	_, err = cfg.Profile("nameless")
	require.EqualError(t, err, "database name or url is required")
}

func TestEngineFromURL(t *testing.T) {
	require.Equal(t, "postgres", engineFromURL("postgresql://localhost/db"))
	require.Equal(t, "mariadb", engineFromURL("mysql://u:p@host/db"))
	require.Equal(t, "sqlite", engineFromURL("sqlite:///tmp/x.db"))
	require.Equal(t, "", engineFromURL("user:pass@tcp(host:3306)/db"))
}

func TestSampleParses(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, Sample()))
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 3)

	staging, err := cfg.Profile("staging")
	require.NoError(t, err)
	require.Equal(t, "postgres", staging.Database.Engine)
}
