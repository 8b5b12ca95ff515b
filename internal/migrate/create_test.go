package migrate

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
}

func TestCreateSQL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	path, err := Create("Add Users Table", CreateOptions{Dir: dir, Profile: "local", Now: fixedNow})
	require.NoError(t, err)

	require.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}__add_users_table\.sql$`), filepath.Base(path))
	require.Equal(t, "20240102_020405__add_users_table.sql", filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "-- +migrate Up")
	require.Contains(t, string(body), "-- +migrate Down")
	require.Contains(t, string(body), "-- profile: local")

	migrations, err := List(os.DirFS(dir), nil)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	require.Equal(t, "20240102_020405__add_users_table", migrations[0].ID)
	require.Equal(t, "add_users_table", migrations[0].Slug)
	require.Nil(t, migrations[0].Down)
}

func TestCreateSameSecondCollides(t *testing.T) {
	dir := t.TempDir()
	first, err := Create("add users", CreateOptions{Dir: dir, Now: fixedNow})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first, []byte("-- +migrate Up\nSELECT 1;\n"), 0o644))

	_, err = Create("Add Users", CreateOptions{Dir: dir, Now: fixedNow})
	require.ErrorIs(t, err, ErrDuplicateMigration)

	body, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, "-- +migrate Up\nSELECT 1;\n", string(body))
}

func TestCreateGo(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db-migrations")
	path, err := Create("seed roles", CreateOptions{Dir: dir, Kind: KindGo, Now: fixedNow})
	require.NoError(t, err)
	require.Equal(t, "20240102_020405__seed_roles.go", filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "package dbmigrations\n")
	require.Contains(t, string(body), `migrate.Register("20240102_020405__seed_roles",`)
}

func TestCreateUnknownKind(t *testing.T) {
	_, err := Create("x", CreateOptions{Dir: t.TempDir(), Kind: "yaml"})
	require.Error(t, err)
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Add Users Table":  "add_users_table",
		"Añadir Índice!!":  "anadir_indice",
		"  leading/slash ": "leading_slash",
		"add--users":       "add-users",
		"a - b":            "a_b",
		"v2_schema":        "v2_schema",
		"!!!":              "migration",
		"":                 "migration",
	}
	for in, want := range cases {
		require.Equal(t, want, Slug(in), "slug of %q", in)
	}
}

func TestPackageName(t *testing.T) {
	require.Equal(t, "migrations", packageName("./migrations"))
	require.Equal(t, "dbmigrations", packageName("db-migrations"))
	require.Equal(t, "migrations", packageName("2024"))
}
