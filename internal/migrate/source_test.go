package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Handle) error { return nil }

func TestListOrdersFilesAndRegistry(t *testing.T) {
	fsys := fstest.MapFS{
		"20240103_000000__third.sql":    {Data: []byte("-- +migrate Up\nSELECT 3;\n")},
		"20240101_000000__first.sql":    {Data: []byte("-- +migrate Up\nSELECT 1;\n-- +migrate Down\nSELECT -1;\n")},
		"README.md":                     {Data: []byte("not a migration")},
		"nested/20240104_000000__x.sql": {Data: []byte("-- +migrate Up\nSELECT 4;\n")},
	}
	reg := NewRegistry()
	require.NoError(t, reg.Add("20240102_000000__second", "second.go", noop, noop))

	migrations, err := List(fsys, reg)
	require.NoError(t, err)

	ids := make([]string, 0, len(migrations))
	for _, m := range migrations {
		ids = append(ids, m.ID)
	}
	require.Equal(t, []string{
		"20240101_000000__first",
		"20240102_000000__second",
		"20240103_000000__third",
	}, ids)
	require.NotNil(t, migrations[0].Down)
	require.Nil(t, migrations[2].Down)
	require.Equal(t, "20240101_000000", migrations[0].Timestamp)
}

func TestListRejectsBadFiles(t *testing.T) {
	_, err := List(fstest.MapFS{"init.sql": {Data: []byte("-- +migrate Up\nSELECT 1;")}}, nil)
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = List(fstest.MapFS{"20240101_000000__no_marker.sql": {Data: []byte("SELECT 1;")}}, nil)
	require.ErrorIs(t, err, errMissingUpSection)

	twice := "-- +migrate Up\nSELECT 1;\n-- +migrate Up\nSELECT 2;\n"
	_, err = List(fstest.MapFS{"20240101_000000__twice.sql": {Data: []byte(twice)}}, nil)
	require.ErrorIs(t, err, errDuplicateMarker)
}

func TestListRejectsDuplicateIDs(t *testing.T) {
	fsys := fstest.MapFS{"20240101_000000__init.sql": {Data: []byte("-- +migrate Up\nSELECT 1;\n")}}
	reg := NewRegistry()
	require.NoError(t, reg.Add("20240101_000000__init", "init.go", noop, nil))

	_, err := List(fsys, reg)
	require.ErrorIs(t, err, ErrDuplicateMigration)
}

func TestListMissingDirectory(t *testing.T) {
	migrations, err := List(os.DirFS(filepath.Join(t.TempDir(), "absent")), nil)
	require.NoError(t, err)
	require.Empty(t, migrations)
}

func TestListSeesNewFiles(t *testing.T) {
	dir := t.TempDir()
	fsys := os.DirFS(dir)

	migrations, err := List(fsys, nil)
	require.NoError(t, err)
	require.Empty(t, migrations)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240101_000000__late.sql"), []byte("-- +migrate Up\nSELECT 1;\n"), 0o644))
	migrations, err = List(fsys, nil)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.ErrorIs(t, reg.Add("create_users", "", noop, nil), ErrInvalidName)
	require.Error(t, reg.Add("20240101_000000__no_up", "", nil, nil))
	require.NoError(t, reg.Add("20240101_000000__ok", "", noop, nil))
	require.ErrorIs(t, reg.Add("20240101_000000__ok", "", noop, nil), ErrDuplicateMigration)
	require.Len(t, reg.All(), 1)
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	Register("19990101_000000__register_test", noop, nil)
	require.Panics(t, func() {
		Register("19990101_000000__register_test", noop, nil)
	})
	all := Default.All()
	require.Len(t, all, 1)
	require.Equal(t, "source_test.go", filepath.Base(all[0].Path))
}

func TestParseID(t *testing.T) {
	ts, slug, err := ParseID("20240101_120000__add-users_2")
	require.NoError(t, err)
	require.Equal(t, "20240101_120000", ts)
	require.Equal(t, "add-users_2", slug)

	for _, bad := range []string{"2024_01__x", "20240101_120000_x", "20240101_120000__Upper", "20240101_120000__"} {
		_, _, err := ParseID(bad)
		require.ErrorIs(t, err, ErrInvalidName, bad)
	}
}
