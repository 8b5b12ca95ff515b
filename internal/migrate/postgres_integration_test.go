//go:build integration

package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"db_schema_migrator/internal/config"
	"db_schema_migrator/internal/db"
	"db_schema_migrator/internal/lock"
)

func TestPostgresRunner(t *testing.T) {
	ctx := context.Background()
	ctr, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("migrator"),
		postgres.WithUsername("migrator"),
		postgres.WithPassword("migrator"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dbURL, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, d, err := db.Open(ctx, config.DBConfig{URL: dbURL, Engine: "postgres"})
	require.NoError(t, err)
	defer conn.Close()

	fsys := fstest.MapFS{
		widgetsID + ".sql": sqlFile("CREATE TABLE widgets (id SERIAL PRIMARY KEY, name TEXT);", "DROP TABLE widgets;"),
	}
	newRunner := func() *Runner {
		return NewRunner(conn, d, Options{FS: fsys, Registry: gadgetsRegistry(t)})
	}

	t.Run("up and down", func(t *testing.T) {
		r := newRunner()
		report, err := r.Up(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{widgetsID, gadgetsID}, report.Applied)

		tables, err := db.Tables(ctx, conn, d)
		require.NoError(t, err)
		require.Contains(t, tables, "gadgets")

		report, err = r.Down(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{gadgetsID, widgetsID}, report.Reverted)
	})

	t.Run("advisory lock rejects a second run", func(t *testing.T) {
		holder := newRunner()
		release, err := holder.locker.Acquire(ctx)
		require.NoError(t, err)
		defer release()

		_, err = newRunner().Up(ctx)
		require.ErrorIs(t, err, lock.ErrConcurrentRun)
	})

	t.Run("failed migration rolls back its DDL", func(t *testing.T) {
		fsys["20240101_000500__broken.sql"] = sqlFile("CREATE TABLE broken (id INT);\nSELECT * FROM missing_table;", "")
		defer delete(fsys, "20240101_000500__broken.sql")

		report, err := newRunner().Up(ctx)
		require.Error(t, err)
		require.Equal(t, "20240101_000500__broken", report.Failed)

		tables, err := db.Tables(ctx, conn, d)
		require.NoError(t, err)
		require.NotContains(t, tables, "broken")
	})

	t.Run("fresh", func(t *testing.T) {
		report, err := newRunner().Fresh(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, report.Batch)
		require.Equal(t, []string{widgetsID, gadgetsID}, report.Applied)
	})
}
