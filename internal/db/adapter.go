// Package db opens connections for a resolved profile and holds the small
// helpers the runner needs around raw SQL.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"db_schema_migrator/internal/config"
	"db_schema_migrator/internal/dialect"
)

var ErrConnectionUnavailable = errors.New("database connection unavailable")

// Open connects to the database described by cfg and verifies it answers.
func Open(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, dialect.Dialect, error) {
	d, err := dialect.Parse(cfg.Engine)
	if err != nil {
		return nil, nil, err
	}
	dsn, err := DSN(d, cfg)
	if err != nil {
		return nil, nil, err
	}
	conn, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)
	}
	conn.SetConnMaxIdleTime(5 * time.Minute)
	if _, ok := d.(dialect.SQLite); ok {
		// one writer; keeps the busy timeout from racing ourselves
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(5)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrConnectionUnavailable, d.Name(), err)
	}
	return conn, d, nil
}

// Tables lists the base tables of the connection's current schema.
func Tables(ctx context.Context, q sqlx.QueryerContext, d dialect.Dialect) ([]string, error) {
	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, dialect.ListTablesQuery(d)); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}
