// Package lock detects concurrent migration runs against the same tracking
// table. Acquisition never waits: a held lock is reported as
// ErrConcurrentRun.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jmoiron/sqlx"

	"db_schema_migrator/internal/blueprint"
	"db_schema_migrator/internal/dialect"
)

var ErrConcurrentRun = errors.New("another migration run is in progress, retry later")

// Locker guards one tracking table.
type Locker interface {
	// Acquire takes the lock or fails with ErrConcurrentRun. The returned
	// release function must be called once the run is over.
	Acquire(ctx context.Context) (release func(), err error)
	// ForceRelease clears a lock left behind by a crashed run. Session
	// scoped locks vanish with their connection, so for those it is a no-op.
	ForceRelease(ctx context.Context) error
}

// New picks the locker for d. owner identifies this run in the SQLite lock
// row.
func New(db *sqlx.DB, d dialect.Dialect, table, owner string) Locker {
	switch d.(type) {
	case dialect.Postgres:
		return &PostgresLock{db: db, key: hashLockKey(table)}
	case dialect.MariaDB:
		return &MariaDBLock{db: db, name: fmt.Sprintf("schema_migrator:%x", hashLockKey(table))}
	default:
		return &TableLock{db: db, d: d, table: Table(table), owner: owner}
	}
}

// Table is the name of the lock table kept next to a tracking table.
func Table(tracking string) string {
	return tracking + "_lock"
}

// PostgresLock uses a session advisory lock held on a dedicated connection.
type PostgresLock struct {
	db  *sqlx.DB
	key int64
}

func (l *PostgresLock) Acquire(ctx context.Context) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&ok); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg_try_advisory_lock(%d): %w", l.key, err)
	}
	if !ok {
		conn.Close()
		return nil, ErrConcurrentRun
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key)
		conn.Close()
	}, nil
}

func (l *PostgresLock) ForceRelease(context.Context) error { return nil }

// MariaDBLock uses GET_LOCK with a zero timeout on a dedicated connection.
type MariaDBLock struct {
	db   *sqlx.DB
	name string
}

func (l *MariaDBLock) Acquire(ctx context.Context) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", err)
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 0)`, l.name).Scan(&got); err != nil {
		conn.Close()
		return nil, fmt.Errorf("get lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, ErrConcurrentRun
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, l.name)
		conn.Close()
	}, nil
}

func (l *MariaDBLock) ForceRelease(context.Context) error { return nil }

// TableLock claims a single-row lock table. It works across processes on
// engines without advisory locks.
type TableLock struct {
	db    *sqlx.DB
	d     dialect.Dialect
	table string
	owner string
}

func tableBlueprint(name string) *blueprint.Blueprint {
	b := blueprint.New(name)
	b.Integer("id").Primary()
	b.String("owner", 64).NotNull()
	b.Timestamp("acquired_at").NotNull()
	return b
}

func (l *TableLock) ensure(ctx context.Context) error {
	out, err := dialect.Compile(l.d, tableBlueprint(l.table))
	if err != nil {
		return err
	}
	for _, stmt := range out.Statements {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create lock table: %w", err)
		}
	}
	return nil
}

func (l *TableLock) Acquire(ctx context.Context) (func(), error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	q := l.db.Rebind(fmt.Sprintf(`INSERT INTO %s (id, owner, acquired_at) VALUES (1, ?, ?)`, l.d.QuoteIdent(l.table)))
	if _, err := l.db.ExecContext(ctx, q, l.owner, time.Now().UTC()); err != nil {
		var holder string
		sel := fmt.Sprintf(`SELECT owner FROM %s WHERE id = 1`, l.d.QuoteIdent(l.table))
		if getErr := l.db.GetContext(ctx, &holder, sel); getErr == nil {
			return nil, fmt.Errorf("%w (held by run %s)", ErrConcurrentRun, holder)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	release := func() {
		del := l.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = 1 AND owner = ?`, l.d.QuoteIdent(l.table)))
		_, _ = l.db.ExecContext(context.Background(), del, l.owner)
	}
	return release, nil
}

func (l *TableLock) ForceRelease(ctx context.Context) error {
	if err := l.ensure(ctx); err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, l.d.QuoteIdent(l.table))); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// hashLockKey maps a table name to a stable non-negative advisory lock key.
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
