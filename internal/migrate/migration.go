// Package migrate discovers migrations, scaffolds new ones and applies or
// reverts them in batches against a tracked database.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"

	"db_schema_migrator/internal/blueprint"
	"db_schema_migrator/internal/db"
	"db_schema_migrator/internal/dialect"
	"db_schema_migrator/internal/schema"
)

var (
	ErrDuplicateMigration = errors.New("migration already exists")
	ErrInvalidName        = errors.New("invalid migration name")
	ErrMissingMigration   = errors.New("applied migration not found on disk")
)

// TimestampLayout formats the leading part of every migration id.
const TimestampLayout = "20060102_150405"

var idPattern = regexp.MustCompile(`^(\d{8}_\d{6})__([a-z0-9_-]+)$`)

// Direction is up or down.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Procedure is the body of one direction of a migration.
type Procedure func(ctx context.Context, h *Handle) error

// Migration is one entry of the registry: an on-disk SQL file or a
// Go-registered pair of procedures.
type Migration struct {
	ID        string
	Timestamp string
	Slug      string
	Path      string
	Up        Procedure
	Down      Procedure
}

// ParseID splits "20240101_000000__init" into its timestamp and slug.
func ParseID(id string) (timestamp, slug string, err error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q (want YYYYMMDD_HHMMSS__slug)", ErrInvalidName, id)
	}
	return m[1], m[2], nil
}

// ExecutionError reports a migration whose procedure failed. Migrations
// completed earlier in the same run stay committed.
type ExecutionError struct {
	ID        string
	Direction Direction
	Report    *Report
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %s (%s) failed: %v", e.ID, e.Direction, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Handle is what a procedure receives: the migration's transaction plus the
// active dialect, with helpers for blueprint-driven DDL.
type Handle struct {
	ex      Executor
	dialect dialect.Dialect
}

// NewHandle wraps an executor. Runners build handles themselves; this is for
// driving procedures directly, e.g. in tests.
func NewHandle(ex Executor, d dialect.Dialect) *Handle {
	return &Handle{ex: ex, dialect: d}
}

func (h *Handle) Dialect() dialect.Dialect { return h.dialect }

// Exec runs a single statement.
func (h *Handle) Exec(ctx context.Context, query string, args ...any) error {
	_, err := h.ex.ExecContext(ctx, query, args...)
	return err
}

// ExecScript runs every statement of a multi-statement script in order.
func (h *Handle) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range db.SplitStatements(script) {
		if err := h.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create compiles a blueprint for table and executes it.
func (h *Handle) Create(ctx context.Context, table string, define func(b *blueprint.Blueprint)) error {
	b := blueprint.New(table)
	define(b)
	out, err := dialect.Compile(h.dialect, b)
	if err != nil {
		return err
	}
	return h.execAll(ctx, out.Statements)
}

// CreateModel binds the model's schema and executes the resulting DDL.
func (h *Handle) CreateModel(ctx context.Context, model schema.Model, define func(b *blueprint.Blueprint)) error {
	out, err := schema.Compile(model, h.dialect, define)
	if err != nil {
		return err
	}
	return h.execAll(ctx, out.Statements)
}

// Drop removes table if it exists.
func (h *Handle) Drop(ctx context.Context, table string) error {
	return h.Exec(ctx, dialect.DropTable(h.dialect, table))
}

func (h *Handle) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if err := h.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// printer stands in for a transaction when statements should only be shown.
type printer struct {
	w io.Writer
}

func (p printer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	if len(args) > 0 {
		_, err := fmt.Fprintf(p.w, "%s; -- args: %v\n", query, args)
		return driverResult{}, err
	}
	_, err := fmt.Fprintf(p.w, "%s;\n", query)
	return driverResult{}, err
}

type driverResult struct{}

func (driverResult) LastInsertId() (int64, error) { return 0, nil }
func (driverResult) RowsAffected() (int64, error) { return 0, nil }
