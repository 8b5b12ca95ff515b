// Package tracking owns the table recording which migrations are applied
// and in which batch.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"db_schema_migrator/internal/blueprint"
	"db_schema_migrator/internal/dialect"
)

// Record is one row of the tracking table.
type Record struct {
	MigrationID string    `db:"migration_id" json:"migration_id"`
	Batch       int       `db:"batch" json:"batch"`
	AppliedAt   time.Time `db:"applied_at" json:"applied_at"`
}

// Store reads and writes the tracking table.
type Store struct {
	db    *sqlx.DB
	d     dialect.Dialect
	table string
}

func New(db *sqlx.DB, d dialect.Dialect, table string) *Store {
	return &Store{db: db, d: d, table: table}
}

// Table is the tracking table name.
func (s *Store) Table() string { return s.table }

// Blueprint describes the tracking table.
func Blueprint(table string) *blueprint.Blueprint {
	b := blueprint.New(table)
	b.String("migration_id", 255).Primary().NotNull()
	b.Integer("batch").NotNull()
	b.Timestamp("applied_at").NotNull()
	return b
}

// Ensure creates the tracking table if it does not exist yet.
func (s *Store) Ensure(ctx context.Context) error {
	out, err := dialect.Compile(s.d, Blueprint(s.table))
	if err != nil {
		return err
	}
	for _, stmt := range out.Statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tracking table %s: %w", s.table, err)
		}
	}
	return nil
}

// Applied returns every record ordered by migration id.
func (s *Store) Applied(ctx context.Context) ([]Record, error) {
	var out []Record
	q := fmt.Sprintf(`SELECT migration_id, batch, applied_at FROM %s ORDER BY migration_id`, s.quoted())
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	return out, nil
}

// MaxBatch returns the highest batch number, 0 when nothing is applied.
func (s *Store) MaxBatch(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COALESCE(MAX(batch), 0) FROM %s`, s.quoted())
	if err := s.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("max batch: %w", err)
	}
	return n, nil
}

// Batch returns the records of one batch, newest migration first.
func (s *Store) Batch(ctx context.Context, batch int) ([]Record, error) {
	var out []Record
	q := s.db.Rebind(fmt.Sprintf(`SELECT migration_id, batch, applied_at FROM %s WHERE batch = ? ORDER BY migration_id DESC`, s.quoted()))
	if err := s.db.SelectContext(ctx, &out, q, batch); err != nil {
		return nil, fmt.Errorf("query batch %d: %w", batch, err)
	}
	return out, nil
}

// Insert records a migration as applied. ex is normally the migration's
// transaction so the row commits with the migration.
func (s *Store) Insert(ctx context.Context, ex sqlx.ExecerContext, rec Record) error {
	q := s.db.Rebind(fmt.Sprintf(`INSERT INTO %s (migration_id, batch, applied_at) VALUES (?, ?, ?)`, s.quoted()))
	if _, err := ex.ExecContext(ctx, q, rec.MigrationID, rec.Batch, rec.AppliedAt); err != nil {
		return fmt.Errorf("record %s: %w", rec.MigrationID, err)
	}
	return nil
}

// Delete removes the record of a reverted migration.
func (s *Store) Delete(ctx context.Context, ex sqlx.ExecerContext, migrationID string) error {
	q := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE migration_id = ?`, s.quoted()))
	if _, err := ex.ExecContext(ctx, q, migrationID); err != nil {
		return fmt.Errorf("delete record %s: %w", migrationID, err)
	}
	return nil
}

// Clear empties the tracking table.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.quoted())); err != nil {
		return fmt.Errorf("clear %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) quoted() string {
	return s.d.QuoteIdent(s.table)
}
