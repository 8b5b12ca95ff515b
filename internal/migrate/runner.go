package migrate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"db_schema_migrator/internal/config"
	"db_schema_migrator/internal/db"
	"db_schema_migrator/internal/dialect"
	"db_schema_migrator/internal/lock"
	"db_schema_migrator/internal/tracking"
)

// Options configures a Runner.
type Options struct {
	// Table is the tracking table, config.DefaultTable when empty.
	Table string
	// FS holds the SQL migration files. Nil means Go migrations only.
	FS fs.FS
	// Registry holds Go migrations, Default when nil.
	Registry *Registry
	Logger   *slog.Logger
	// Print turns Up into a dry run that writes statements to Print.
	Print io.Writer
}

// Runner applies and reverts migrations against one database. A Runner is
// meant for one goroutine; concurrent runs are serialized by the database
// lock instead.
type Runner struct {
	db       *sqlx.DB
	d        dialect.Dialect
	store    *tracking.Store
	locker   lock.Locker
	fsys     fs.FS
	registry *Registry
	logger   *slog.Logger
	print    io.Writer
	runID    string
}

// NewRunner builds a runner. Every runner gets its own run id, used in logs
// and as the lock owner.
func NewRunner(conn *sqlx.DB, d dialect.Dialect, opts Options) *Runner {
	table := opts.Table
	if table == "" {
		table = config.DefaultTable
	}
	reg := opts.Registry
	if reg == nil {
		reg = Default
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	return &Runner{
		db:       conn,
		d:        d,
		store:    tracking.New(conn, d, table),
		locker:   lock.New(conn, d, table, runID),
		fsys:     opts.FS,
		registry: reg,
		logger:   logger.With("run_id", runID, "dialect", d.Name()),
		print:    opts.Print,
		runID:    runID,
	}
}

// DirFS returns the file system for a migrations directory.
func DirFS(dir string) fs.FS {
	return os.DirFS(dir)
}

func (r *Runner) Dialect() dialect.Dialect { return r.d }

// RunID identifies this runner in logs and lock rows.
func (r *Runner) RunID() string { return r.runID }

// Report is the outcome of a run.
type Report struct {
	RunID    string   `json:"run_id"`
	Batch    int      `json:"batch"`
	Applied  []string `json:"applied,omitempty"`
	Reverted []string `json:"reverted,omitempty"`
	Failed   string   `json:"failed,omitempty"`
	Pending  []string `json:"pending,omitempty"`
}

// Status describes one migration as seen by the tracking table.
type Status struct {
	ID        string     `json:"id"`
	Path      string     `json:"path,omitempty"`
	Applied   bool       `json:"applied"`
	Batch     int        `json:"batch,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	// Missing marks a tracked migration whose source is gone.
	Missing bool `json:"missing,omitempty"`
}

// Up applies every pending migration, in id order, as one new batch. It
// stops at the first failure; migrations applied before it stay applied.
func (r *Runner) Up(ctx context.Context) (*Report, error) {
	if r.print != nil {
		return r.printUp(ctx)
	}
	var report *Report
	err := r.locked(ctx, func() error {
		var err error
		report, err = r.up(ctx, 0)
		return err
	})
	return report, err
}

// Down reverts the most recent batch, newest migration first.
func (r *Runner) Down(ctx context.Context) (*Report, error) {
	var report *Report
	err := r.locked(ctx, func() error {
		var err error
		report, err = r.down(ctx)
		return err
	})
	return report, err
}

// Refresh reverts the last steps batches and reapplies everything pending
// as a single batch numbered above any batch that existed before.
func (r *Runner) Refresh(ctx context.Context, steps int) (*Report, error) {
	if steps < 1 {
		steps = 1
	}
	report := &Report{RunID: r.runID}
	err := r.locked(ctx, func() error {
		ceiling, err := r.store.MaxBatch(ctx)
		if err != nil {
			return err
		}
		for i := 0; i < steps; i++ {
			rep, err := r.down(ctx)
			report.Reverted = append(report.Reverted, rep.Reverted...)
			if err != nil {
				report.Failed, report.Pending = rep.Failed, rep.Pending
				return err
			}
			if rep.Batch == 0 {
				break
			}
		}
		rep, err := r.up(ctx, ceiling)
		report.Batch = rep.Batch
		report.Applied = rep.Applied
		report.Failed = rep.Failed
		report.Pending = rep.Pending
		return err
	})
	return report, err
}

// Fresh drops every table in the target schema and applies all migrations
// from scratch as batch 1.
func (r *Runner) Fresh(ctx context.Context) (*Report, error) {
	var report *Report
	err := r.locked(ctx, func() error {
		if err := r.dropAll(ctx); err != nil {
			return err
		}
		if err := r.store.Ensure(ctx); err != nil {
			return err
		}
		if err := r.store.Clear(ctx); err != nil {
			return err
		}
		var err error
		report, err = r.up(ctx, 0)
		return err
	})
	return report, err
}

// Status lists known and tracked migrations without modifying anything.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	migrations, err := List(r.fsys, r.registry)
	if err != nil {
		return nil, err
	}
	records, err := r.records(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]tracking.Record, len(records))
	for _, rec := range records {
		byID[rec.MigrationID] = rec
	}

	out := make([]Status, 0, len(migrations))
	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		seen[m.ID] = true
		st := Status{ID: m.ID, Path: m.Path}
		if rec, ok := byID[m.ID]; ok {
			at := rec.AppliedAt
			st.Applied, st.Batch, st.AppliedAt = true, rec.Batch, &at
		}
		out = append(out, st)
	}
	for _, rec := range records {
		if seen[rec.MigrationID] {
			continue
		}
		at := rec.AppliedAt
		out = append(out, Status{ID: rec.MigrationID, Applied: true, Batch: rec.Batch, AppliedAt: &at, Missing: true})
	}
	return out, nil
}

// Unlock clears a lock left behind by a crashed run.
func (r *Runner) Unlock(ctx context.Context) error {
	if err := r.locker.ForceRelease(ctx); err != nil {
		return err
	}
	r.logger.Info("migration lock released")
	return nil
}

func (r *Runner) locked(ctx context.Context, fn func() error) error {
	release, err := r.locker.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := r.store.Ensure(ctx); err != nil {
		return err
	}
	return fn()
}

// up applies pending migrations. The batch number is one above the current
// maximum, and above floor.
func (r *Runner) up(ctx context.Context, floor int) (*Report, error) {
	report := &Report{RunID: r.runID}
	pending, err := r.pending(ctx)
	if err != nil {
		return report, err
	}
	latest, err := r.store.MaxBatch(ctx)
	if err != nil {
		return report, err
	}
	report.Batch = latest + 1
	if floor >= report.Batch {
		report.Batch = floor + 1
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to migrate")
		return report, nil
	}
	if !r.d.TransactionalDDL() {
		r.logger.Warn("DDL is not transactional on this engine; a failed migration may leave partial changes behind")
	}

	for i, m := range pending {
		start := time.Now()
		if err := r.apply(ctx, m, report.Batch); err != nil {
			report.Failed = m.ID
			report.Pending = ids(pending[i+1:])
			r.logger.Error("migration failed",
				"migration_id", m.ID, "batch", report.Batch, "error", err,
				"applied", len(report.Applied), "skipped", len(report.Pending))
			return report, &ExecutionError{ID: m.ID, Direction: Up, Report: report, Err: err}
		}
		report.Applied = append(report.Applied, m.ID)
		r.logger.Info("migration applied", "migration_id", m.ID, "batch", report.Batch, "duration", time.Since(start))
	}
	r.logger.Info("batch complete", "batch", report.Batch, "count", len(report.Applied))
	return report, nil
}

func (r *Runner) apply(ctx context.Context, m Migration, batch int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := call(ctx, m.Up, &Handle{ex: tx, dialect: r.d}); err != nil {
		return err
	}
	rec := tracking.Record{MigrationID: m.ID, Batch: batch, AppliedAt: time.Now().UTC()}
	if err := r.store.Insert(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// down reverts the highest batch. A zero Batch in the report means nothing
// was applied.
func (r *Runner) down(ctx context.Context) (*Report, error) {
	report := &Report{RunID: r.runID}
	latest, err := r.store.MaxBatch(ctx)
	if err != nil {
		return report, err
	}
	if latest == 0 {
		r.logger.Info("nothing to roll back")
		return report, nil
	}
	report.Batch = latest

	records, err := r.store.Batch(ctx, latest)
	if err != nil {
		return report, err
	}
	migrations, err := List(r.fsys, r.registry)
	if err != nil {
		return report, err
	}
	byID := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byID[m.ID] = m
	}

	for i, rec := range records {
		m, ok := byID[rec.MigrationID]
		if !ok {
			err = ErrMissingMigration
		} else {
			err = r.revert(ctx, m)
		}
		if err != nil {
			report.Failed = rec.MigrationID
			for _, rest := range records[i+1:] {
				report.Pending = append(report.Pending, rest.MigrationID)
			}
			r.logger.Error("rollback failed", "migration_id", rec.MigrationID, "batch", latest, "error", err)
			return report, &ExecutionError{ID: rec.MigrationID, Direction: Down, Report: report, Err: err}
		}
		report.Reverted = append(report.Reverted, rec.MigrationID)
		r.logger.Info("migration reverted", "migration_id", rec.MigrationID, "batch", latest)
	}
	return report, nil
}

func (r *Runner) revert(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if m.Down == nil {
		r.logger.Warn("migration has no down section, only its record is removed", "migration_id", m.ID)
	} else if err := call(ctx, m.Down, &Handle{ex: tx, dialect: r.d}); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, tx, m.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Runner) dropAll(ctx context.Context) error {
	tables, err := db.Tables(ctx, r.db, r.d)
	if err != nil {
		return err
	}
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	if stmt := dialect.ForeignKeyChecks(r.d, false); stmt != "" {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("disable foreign key checks: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), dialect.ForeignKeyChecks(r.d, true))
		}()
	}
	keep := map[string]bool{r.store.Table(): true, lock.Table(r.store.Table()): true}
	for _, table := range tables {
		if keep[table] {
			continue
		}
		if _, err := conn.ExecContext(ctx, dialect.DropTable(r.d, table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		r.logger.Info("table dropped", "table", table)
	}
	return nil
}

func (r *Runner) printUp(ctx context.Context) (*Report, error) {
	report := &Report{RunID: r.runID}
	pending, err := r.pending(ctx)
	if err != nil {
		return report, err
	}
	h := &Handle{ex: printer{w: r.print}, dialect: r.d}
	for _, m := range pending {
		if _, err := fmt.Fprintf(r.print, "-- %s\n", m.ID); err != nil {
			return report, err
		}
		if err := call(ctx, m.Up, h); err != nil {
			report.Failed = m.ID
			return report, &ExecutionError{ID: m.ID, Direction: Up, Report: report, Err: err}
		}
		report.Pending = append(report.Pending, m.ID)
	}
	return report, nil
}

func (r *Runner) pending(ctx context.Context) ([]Migration, error) {
	migrations, err := List(r.fsys, r.registry)
	if err != nil {
		return nil, err
	}
	records, err := r.records(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(records))
	for _, rec := range records {
		applied[rec.MigrationID] = true
	}
	var out []Migration
	for _, m := range migrations {
		if !applied[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// records reads the tracking table, treating a missing table as empty so
// read-only commands never create it.
func (r *Runner) records(ctx context.Context) ([]tracking.Record, error) {
	tables, err := db.Tables(ctx, r.db, r.d)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t == r.store.Table() {
			return r.store.Applied(ctx)
		}
	}
	return nil, nil
}

// call runs a procedure, turning a panic into an error so the run report
// stays accurate.
func call(ctx context.Context, p Procedure, h *Handle) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return p(ctx, h)
}

func ids(ms []Migration) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
