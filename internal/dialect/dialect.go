// Package dialect turns blueprints into DDL for the supported database
// engines. The set of dialects is closed: SQLite, Postgres and MariaDB are
// the only implementations of Dialect.
package dialect

import (
	"errors"
	"fmt"
	"strings"

	"db_schema_migrator/internal/blueprint"
)

var (
	ErrUnknownDialect  = errors.New("unknown dialect")
	ErrEmptyBlueprint  = errors.New("blueprint has no columns")
	ErrUnnamedTable    = errors.New("blueprint has no table name")
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Dialect is one of SQLite, Postgres or MariaDB.
type Dialect interface {
	// Name is the canonical engine name used in configuration.
	Name() string
	// DriverName is the database/sql driver registered for the engine.
	DriverName() string
	QuoteIdent(name string) string
	// TransactionalDDL reports whether DDL inside a transaction is rolled
	// back with it.
	TransactionalDDL() bool

	columnType(c *blueprint.ColumnSpec) string
	autoIncrement(c *blueprint.ColumnSpec) string
	onUpdate() bool
	tableSuffix(o blueprint.Options) string
	dropTable(name string) string
	listTables() string
	foreignKeyChecks(enabled bool) string
}

// Output is the result of compiling one blueprint.
type Output struct {
	// DDL is the full script, statements separated by ";\n".
	DDL string
	// Statements holds the same statements one by one, without the
	// terminating semicolon.
	Statements []string
	Schema     *blueprint.CompiledSchema
}

// Parse maps a configured engine name to its dialect.
func Parse(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres{}, nil
	case "mariadb", "mysql":
		return MariaDB{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Compile renders the CREATE TABLE statement (plus index statements) for b.
func Compile(d Dialect, b *blueprint.Blueprint) (Output, error) {
	if b.Name == "" {
		return Output{}, ErrUnnamedTable
	}
	if !b.HasColumns() {
		return Output{}, fmt.Errorf("%w: %s", ErrEmptyBlueprint, b.Name)
	}
	seen := make(map[string]struct{}, len(b.Columns))
	for _, c := range b.Columns {
		if _, ok := seen[c.Name]; ok {
			return Output{}, fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, b.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	lines := make([]string, 0, len(b.Columns)+len(b.Uniques))
	for _, c := range b.Columns {
		lines = append(lines, columnDefinition(d, b, c))
	}
	for _, u := range b.Uniques {
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
			d.QuoteIdent(blueprint.ConstraintName(b.Name, u, "unique")), quoteList(d, u)))
	}

	var create strings.Builder
	create.WriteString("CREATE TABLE IF NOT EXISTS ")
	create.WriteString(d.QuoteIdent(b.Name))
	create.WriteString(" (\n    ")
	create.WriteString(strings.Join(lines, ",\n    "))
	create.WriteString("\n)")
	if suffix := d.tableSuffix(b.Options); suffix != "" {
		create.WriteString(" ")
		create.WriteString(suffix)
	}

	stmts := []string{create.String()}
	for _, idx := range b.Indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.QuoteIdent(blueprint.ConstraintName(b.Name, idx, "index")), d.QuoteIdent(b.Name), quoteList(d, idx)))
	}

	return Output{
		DDL:        strings.Join(stmts, ";\n") + ";\n",
		Statements: stmts,
		Schema:     blueprint.Describe(b),
	}, nil
}

// DropTable renders a DROP TABLE IF EXISTS statement.
func DropTable(d Dialect, name string) string {
	return d.dropTable(name)
}

// ListTablesQuery returns a query yielding one table name per row for the
// connection's current schema.
func ListTablesQuery(d Dialect) string {
	return d.listTables()
}

// ForeignKeyChecks returns the session statement toggling foreign key
// enforcement, or "" when the dialect needs none.
func ForeignKeyChecks(d Dialect, enabled bool) string {
	return d.foreignKeyChecks(enabled)
}

func columnDefinition(d Dialect, b *blueprint.Blueprint, c *blueprint.ColumnSpec) string {
	constraints := b.ResolvedConstraints(c)
	parts := []string{d.QuoteIdent(c.Name)}
	if c.Type == blueprint.TypeID {
		parts = append(parts, d.autoIncrement(c))
	} else {
		parts = append(parts, d.columnType(c))
	}
	for _, con := range constraints {
		switch con.Kind {
		case blueprint.AutoIncrement:
			// only meaningful on ID columns, which render it themselves
			continue
		case blueprint.PrimaryKey:
			if c.Type == blueprint.TypeID {
				continue
			}
		case blueprint.OnUpdateCurrentTimestamp:
			if !d.onUpdate() {
				continue
			}
		}
		parts = append(parts, con.String())
	}
	return strings.Join(parts, " ")
}

func quoteList(d Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func doubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sizedType(c *blueprint.ColumnSpec, decimal string) string {
	switch c.Type {
	case blueprint.TypeString:
		length := c.Length
		if length <= 0 {
			length = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", length)
	case blueprint.TypeDecimal:
		return fmt.Sprintf("%s(%d,%d)", decimal, c.Precision, c.Scale)
	}
	return ""
}
