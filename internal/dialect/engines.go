package dialect

import (
	"fmt"
	"strings"

	"db_schema_migrator/internal/blueprint"
)

// SQLite compiles for SQLite 3.
type SQLite struct{}

func (SQLite) Name() string                  { return "sqlite" }
func (SQLite) DriverName() string            { return "sqlite" }
func (SQLite) QuoteIdent(name string) string { return doubleQuote(name) }
func (SQLite) TransactionalDDL() bool        { return true }
func (SQLite) onUpdate() bool                { return false }

func (SQLite) columnType(c *blueprint.ColumnSpec) string {
	switch c.Type {
	case blueprint.TypeText:
		return "TEXT"
	case blueprint.TypeInteger:
		return "INTEGER"
	case blueprint.TypeBigInteger:
		return "BIGINT"
	case blueprint.TypeBoolean:
		return "BOOLEAN"
	case blueprint.TypeTimestamp:
		return "TIMESTAMP"
	}
	return sizedType(c, "NUMERIC")
}

func (SQLite) autoIncrement(*blueprint.ColumnSpec) string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (SQLite) tableSuffix(blueprint.Options) string { return "" }

func (d SQLite) dropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(name)
}

func (SQLite) listTables() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (SQLite) foreignKeyChecks(enabled bool) string {
	if enabled {
		return "PRAGMA foreign_keys = ON"
	}
	return "PRAGMA foreign_keys = OFF"
}

// Postgres compiles for PostgreSQL.
type Postgres struct{}

func (Postgres) Name() string                  { return "postgres" }
func (Postgres) DriverName() string            { return "pgx" }
func (Postgres) QuoteIdent(name string) string { return doubleQuote(name) }
func (Postgres) TransactionalDDL() bool        { return true }
func (Postgres) onUpdate() bool                { return false }

func (Postgres) columnType(c *blueprint.ColumnSpec) string {
	switch c.Type {
	case blueprint.TypeText:
		return "TEXT"
	case blueprint.TypeInteger:
		return "INTEGER"
	case blueprint.TypeBigInteger:
		return "BIGINT"
	case blueprint.TypeBoolean:
		return "BOOLEAN"
	case blueprint.TypeTimestamp:
		return "TIMESTAMP"
	}
	return sizedType(c, "NUMERIC")
}

func (Postgres) autoIncrement(*blueprint.ColumnSpec) string {
	return "BIGSERIAL PRIMARY KEY"
}

func (Postgres) tableSuffix(blueprint.Options) string { return "" }

func (d Postgres) dropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(name) + " CASCADE"
}

func (Postgres) listTables() string {
	return `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (Postgres) foreignKeyChecks(bool) string { return "" }

// MariaDB compiles for MariaDB and MySQL.
type MariaDB struct{}

func (MariaDB) Name() string       { return "mariadb" }
func (MariaDB) DriverName() string { return "mysql" }

func (MariaDB) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// TransactionalDDL is false: MariaDB commits implicitly around every DDL
// statement.
func (MariaDB) TransactionalDDL() bool { return false }
func (MariaDB) onUpdate() bool         { return true }

func (MariaDB) columnType(c *blueprint.ColumnSpec) string {
	switch c.Type {
	case blueprint.TypeText:
		return "TEXT"
	case blueprint.TypeInteger:
		return "INT"
	case blueprint.TypeBigInteger:
		return "BIGINT"
	case blueprint.TypeBoolean:
		return "BOOLEAN"
	case blueprint.TypeTimestamp:
		return "TIMESTAMP"
	}
	return sizedType(c, "DECIMAL")
}

func (MariaDB) autoIncrement(*blueprint.ColumnSpec) string {
	return "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY"
}

func (MariaDB) tableSuffix(o blueprint.Options) string {
	engine, charset, collation := o.Engine, o.Charset, o.Collation
	if engine == "" {
		engine = blueprint.DefaultEngine
	}
	if charset == "" {
		charset = blueprint.DefaultCharset
	}
	if collation == "" {
		collation = blueprint.DefaultCollation
	}
	return fmt.Sprintf("ENGINE=%s DEFAULT CHARSET=%s COLLATE=%s", engine, charset, collation)
}

func (d MariaDB) dropTable(name string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(name)
}

func (MariaDB) listTables() string {
	return `SELECT table_name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`
}

func (MariaDB) foreignKeyChecks(enabled bool) string {
	if enabled {
		return "SET FOREIGN_KEY_CHECKS = 1"
	}
	return "SET FOREIGN_KEY_CHECKS = 0"
}
