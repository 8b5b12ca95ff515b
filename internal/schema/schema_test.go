package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"db_schema_migrator/internal/blueprint"
	"db_schema_migrator/internal/dialect"
	"db_schema_migrator/internal/schema"
)

type account struct {
	schema *blueprint.CompiledSchema
}

func (account) TableName() string                       { return "accounts" }
func (a *account) SetSchema(s *blueprint.CompiledSchema) { a.schema = s }

type nameless struct{}

func (nameless) TableName() string { return "" }

func defineAccount(b *blueprint.Blueprint) {
	b.ID()
	b.String("email", 255).NotNull().Unique()
	b.Boolean("active").Default(true)
}

func TestBindRecordsSchema(t *testing.T) {
	a := &account{}
	ddl, err := schema.Bind(a, dialect.SQLite{}, defineAccount)
	require.NoError(t, err)
	require.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "accounts"`)
	require.Contains(t, ddl, `"active" BOOLEAN DEFAULT TRUE`)

	require.NotNil(t, a.schema)
	require.Equal(t, "accounts", a.schema.Name)
	require.Equal(t, []string{"id", "email", "active"}, a.schema.ColumnNames())

	byType, ok := schema.Lookup(account{})
	require.True(t, ok)
	require.Equal(t, a.schema, byType)

	byName, ok := schema.LookupTable("accounts")
	require.True(t, ok)
	require.Equal(t, a.schema, byName)
}

func TestBindIsDialectSpecificButSchemaIsNot(t *testing.T) {
	a := &account{}
	lite, err := schema.Bind(a, dialect.SQLite{}, defineAccount)
	require.NoError(t, err)
	liteSchema := a.schema

	maria, err := schema.Bind(a, dialect.MariaDB{}, defineAccount)
	require.NoError(t, err)

	require.NotEqual(t, lite, maria)
	require.Equal(t, liteSchema, a.schema)
}

func TestBindWithoutTableName(t *testing.T) {
	_, err := schema.Bind(nameless{}, dialect.SQLite{}, defineAccount)
	require.ErrorIs(t, err, schema.ErrMissingTableName)

	_, ok := schema.LookupTable("")
	require.False(t, ok)
}
