package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnsKeepDeclarationOrder(t *testing.T) {
	b := New("users")
	b.ID()
	b.String("slug", 100).NotNull().Unique()
	b.Integer("age").Default(0)

	names := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"id", "slug", "age"}, names)
	require.Equal(t, 100, b.Column("slug").Length)
	require.Nil(t, b.Column("missing"))
}

func TestColumnChainMutatesOnlyItsColumn(t *testing.T) {
	b := New("t")
	first := b.String("a", 10)
	b.String("b", 10).Unique()
	first.NotNull()

	require.True(t, b.Column("a").Has(NotNull))
	require.False(t, b.Column("a").Has(Unique))
	require.True(t, b.Column("b").Has(Unique))
	require.False(t, b.Column("b").Has(NotNull))
}

func TestNullabilityAndDefaultsReplace(t *testing.T) {
	b := New("t")
	c := b.Integer("n").NotNull().Nullable().Default(1).Default(2).Unique().Unique()

	spec := c.Spec()
	require.False(t, spec.Has(NotNull))
	require.True(t, spec.Has(Null))

	var tokens []string
	for _, con := range spec.Constraints {
		tokens = append(tokens, con.String())
	}
	require.Equal(t, []string{"NULL", "DEFAULT 2", "UNIQUE"}, tokens)
}

func TestDecimalDefaults(t *testing.T) {
	b := New("prices")
	b.Decimal("amount")
	b.Decimal("rate", 5)
	b.Decimal("ratio", 6, 4)

	require.Equal(t, [2]int{10, 2}, [2]int{b.Column("amount").Precision, b.Column("amount").Scale})
	require.Equal(t, [2]int{5, 2}, [2]int{b.Column("rate").Precision, b.Column("rate").Scale})
	require.Equal(t, [2]int{6, 4}, [2]int{b.Column("ratio").Precision, b.Column("ratio").Scale})
}

func TestLiteral(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"it's", "'it''s'"},
		{true, "TRUE"},
		{false, "FALSE"},
		{42, "42"},
		{int64(-7), "-7"},
		{1.5, "1.5"},
		{Raw("CURRENT_TIMESTAMP"), "CURRENT_TIMESTAMP"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Literal(tc.in), "literal for %#v", tc.in)
	}
}

func TestTimestampPolicies(t *testing.T) {
	t.Run("manual", func(t *testing.T) {
		b := New("events")
		b.Timestamps(true)
		for _, name := range []string{"created_at", "updated_at"} {
			got := b.ResolvedConstraints(b.Column(name))
			require.Equal(t, []Constraint{{Kind: Null}}, got)
		}
		require.Equal(t, "manual", b.Options.Timestamps.String())
	})

	t.Run("utc", func(t *testing.T) {
		b := New("events").UTC()
		b.Timestamps(true)

		created := b.ResolvedConstraints(b.Column("created_at"))
		require.Equal(t, []Constraint{
			{Kind: NotNull},
			{Kind: Default, Value: CurrentTimestamp},
		}, created)

		updated := b.ResolvedConstraints(b.Column("updated_at"))
		require.Contains(t, updated, Constraint{Kind: OnUpdateCurrentTimestamp})
	})

	t.Run("created only", func(t *testing.T) {
		b := New("events")
		b.Timestamps(false)
		require.Len(t, b.Columns, 1)
		require.Equal(t, "created_at", b.Columns[0].Name)
	})
}

func TestCharsetKeepsCollationUnlessGiven(t *testing.T) {
	b := New("t").Charset("latin1")
	require.Equal(t, "latin1", b.Options.Charset)
	require.Equal(t, DefaultCollation, b.Options.Collation)

	b.Charset("latin1", "latin1_swedish_ci")
	require.Equal(t, "latin1_swedish_ci", b.Options.Collation)

	b.Engine("Aria").InnoDB()
	require.Equal(t, DefaultEngine, b.Options.Engine)
}

func TestDescribe(t *testing.T) {
	b := New("posts").UTC()
	b.ID()
	b.String("slug", 50).NotNull()
	b.Timestamps(false)
	b.Unique("slug")
	b.Index("slug", "id")

	s := Describe(b)
	require.Equal(t, "posts", s.Name)
	require.Equal(t, []string{"id", "slug", "created_at"}, s.ColumnNames())

	id, ok := s.Column("id")
	require.True(t, ok)
	require.Equal(t, "ID", id.Type)
	require.Equal(t, []string{"PRIMARY KEY", "AUTOINCREMENT"}, id.Constraints)

	created, ok := s.Column("created_at")
	require.True(t, ok)
	require.Equal(t, []string{"NOT NULL", "DEFAULT CURRENT_TIMESTAMP"}, created.Constraints)

	require.Equal(t, []string{"UNIQUE (slug)", "INDEX (slug, id)"}, s.Constraints)

	_, ok = s.Column("nope")
	require.False(t, ok)
}
