// Package blueprint describes tables in a dialect-neutral way. A Blueprint is
// built with chained calls and handed to a dialect compiler; nothing here
// performs I/O.
package blueprint

import "strings"

const (
	DefaultEngine    = "InnoDB"
	DefaultCharset   = "utf8mb4"
	DefaultCollation = "utf8mb4_unicode_ci"
)

// TimestampPolicy decides which constraints Timestamps() columns receive.
type TimestampPolicy int

const (
	// TimestampsManual emits nullable columns without defaults; the
	// application is expected to fill them in.
	TimestampsManual TimestampPolicy = iota
	// TimestampsUTC emits NOT NULL DEFAULT CURRENT_TIMESTAMP columns, with
	// ON UPDATE CURRENT_TIMESTAMP on updated_at where the dialect has it.
	TimestampsUTC
)

func (p TimestampPolicy) String() string {
	if p == TimestampsUTC {
		return "utc"
	}
	return "manual"
}

// Options are table-level settings. Dialects without a notion of engine or
// charset ignore them.
type Options struct {
	Engine     string
	Charset    string
	Collation  string
	Timestamps TimestampPolicy
}

// Blueprint is the in-progress description of one table.
type Blueprint struct {
	Name    string
	Columns []*ColumnSpec
	Options Options
	Indexes [][]string
	Uniques [][]string
}

// New starts a blueprint for table name with InnoDB/utf8mb4 defaults.
func New(name string) *Blueprint {
	return &Blueprint{
		Name: name,
		Options: Options{
			Engine:    DefaultEngine,
			Charset:   DefaultCharset,
			Collation: DefaultCollation,
		},
	}
}

// HasColumns reports whether any column has been declared. Compiling a
// blueprint without columns is an error.
func (b *Blueprint) HasColumns() bool {
	return len(b.Columns) > 0
}

func (b *Blueprint) add(name string, typ Type) *Column {
	spec := &ColumnSpec{Name: name, Type: typ}
	b.Columns = append(b.Columns, spec)
	return &Column{spec: spec}
}

// ID declares the auto-incrementing primary key column "id".
func (b *Blueprint) ID() *Column {
	c := b.add("id", TypeID)
	c.spec.Constraints = append(c.spec.Constraints,
		Constraint{Kind: PrimaryKey},
		Constraint{Kind: AutoIncrement},
	)
	return c
}

func (b *Blueprint) Text(name string) *Column {
	return b.add(name, TypeText)
}

// String declares a VARCHAR column of the given length.
func (b *Blueprint) String(name string, length int) *Column {
	c := b.add(name, TypeString)
	c.spec.Length = length
	return c
}

func (b *Blueprint) Integer(name string) *Column {
	return b.add(name, TypeInteger)
}

func (b *Blueprint) BigInteger(name string) *Column {
	return b.add(name, TypeBigInteger)
}

// Decimal declares a fixed-point column. Precision and scale default to 10
// and 2; pass one value to set precision, two to set both.
func (b *Blueprint) Decimal(name string, precisionScale ...int) *Column {
	c := b.add(name, TypeDecimal)
	c.spec.Precision, c.spec.Scale = 10, 2
	if len(precisionScale) > 0 {
		c.spec.Precision = precisionScale[0]
	}
	if len(precisionScale) > 1 {
		c.spec.Scale = precisionScale[1]
	}
	return c
}

func (b *Blueprint) Boolean(name string) *Column {
	return b.add(name, TypeBoolean)
}

func (b *Blueprint) Timestamp(name string) *Column {
	return b.add(name, TypeTimestamp)
}

// Timestamps appends created_at and, when includeUpdated is set, updated_at.
// Their constraints follow the blueprint's TimestampPolicy at compile time.
func (b *Blueprint) Timestamps(includeUpdated bool) *Blueprint {
	c := b.Timestamp("created_at")
	c.spec.Auto = AutoCreated
	if includeUpdated {
		u := b.Timestamp("updated_at")
		u.spec.Auto = AutoUpdated
	}
	return b
}

// UTC switches the timestamp policy to TimestampsUTC.
func (b *Blueprint) UTC() *Blueprint {
	b.Options.Timestamps = TimestampsUTC
	return b
}

// ManualTimestamps switches the timestamp policy to TimestampsManual.
func (b *Blueprint) ManualTimestamps() *Blueprint {
	b.Options.Timestamps = TimestampsManual
	return b
}

func (b *Blueprint) InnoDB() *Blueprint {
	return b.Engine(DefaultEngine)
}

func (b *Blueprint) Engine(name string) *Blueprint {
	b.Options.Engine = name
	return b
}

// Charset replaces the charset and, if given, the collation. The collation
// is left untouched otherwise.
func (b *Blueprint) Charset(name string, collation ...string) *Blueprint {
	b.Options.Charset = name
	if len(collation) > 0 && collation[0] != "" {
		b.Options.Collation = collation[0]
	}
	return b
}

// Index requests a secondary index over columns.
func (b *Blueprint) Index(columns ...string) *Blueprint {
	if len(columns) > 0 {
		b.Indexes = append(b.Indexes, append([]string(nil), columns...))
	}
	return b
}

// Unique adds a table-level unique constraint over columns.
func (b *Blueprint) Unique(columns ...string) *Blueprint {
	if len(columns) > 0 {
		b.Uniques = append(b.Uniques, append([]string(nil), columns...))
	}
	return b
}

// Column returns the spec with the given name, or nil.
func (b *Blueprint) Column(name string) *ColumnSpec {
	for _, c := range b.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ResolvedConstraints returns the constraints of c with the timestamp policy
// applied.
func (b *Blueprint) ResolvedConstraints(c *ColumnSpec) []Constraint {
	out := append([]Constraint(nil), c.Constraints...)
	if c.Auto == AutoNone {
		return out
	}
	if b.Options.Timestamps == TimestampsManual {
		// explicit NULL keeps MariaDB from adding its implicit timestamp default
		return append(out, Constraint{Kind: Null})
	}
	out = append(out,
		Constraint{Kind: NotNull},
		Constraint{Kind: Default, Value: CurrentTimestamp},
	)
	if c.Auto == AutoUpdated {
		out = append(out, Constraint{Kind: OnUpdateCurrentTimestamp})
	}
	return out
}

// ConstraintName joins a table and its columns into an identifier such as
// users_email_unique.
func ConstraintName(table string, columns []string, suffix string) string {
	return table + "_" + strings.Join(columns, "_") + "_" + suffix
}
