package blueprint

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the dialect-neutral column type.
type Type int

const (
	TypeText Type = iota
	TypeString
	TypeInteger
	TypeBigInteger
	TypeDecimal
	TypeBoolean
	TypeTimestamp
	TypeID
)

var typeNames = map[Type]string{
	TypeText:       "TEXT",
	TypeString:     "STRING",
	TypeInteger:    "INTEGER",
	TypeBigInteger: "BIGINT",
	TypeDecimal:    "DECIMAL",
	TypeBoolean:    "BOOLEAN",
	TypeTimestamp:  "TIMESTAMP",
	TypeID:         "ID",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// ConstraintKind enumerates the column constraints the DSL can express.
type ConstraintKind int

const (
	PrimaryKey ConstraintKind = iota
	AutoIncrement
	NotNull
	Null
	Unique
	Default
	OnUpdateCurrentTimestamp
)

// Constraint is one column constraint. Value is only used by Default and
// holds the already rendered literal.
type Constraint struct {
	Kind  ConstraintKind
	Value string
}

// String renders the dialect-neutral token, e.g. "DEFAULT 'x'".
func (c Constraint) String() string {
	switch c.Kind {
	case PrimaryKey:
		return "PRIMARY KEY"
	case AutoIncrement:
		return "AUTOINCREMENT"
	case NotNull:
		return "NOT NULL"
	case Null:
		return "NULL"
	case Unique:
		return "UNIQUE"
	case Default:
		return "DEFAULT " + c.Value
	case OnUpdateCurrentTimestamp:
		return "ON UPDATE CURRENT_TIMESTAMP"
	}
	return ""
}

// AutoTimestamp marks the columns created by Timestamps().
type AutoTimestamp int

const (
	AutoNone AutoTimestamp = iota
	AutoCreated
	AutoUpdated
)

// ColumnSpec is one declared column.
type ColumnSpec struct {
	Name        string
	Type        Type
	Length      int
	Precision   int
	Scale       int
	Auto        AutoTimestamp
	Constraints []Constraint
}

// Has reports whether the column carries a constraint of kind k.
func (c *ColumnSpec) Has(k ConstraintKind) bool {
	for _, con := range c.Constraints {
		if con.Kind == k {
			return true
		}
	}
	return false
}

// Column is the chain handle returned by the Blueprint column methods. It
// only ever mutates the ColumnSpec it was created for.
type Column struct {
	spec *ColumnSpec
}

// Spec exposes the underlying column.
func (c *Column) Spec() *ColumnSpec { return c.spec }

func (c *Column) Unique() *Column {
	return c.set(Constraint{Kind: Unique})
}

func (c *Column) NotNull() *Column {
	c.drop(Null)
	return c.set(Constraint{Kind: NotNull})
}

func (c *Column) Nullable() *Column {
	c.drop(NotNull)
	return c.set(Constraint{Kind: Null})
}

func (c *Column) Primary() *Column {
	return c.set(Constraint{Kind: PrimaryKey})
}

// Default sets the column default. A later call replaces an earlier one.
func (c *Column) Default(value any) *Column {
	c.drop(Default)
	c.spec.Constraints = append(c.spec.Constraints, Constraint{Kind: Default, Value: Literal(value)})
	return c
}

func (c *Column) set(con Constraint) *Column {
	if !c.spec.Has(con.Kind) {
		c.spec.Constraints = append(c.spec.Constraints, con)
	}
	return c
}

func (c *Column) drop(k ConstraintKind) {
	out := c.spec.Constraints[:0]
	for _, con := range c.spec.Constraints {
		if con.Kind != k {
			out = append(out, con)
		}
	}
	c.spec.Constraints = out
}

// Raw is a default expression emitted verbatim, e.g. Raw("CURRENT_TIMESTAMP").
type Raw string

// CurrentTimestamp is the literal used by UTC timestamps.
const CurrentTimestamp = "CURRENT_TIMESTAMP"

// Literal renders a Go value as a SQL literal understood by every supported
// dialect.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case Raw:
		return string(x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return Literal(x.String())
	default:
		return Literal(fmt.Sprint(x))
	}
}
