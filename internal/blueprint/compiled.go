package blueprint

import "strings"

// CompiledSchema is the structured, dialect-independent description of a
// table produced alongside its DDL.
type CompiledSchema struct {
	Name        string           `json:"name"`
	Columns     []CompiledColumn `json:"columns"`
	Constraints []string         `json:"constraints,omitempty"`
}

type CompiledColumn struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Constraints []string `json:"constraints,omitempty"`
}

// Column returns the named column and whether it exists.
func (s *CompiledSchema) Column(name string) (CompiledColumn, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return CompiledColumn{}, false
}

// ColumnNames lists the columns in declaration order.
func (s *CompiledSchema) ColumnNames() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Describe builds the CompiledSchema for b without any dialect syntax.
func Describe(b *Blueprint) *CompiledSchema {
	out := &CompiledSchema{Name: b.Name}
	for _, c := range b.Columns {
		col := CompiledColumn{Name: c.Name, Type: c.Type.String()}
		for _, con := range b.ResolvedConstraints(c) {
			col.Constraints = append(col.Constraints, con.String())
		}
		out.Columns = append(out.Columns, col)
	}
	for _, u := range b.Uniques {
		out.Constraints = append(out.Constraints, "UNIQUE ("+strings.Join(u, ", ")+")")
	}
	for _, idx := range b.Indexes {
		out.Constraints = append(out.Constraints, "INDEX ("+strings.Join(idx, ", ")+")")
	}
	return out
}
