// Package schema attaches compiled table descriptions to application models.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"db_schema_migrator/internal/blueprint"
	"db_schema_migrator/internal/dialect"
)

var ErrMissingTableName = errors.New("model has no table name")

// Model is anything with a declared table name.
type Model interface {
	TableName() string
}

// Holder is implemented by models that keep their own copy of the compiled
// schema.
type Holder interface {
	SetSchema(s *blueprint.CompiledSchema)
}

var (
	mu       sync.RWMutex
	registry = map[reflect.Type]*blueprint.CompiledSchema{}
)

// Bind builds the model's table with define, compiles it for d and records
// the resulting schema against the model type. It returns the DDL; executing
// it is up to the caller.
func Bind(model Model, d dialect.Dialect, define func(b *blueprint.Blueprint)) (string, error) {
	out, err := Compile(model, d, define)
	if err != nil {
		return "", err
	}
	return out.DDL, nil
}

// Compile is Bind returning the full compiler output.
func Compile(model Model, d dialect.Dialect, define func(b *blueprint.Blueprint)) (dialect.Output, error) {
	name := model.TableName()
	if name == "" {
		return dialect.Output{}, fmt.Errorf("%w: %T", ErrMissingTableName, model)
	}
	b := blueprint.New(name)
	define(b)
	out, err := dialect.Compile(d, b)
	if err != nil {
		return dialect.Output{}, err
	}

	mu.Lock()
	registry[typeOf(model)] = out.Schema
	mu.Unlock()
	if h, ok := model.(Holder); ok {
		h.SetSchema(out.Schema)
	}
	return out, nil
}

// Lookup returns the schema last bound for the model's type.
func Lookup(model Model) (*blueprint.CompiledSchema, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[typeOf(model)]
	return s, ok
}

// LookupTable finds a bound schema by table name.
func LookupTable(name string) (*blueprint.CompiledSchema, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func typeOf(model Model) reflect.Type {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
