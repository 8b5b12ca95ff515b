package migrate

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// Registry holds migrations written in Go.
type Registry struct {
	mu         sync.Mutex
	migrations map[string]Migration
}

func NewRegistry() *Registry {
	return &Registry{migrations: map[string]Migration{}}
}

// Default is the registry filled by Register, usually from init functions
// in the application's migrations package.
var Default = NewRegistry()

// Register adds a Go migration to Default. It panics on a malformed or
// duplicate id, since it runs at init time.
func Register(id string, up, down Procedure) {
	_, file, _, _ := runtime.Caller(1)
	if err := Default.Add(id, file, up, down); err != nil {
		panic(err)
	}
}

// Add registers a migration under id.
func (r *Registry) Add(id, path string, up, down Procedure) error {
	ts, slug, err := ParseID(id)
	if err != nil {
		return err
	}
	if up == nil {
		return fmt.Errorf("migration %s: up procedure is required", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.migrations[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMigration, id)
	}
	r.migrations[id] = Migration{ID: id, Timestamp: ts, Slug: slug, Path: path, Up: up, Down: down}
	return nil
}

// All returns the registered migrations ordered by id.
func (r *Registry) All() []Migration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
