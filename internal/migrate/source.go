package migrate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const (
	markerUp   = "-- +migrate Up"
	markerDown = "-- +migrate Down"
)

var (
	errMissingUpSection = errors.New("missing -- +migrate Up section")
	errDuplicateMarker  = errors.New("section marker appears twice")
)

// List returns every migration in fsys (SQL files named
// <timestamp>__<slug>.sql) together with those in reg, sorted by id. fsys
// may be nil, and a directory that does not exist holds no migrations.
// Nothing is cached: every call reads the directory again.
func List(fsys fs.FS, reg *Registry) ([]Migration, error) {
	var out []Migration
	if fsys != nil {
		files, err := listFiles(fsys)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	if reg != nil {
		out = append(out, reg.All()...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i := 1; i < len(out); i++ {
		if out[i].ID == out[i-1].ID {
			return nil, fmt.Errorf("%w: %s is defined by both %s and %s", ErrDuplicateMigration, out[i].ID, out[i-1].Path, out[i].Path)
		}
	}
	return out, nil
}

func listFiles(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		m, err := parseFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("parse migration %s: %w", entry.Name(), err)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseFile(fsys fs.FS, filename string) (Migration, error) {
	id := strings.TrimSuffix(filename, ".sql")
	ts, slug, err := ParseID(id)
	if err != nil {
		return Migration{}, err
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return Migration{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = file.Close() }()

	var upBuilder, downBuilder strings.Builder
	var current *strings.Builder
	seenUp, seenDown := false, false

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case markerUp:
			if seenUp {
				return Migration{}, errDuplicateMarker
			}
			seenUp, current = true, &upBuilder
			continue
		case markerDown:
			if seenDown {
				return Migration{}, errDuplicateMarker
			}
			seenDown, current = true, &downBuilder
			continue
		}
		if current != nil {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return Migration{}, fmt.Errorf("read: %w", err)
	}

	if !seenUp {
		return Migration{}, errMissingUpSection
	}
	up := strings.TrimSpace(upBuilder.String())
	down := strings.TrimSpace(downBuilder.String())

	m := Migration{
		ID:        id,
		Timestamp: ts,
		Slug:      slug,
		Path:      filename,
		Up:        scriptProcedure(up),
	}
	if down != "" {
		m.Down = scriptProcedure(down)
	}
	return m, nil
}

func scriptProcedure(script string) Procedure {
	return func(ctx context.Context, h *Handle) error {
		return h.ExecScript(ctx, script)
	}
}
