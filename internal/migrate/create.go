package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"db_schema_migrator/internal/config"
)

// Kind selects the file a new migration is scaffolded as.
type Kind string

const (
	KindSQL Kind = "sql"
	KindGo  Kind = "go"
)

// CreateOptions configures Create.
type CreateOptions struct {
	Dir     string
	Profile string
	Kind    Kind
	// Now defaults to time.Now; the timestamp is always rendered in UTC.
	Now func() time.Time
}

// Create writes an empty migration named <timestamp>__<slug> into Dir and
// returns its path. An existing file with the same name is never
// overwritten.
func Create(name string, opts CreateOptions) (string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = config.DefaultDir
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	kind := opts.Kind
	if kind == "" {
		kind = KindSQL
	}
	if kind != KindSQL && kind != KindGo {
		return "", fmt.Errorf("unknown migration kind %q", kind)
	}

	id := now().UTC().Format(TimestampLayout) + "__" + Slug(name)
	path := filepath.Join(dir, id+"."+string(kind))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateMigration, path)
		}
		return "", fmt.Errorf("create migration file: %w", err)
	}
	defer f.Close()

	tmpl := sqlTemplate
	if kind == KindGo {
		tmpl = goTemplate
	}
	data := templateData{
		ID:      id,
		Name:    name,
		Profile: opts.Profile,
		Package: packageName(dir),
	}
	if err := tmpl.Execute(f, data); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write migration file: %w", err)
	}
	return path, nil
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug turns a free-form name into the [a-z0-9_-] part of a migration id.
// Accents are folded and each run of other characters becomes a single
// separator.
func Slug(name string) string {
	folded, _, err := transform.String(foldAccents, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	inSep := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			inSep = false
		case inSep:
		case r == '-':
			b.WriteRune('-')
			inSep = true
		default:
			b.WriteRune('_')
			inSep = true
		}
	}
	slug := strings.Trim(b.String(), "_-")
	if slug == "" {
		return "migration"
	}
	return slug
}

func packageName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return "migrations"
	}
	return name
}

type templateData struct {
	ID      string
	Name    string
	Profile string
	Package string
}

var sqlTemplate = template.Must(template.New("sql").Parse(`-- {{.ID}}: {{.Name}}
{{- if .Profile}}
-- profile: {{.Profile}}
{{- end}}

-- +migrate Up


-- +migrate Down

`))

var goTemplate = template.Must(template.New("go").Parse(`package {{.Package}}

import (
	"context"

	"db_schema_migrator/internal/migrate"
)

// {{.Name}}
{{- if .Profile}}
// profile: {{.Profile}}
{{- end}}
func init() {
	migrate.Register("{{.ID}}",
		func(ctx context.Context, h *migrate.Handle) error {
			return nil
		},
		func(ctx context.Context, h *migrate.Handle) error {
			return nil
		},
	)
}
`))
