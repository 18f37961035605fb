package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written during development.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the migration set: dir on disk when set, the embedded set
// otherwise.
func Source(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Step is one applied or rolled back migration.
type Step struct {
	Version int64
	Path    string
	Took    string
}

// Migrator runs goose migrations against a postgres database.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, migrations fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if migrations == nil {
		migrations = Embedded()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Step, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return steps(results), fmt.Errorf("goose up: %w", err)
	}
	return steps(results), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) ([]Step, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return steps([]*goose.MigrationResult{result}), nil
}

// To moves the schema up or down until it sits at target, given as the
// YYYYMMDDHHMMSS version prefix.
func (m *Migrator) To(ctx context.Context, target string) ([]Step, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err = m.provider.UpTo(ctx, version)
	default:
		results, err = m.provider.DownTo(ctx, version)
	}
	if err != nil {
		return steps(results), fmt.Errorf("goose migrate to %d: %w", version, err)
	}
	return steps(results), nil
}

// Pending lists the migrations not yet applied.
func (m *Migrator) Pending(ctx context.Context) ([]Step, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	var out []Step
	for _, st := range statuses {
		if st.State == goose.StatePending && st.Source != nil {
			out = append(out, Step{Version: st.Source.Version, Path: st.Source.Path})
		}
	}
	return out, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Step{Version: r.Source.Version, Path: r.Source.Path, Took: r.Duration.String()})
	}
	return out
}
