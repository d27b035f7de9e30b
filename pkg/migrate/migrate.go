// Package migrate applies the goose SQL migrations embedded in the binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migrations are written, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the schema compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner drives a goose provider over one database.
type Runner struct {
	p *goose.Provider
}

// NewRunner builds a Postgres runner. A nil fsys means the embedded migrations.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	return newRunner(goose.DialectPostgres, db, fsys)
}

func newRunner(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Migrations()
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{p: p}, nil
}

// Up applies every pending migration and reports how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the latest migration.
func (r *Runner) Down(ctx context.Context) error {
	if _, err := r.p.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.p.GetDBVersion(ctx)
}

// To migrates up or down until target is the latest applied version.
func (r *Runner) To(ctx context.Context, target int64) error {
	current, err := r.p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("db version: %w", err)
	}
	switch {
	case target > current:
		_, err = r.p.UpTo(ctx, target)
	case target < current:
		_, err = r.p.DownTo(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// Status writes one line per migration: version, state and when it ran.
func (r *Runner) Status(ctx context.Context, w io.Writer) error {
	statuses, err := r.p.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return tw.Flush()
}
