// Package sqlite reads subthemes from a column of a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crimson-sun/cultura/internal/source"
)

// Defaults match the extraction database layout.
const (
	DefaultTable  = "subthemes"
	DefaultColumn = "sub_theme"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func init() {
	source.Register("sqlite", func(cfg source.Config) (source.Source, error) {
		return Open(cfg.Path, cfg.Table, cfg.Column)
	})
}

// Source selects one column from one table.
type Source struct {
	db    *sql.DB
	query string
}

// Open opens the database read-only. Empty table or column fall back to the
// defaults.
func Open(path, table, column string) (*Source, error) {
	if table == "" {
		table = DefaultTable
	}
	if column == "" {
		column = DefaultColumn
	}
	if !identRE.MatchString(table) || !identRE.MatchString(column) {
		return nil, fmt.Errorf("sqlite source: invalid identifier %q.%q", table, column)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite source: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite source: open %s: %w", path, err)
	}
	slog.Debug("sqlite source opened", "path", path, "table", table, "column", column)
	return &Source{
		db:    db,
		query: fmt.Sprintf(`SELECT "%s" FROM "%s"`, column, table),
	}, nil
}

func (s *Source) Subthemes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite source: scan: %w", err)
		}
		if t := strings.TrimSpace(v.String); v.Valid && t != "" {
			out = append(out, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	return out, nil
}

func (s *Source) Close() error { return s.db.Close() }
