package source_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/crimson-sun/cultura/internal/source"
	_ "github.com/crimson-sun/cultura/internal/source/csvsource"
	_ "github.com/crimson-sun/cultura/internal/source/httpsource"
	_ "github.com/crimson-sun/cultura/internal/source/sqlite"
)

func TestOpenUnknownKind(t *testing.T) {
	_, err := source.Open(source.Config{Kind: "parquet", Path: "x.parquet"})
	if !errors.Is(err, source.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	_, err = source.Open(source.Config{Path: "x.json"})
	if !errors.Is(err, source.ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource for uninferable path, got %v", err)
	}
}

func TestKinds(t *testing.T) {
	if got := source.Kinds(); !reflect.DeepEqual(got, []string{"csv", "http", "sqlite"}) {
		t.Errorf("Kinds() = %v", got)
	}
}

func TestInferKind(t *testing.T) {
	tests := map[string]string{
		"a.csv":                      "csv",
		"A.CSV":                      "csv",
		"b.db":                       "sqlite",
		"c.sqlite3":                  "sqlite",
		"d.txt":                      "",
		"no-extension":               "",
		"https://x.io/subthemes.csv": "http",
		"HTTP://x.io/export":         "http",
	}
	for path, want := range tests {
		if got := source.InferKind(path); got != want {
			t.Errorf("InferKind(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestOpenCSVByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subthemes.csv")
	data := "\ufeffid,sub_theme\n1, Pay equity \n2,\n3,Team spirit\n4,Pay equity\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := source.Open(source.Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	got, err := src.Subthemes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Pay equity", "Team spirit", "Pay equity"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Subthemes() = %q, want %q", got, want)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE extracted (id INTEGER PRIMARY KEY, theme TEXT)`,
		`INSERT INTO extracted (theme) VALUES ('Hybrid work'), (NULL), ('  '), ('Safety culture')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	src, err := source.Open(source.Config{Path: path, Table: "extracted", Column: "theme"})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	got, err := src.Subthemes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Hybrid work", "Safety culture"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Subthemes() = %q, want %q", got, want)
	}
}

func TestOpenSQLiteRejectsBadIdentifier(t *testing.T) {
	_, err := source.Open(source.Config{Kind: "sqlite", Path: filepath.Join(t.TempDir(), "x.db"), Table: "t; DROP TABLE t"})
	if err == nil {
		t.Fatal("expected error for invalid table name")
	}
}
