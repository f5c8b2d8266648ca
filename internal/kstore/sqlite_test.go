package kstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lovbench/lovrank/internal/model"
)

func openTestDB(t *testing.T) (*QuadDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store", "quads.db")
	db, err := OpenQuadDB(path)
	if err != nil {
		t.Fatalf("OpenQuadDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestQuadDB_InsertAndLoad(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)

	quads := []Quad{
		{Graph: onto, Subject: onto + "#Person", Predicate: RDFNS + "type", Object: OWLNS + "Class"},
		{Graph: onto, Subject: onto + "#Person", Predicate: RDFSNS + "label", Object: "Person", Literal: true},
	}
	if err := db.Insert(ctx, quads); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if n, err := db.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v, want 2", n, err)
	}

	m := NewMemory(testPrefixes(), MatchLOV)
	n, err := db.LoadInto(ctx, m)
	if err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if n != 2 || m.Len() != 2 {
		t.Errorf("LoadInto() = %d quads, store holds %d, want 2", n, m.Len())
	}

	var literal Quad
	m.Quads(func(q Quad) error {
		if q.Literal {
			literal = q
		}
		return nil
	})
	if literal.Object != "Person" {
		t.Errorf("literal flag lost: %+v", literal)
	}
}

func TestQuadDB_ImportNQuads(t *testing.T) {
	ctx := context.Background()
	src := filepath.Join(t.TempDir(), "lov.nq")
	if err := os.WriteFile(src, []byte(fixture), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	db, path := openTestDB(t)
	n, err := db.ImportNQuads(ctx, src)
	if err != nil {
		t.Fatalf("ImportNQuads() error = %v", err)
	}
	want := newTestStore(t, MatchLOV).Len()
	if n != want {
		t.Errorf("ImportNQuads() = %d, want %d", n, want)
	}
	db.Close()

	m, err := Open(ctx, testPrefixes(), Options{Kind: "sqlite", SQLite: path, MatchMode: MatchLOV})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	if m.Len() != want {
		t.Errorf("Open(sqlite) loaded %d quads, want %d", m.Len(), want)
	}
	terms, err := m.AllTerms(ctx, model.Ontology{URI: onto})
	if err != nil || len(terms) != 7 {
		t.Errorf("AllTerms() after reload = %d terms, %v, want 7", len(terms), err)
	}
}

func TestQuadDB_ImportMissingFile(t *testing.T) {
	db, _ := openTestDB(t)
	if _, err := db.ImportNQuads(context.Background(), filepath.Join(t.TempDir(), "missing.nq")); err == nil {
		t.Error("ImportNQuads(missing) should fail")
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), testPrefixes(), Options{Kind: "postgres"}); err == nil {
		t.Error("Open(postgres) should fail")
	}
}
