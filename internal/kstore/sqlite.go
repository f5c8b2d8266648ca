package kstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const quadSchema = `
CREATE TABLE IF NOT EXISTS quads (
	graph      TEXT NOT NULL,
	subject    TEXT NOT NULL,
	predicate  TEXT NOT NULL,
	object     TEXT NOT NULL,
	is_literal INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_quads_graph ON quads(graph);
`

// QuadDB persists the collection in a SQLite database so later runs can
// skip N-Quads parsing.
type QuadDB struct {
	db   *sql.DB
	path string
}

// OpenQuadDB opens (and creates if needed) the SQLite quad database.
func OpenQuadDB(path string) (*QuadDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quad database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(quadSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &QuadDB{db: db, path: path}, nil
}

// Close closes the database.
func (d *QuadDB) Close() error {
	return d.db.Close()
}

// Insert stores quads in a single transaction.
func (d *QuadDB) Insert(ctx context.Context, quads []Quad) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quads (graph, subject, predicate, object, is_literal)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range quads {
		lit := 0
		if q.Literal {
			lit = 1
		}
		if _, err := stmt.ExecContext(ctx, q.Graph, q.Subject, q.Predicate, q.Object, lit); err != nil {
			return fmt.Errorf("failed to insert quad: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored quads.
func (d *QuadDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quads").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count quads: %w", err)
	}
	return n, nil
}

// LoadInto reads every stored quad into m and returns the number read.
func (d *QuadDB) LoadInto(ctx context.Context, m *Memory) (int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT graph, subject, predicate, object, is_literal FROM quads")
	if err != nil {
		return 0, fmt.Errorf("failed to query quads: %w", err)
	}
	defer rows.Close()

	n := 0
	batch := make([]Quad, 0, 4096)
	for rows.Next() {
		var q Quad
		var lit int
		if err := rows.Scan(&q.Graph, &q.Subject, &q.Predicate, &q.Object, &lit); err != nil {
			return n, fmt.Errorf("failed to scan quad: %w", err)
		}
		q.Literal = lit != 0

		batch = append(batch, q)
		if len(batch) == cap(batch) {
			m.Add(batch...)
			n += len(batch)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("failed to read quads: %w", err)
	}

	m.Add(batch...)
	return n + len(batch), nil
}

// ImportNQuads streams an N-Quads file into the database in batches.
func (d *QuadDB) ImportNQuads(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening n-quads: %w", err)
	}
	defer f.Close()

	n := 0
	batch := make([]Quad, 0, 4096)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := d.Insert(ctx, batch); err != nil {
			return err
		}
		n += len(batch)
		batch = batch[:0]
		return nil
	}

	err = ReadNQuads(ctx, f, func(q Quad) error {
		batch = append(batch, q)
		if len(batch) == cap(batch) {
			return flush()
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("importing %s: %w", path, err)
	}
	if err := flush(); err != nil {
		return n, err
	}
	return n, nil
}
