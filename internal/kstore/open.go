package kstore

import (
	"context"
	"fmt"

	"github.com/lovbench/lovrank/internal/model"
)

// Options selects the backing source of a Memory store.
type Options struct {
	// Kind is "memory" (parse NQuads) or "sqlite" (read SQLite).
	Kind      string
	NQuads    string
	SQLite    string
	MatchMode MatchMode
}

// Open builds a Memory store from the configured source.
func Open(ctx context.Context, p *model.Prefixes, opts Options) (*Memory, error) {
	m := NewMemory(p, opts.MatchMode)

	switch opts.Kind {
	case "sqlite":
		db, err := OpenQuadDB(opts.SQLite)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if _, err := db.LoadInto(ctx, m); err != nil {
			return nil, err
		}
	case "memory", "":
		if _, err := LoadNQuads(ctx, opts.NQuads, m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}

	return m, nil
}
