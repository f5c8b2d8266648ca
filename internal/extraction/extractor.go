// Package extraction joins feature scores against a ground-truth table
// and writes the resulting feature matrix.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lovbench/lovrank/internal/bus"
	"github.com/lovbench/lovrank/internal/feature"
	"github.com/lovbench/lovrank/internal/groundtruth"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/hash"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

const source = "extraction"

// Options configures one run.
type Options struct {
	// OutputDir receives <run-id>/<mode>/.
	OutputDir string
	// GroundTruth is the path of the ground-truth file, hashed into the
	// manifest.
	GroundTruth string
	// Filter is the row filter expression, recorded in the manifest.
	Filter string
	// Workers bounds the number of files written at once.
	Workers int
}

// Extractor scores ground-truth rows with a fixed list of features.
type Extractor struct {
	features []feature.Feature
	prefixes *model.Prefixes
	bus      bus.Bus
	log      *logger.Logger
}

// New creates an extractor. Features are scored and written in the given
// order. b may be nil.
func New(features []feature.Feature, prefixes *model.Prefixes, b bus.Bus, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Default()
	}
	if b == nil {
		b = bus.Nop{}
	}
	return &Extractor{
		features: features,
		prefixes: prefixes,
		bus:      b,
		log:      log.WithComponent(source),
	}
}

// ontologyOf returns the ontology a row's ontology-level features are
// scored on: the row entity in ontology mode, the owning ontology of the
// term in term mode.
func (e *Extractor) ontologyOf(kind model.QueryKind, r groundtruth.Row) model.Ontology {
	if kind == model.OntologySearch {
		return r.Ontology()
	}
	return e.prefixes.OntologyOf(r.Entity)
}

func (e *Extractor) validate(kind model.QueryKind) error {
	if kind != model.OntologySearch {
		return nil
	}
	for _, f := range e.features {
		if f.Domain() == feature.TermDomain {
			return errors.ValidationError(fmt.Sprintf("term feature %s cannot score ontologies", f.Name()))
		}
	}
	return nil
}

// Score computes every feature for every row of table.
func (e *Extractor) Score(ctx context.Context, runID string, table *groundtruth.Table) (*Matrix, error) {
	if err := e.validate(table.Kind); err != nil {
		return nil, err
	}

	names := make([]string, len(e.features))
	for i, f := range e.features {
		names[i] = f.Name()
	}
	m := NewMatrix(table, names...)
	rows := table.Rows()
	for _, f := range e.features {
		progress := bus.FeatureProgress{
			Feature: f.Name(),
			Kind:    f.Kind().String(),
			Domain:  f.Domain().String(),
			Rows:    len(rows),
		}
		e.publish(ctx, bus.TopicFeatureStarted, runID, progress)
		e.log.Info("Extracting scores", "feature", f.Name(), "kind", progress.Kind, "domain", progress.Domain)

		start := time.Now()
		if err := e.scoreFeature(ctx, f, table.Kind, rows, m); err != nil {
			return nil, fmt.Errorf("scoring %s: %w", f.Name(), err)
		}

		progress.Duration = time.Since(start)
		e.publish(ctx, bus.TopicFeatureCompleted, runID, progress)
	}
	return m, nil
}

func (e *Extractor) scoreFeature(ctx context.Context, f feature.Feature, kind model.QueryKind, rows []groundtruth.Row, m *Matrix) error {
	switch f := f.(type) {
	case feature.OntologyImportance:
		seen := make(map[model.Ontology]bool)
		var set []model.Ontology
		for _, r := range rows {
			if o := e.ontologyOf(kind, r); !seen[o] {
				seen[o] = true
				set = append(set, o)
			}
		}
		if _, err := f.ComputeScores(ctx, set); err != nil {
			return err
		}
		for _, r := range rows {
			v, err := f.Score(ctx, e.ontologyOf(kind, r))
			if err != nil {
				return err
			}
			m.Set(f.Name(), r, v)
		}

	case feature.TermImportance:
		seen := make(map[model.Term]bool)
		var set []model.Term
		for _, r := range rows {
			if t := r.Term(); !seen[t] {
				seen[t] = true
				set = append(set, t)
			}
		}
		if _, err := f.ComputeScores(ctx, set); err != nil {
			return err
		}
		for _, r := range rows {
			v, err := f.Score(ctx, r.Term())
			if err != nil {
				return err
			}
			m.Set(f.Name(), r, v)
		}

	case feature.OntologyRelevance:
		for _, r := range rows {
			v, err := f.Score(ctx, r.Query, e.ontologyOf(kind, r))
			if err != nil {
				return err
			}
			m.Set(f.Name(), r, v)
		}

	case feature.TermRelevance:
		for _, r := range rows {
			v, err := f.Score(ctx, r.Query, r.Term())
			if err != nil {
				return err
			}
			m.Set(f.Name(), r, v)
		}

	default:
		return errors.InternalError(fmt.Sprintf("feature %s has no scoring capability", f.Name()), nil)
	}
	return ctx.Err()
}

// Run scores table and writes the per-feature tables, the combined table
// and manifest.yaml under <OutputDir>/<run-id>/<mode>/.
func (e *Extractor) Run(ctx context.Context, table *groundtruth.Table, opts Options) (*Manifest, error) {
	runID := uuid.NewString()
	log := e.log.WithRun(runID)

	manifest := &Manifest{
		RunID:       runID,
		Mode:        table.Kind.String(),
		GroundTruth: opts.GroundTruth,
		Filter:      opts.Filter,
		Rows:        table.Len(),
		StartedAt:   time.Now().UTC(),
	}
	for _, f := range e.features {
		manifest.Features = append(manifest.Features, f.Name())
	}
	if opts.GroundTruth != "" {
		sum, err := hash.File(opts.GroundTruth)
		if err != nil {
			return nil, errors.IOError("hashing ground truth", err)
		}
		manifest.GroundTruthSHA256 = sum
	}

	e.publish(ctx, bus.TopicRunStarted, runID, bus.RunInfo{
		Mode:     manifest.Mode,
		Rows:     manifest.Rows,
		Features: manifest.Features,
	})
	log.Info("Starting extraction", "mode", manifest.Mode, "rows", manifest.Rows, "features", len(e.features))

	m, err := e.Score(ctx, runID, table)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(opts.OutputDir, runID, manifest.Mode)
	files, err := WriteAll(ctx, dir, m, opts.Workers)
	if err != nil {
		return nil, err
	}
	manifest.Files = files
	manifest.CompletedAt = time.Now().UTC()
	if err := manifest.Write(filepath.Join(dir, ManifestFile)); err != nil {
		return nil, err
	}

	e.publish(ctx, bus.TopicRunCompleted, runID, bus.RunInfo{
		Mode:     manifest.Mode,
		Rows:     manifest.Rows,
		Features: manifest.Features,
		Dir:      dir,
		Files:    files,
	})
	log.Info("Extraction complete", "dir", dir, "files", len(files))
	manifest.Dir = dir
	return manifest, nil
}

func (e *Extractor) publish(ctx context.Context, topic, runID string, payload any) {
	if err := e.bus.Publish(ctx, topic, bus.NewEvent(topic, source, runID, payload)); err != nil {
		e.log.Warn("Failed to publish progress event", "topic", topic, "error", err)
	}
}

// WriteAll writes one file per feature and the combined table into dir,
// at most workers at a time. It returns the written file names.
func WriteAll(ctx context.Context, dir string, m *Matrix, workers int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError("creating output directory", err)
	}

	features := m.Features()
	files := make([]string, len(features)+1)

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range features {
		files[i] = f + ".csv"
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeFile(filepath.Join(dir, files[i]), func(f *os.File) error {
				return m.WriteFeature(f, features[i])
			})
		})
	}
	files[len(features)] = CombinedFileName(m.kind)
	g.Go(func() error {
		return writeFile(filepath.Join(dir, files[len(features)]), func(f *os.File) error {
			return m.WriteCombined(f)
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.IOError("creating "+filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		if errors.IsInvariant(err) {
			return err
		}
		return errors.IOError("writing "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return errors.IOError("closing "+filepath.Base(path), err)
	}
	return nil
}
