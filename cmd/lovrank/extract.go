package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lovbench/lovrank/internal/bus"
	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/extraction"
	"github.com/lovbench/lovrank/internal/feature"
	"github.com/lovbench/lovrank/internal/groundtruth"
	"github.com/lovbench/lovrank/internal/lovapi"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/search"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Compute features for a ground truth and write the feature matrix",
		Long: `Score every (query, entity) pair of the ground truth with the selected
features and write one CSV per feature, the combined ranking benchmark and
a manifest under <output>/<run-id>/<mode>/.

Examples:
  lovrank extract --mode term --ground-truth gt/terms.csv
  lovrank extract --mode ontology --features TF_O,BM25_O --where "relevance > 0"`,
		RunE: runExtract,
	}

	cmd.Flags().String("mode", "", "search mode (term, ontology)")
	cmd.Flags().String("ground-truth", "", "ground-truth CSV path")
	cmd.Flags().StringP("output", "o", "", "output directory")
	cmd.Flags().StringSlice("features", nil, "features to compute (default: every feature valid for the mode)")
	cmd.Flags().Int("limit", 0, "read at most this many ground-truth rows")
	cmd.Flags().String("where", "", "CEL filter over query, words, entity and relevance")
	cmd.Flags().Int("workers", 0, "parallel file writers")
	cmd.Flags().Bool("offline", false, "skip features that call the LOV search API")

	return cmd
}

func runExtract(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	cfg := &e.cfg.Extraction

	// Override from flags
	if cmd.Flags().Changed("mode") {
		cfg.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("ground-truth") {
		cfg.GroundTruth, _ = cmd.Flags().GetString("ground-truth")
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("features") {
		cfg.Features, _ = cmd.Flags().GetStringSlice("features")
	}
	if cmd.Flags().Changed("limit") {
		cfg.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Changed("where") {
		cfg.Where, _ = cmd.Flags().GetString("where")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	offline, _ := cmd.Flags().GetBool("offline")

	if err := e.cfg.Validate(); err != nil {
		return err
	}
	if cfg.GroundTruth == "" {
		return fmt.Errorf("no ground truth given (use --ground-truth or LOVRANK_GROUND_TRUTH)")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := e.log
	log.Info("Starting lovrank extraction", "version", version, "mode", cfg.Mode)

	prefixes, err := e.prefixes()
	if err != nil {
		return err
	}

	table, err := readGroundTruth(cfg.Mode, cfg.GroundTruth, prefixes, cfg.Limit)
	if err != nil {
		return err
	}
	filter, err := groundtruth.NewFilter(cfg.Where)
	if err != nil {
		return err
	}
	if table, err = filter.Apply(table); err != nil {
		return err
	}
	log.Info("Loaded ground truth", "path", cfg.GroundTruth, "rows", table.Len(),
		"queries", len(table.Queries()), "entities", len(table.Entities()))

	store, err := e.openStore(ctx, prefixes)
	if err != nil {
		return err
	}

	backend, err := cache.NewBackend(e.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	deps, err := feature.NewDeps(ctx, store, prefixes, backend, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	if !offline {
		lov, err := lovapi.New(ctx, e.cfg.LOV, backend, log)
		if err != nil {
			return fmt.Errorf("failed to create LOV client: %w", err)
		}
		defer func() { _ = lov.Close() }()
		deps.LOV = lov
	}

	if path := e.cfg.Search.IndexPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			labels, err := search.OpenLabelIndex(path, log)
			if err != nil {
				return err
			}
			defer func() { _ = labels.Close() }()
			deps.Labels = labels
		} else {
			log.Warn("Label index not found, LabelSearch_T disabled", "path", path)
		}
	}

	features, err := feature.NewRegistry(deps).Select(cfg.Features, table.Kind)
	if err != nil {
		return err
	}

	eventBus, err := bus.NewBus(e.cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() { _ = eventBus.Close() }()
	if err := eventBus.Subscribe(ctx, bus.TopicFeatureCompleted, logProgress(e)); err != nil {
		log.Debug("Progress subscription unavailable", "bus", e.cfg.Bus.Type, "error", err)
	}

	manifest, err := extraction.New(features, prefixes, eventBus, log).Run(ctx, table, extraction.Options{
		OutputDir:   cfg.OutputDir,
		GroundTruth: cfg.GroundTruth,
		Filter:      filter.String(),
		Workers:     cfg.Workers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.format == "json" {
		return writeJSON(out, manifest)
	}
	fmt.Fprintf(out, "run %s: %d rows, %d features\n", manifest.RunID, manifest.Rows, len(manifest.Features))
	fmt.Fprintf(out, "  output: %s\n", manifest.Dir)
	return nil
}

func readGroundTruth(mode, path string, prefixes *model.Prefixes, limit int) (*groundtruth.Table, error) {
	if mode == model.OntologySearch.String() {
		return groundtruth.ReadOntologies(path, prefixes, limit)
	}
	return groundtruth.ReadTerms(path, prefixes, limit)
}

func logProgress(e *env) bus.Handler {
	return func(_ context.Context, event bus.Event) error {
		p, ok := event.Progress()
		if !ok {
			return nil
		}
		e.log.Info("Feature complete", "feature", p.Feature, "rows", p.Rows, "duration", p.Duration)
		return nil
	}
}
