package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lovbench/lovrank/internal/bus"
	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/evaluation"
	"github.com/lovbench/lovrank/internal/extraction"
	"github.com/lovbench/lovrank/internal/feature"
	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/search"
)

type featureInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Domain string `json:"domain"`
}

func featuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "List the available features",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			domain, _ := cmd.Flags().GetString("domain")

			// Listing runs over an empty store so that the optional
			// features show up without loading the collection.
			prefixes := model.NewPrefixes()
			deps, err := feature.NewDeps(cmd.Context(), kstore.NewMemory(prefixes, kstore.MatchLOV), prefixes, nil, e.log)
			if err != nil {
				return err
			}
			defer deps.Close()
			deps.LOV, deps.Labels = catalogOnly{}, catalogOnly{}

			var infos []featureInfo
			for _, f := range feature.NewRegistry(deps).All() {
				if domain != "" && f.Domain().String() != domain {
					continue
				}
				infos = append(infos, featureInfo{Name: f.Name(), Kind: f.Kind().String(), Domain: f.Domain().String()})
			}

			out := cmd.OutOrStdout()
			if e.format == "json" {
				return writeJSON(out, infos)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tDOMAIN")
			for _, i := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", i.Name, i.Kind, i.Domain)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("domain", "", "only list features of this domain (term, ontology)")
	return cmd
}

// catalogOnly stands in for the remote and index backed scorers when
// features are only listed.
type catalogOnly struct{}

func (catalogOnly) TermMatch(context.Context, model.Query, model.Term) (float64, error) {
	return 0, nil
}

func (catalogOnly) TermPopularity(context.Context, model.Query, model.Term) (float64, error) {
	return 0, nil
}

func (catalogOnly) VocabMatch(context.Context, model.Query, model.Ontology) (float64, error) {
	return 0, nil
}

func (catalogOnly) Search(context.Context, model.Query) (map[string]float64, error) {
	return nil, nil
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <run-dir>",
		Short: "Measure each feature of an extraction run as a ranker",
		Long: `Rank the entities of every query by each feature column of the run's
combined table and report NDCG, precision and recall at k, MRR and MAP
against the ground truth recorded in the run manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ks, _ := cmd.Flags().GetIntSlice("k")

			dir := args[0]
			manifest, err := extraction.ReadManifest(filepath.Join(dir, extraction.ManifestFile))
			if err != nil {
				return err
			}
			kind := model.TermSearch
			if manifest.Mode == model.OntologySearch.String() {
				kind = model.OntologySearch
			}

			prefixes, err := e.prefixes()
			if err != nil {
				return err
			}
			judgments, err := readGroundTruth(manifest.Mode, manifest.GroundTruth, prefixes, 0)
			if err != nil {
				return err
			}
			scores, err := evaluation.ReadScoresFile(filepath.Join(dir, extraction.CombinedFileName(kind)), kind)
			if err != nil {
				return err
			}

			summaries, err := evaluation.NewEvaluator(judgments, ks, e.log).Evaluate(scores)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if e.format == "json" {
				return writeJSON(out, summaries)
			}
			return writeSummaries(cmd, summaries, ks)
		},
	}
	cmd.Flags().IntSlice("k", evaluation.DefaultKs, "cutoffs for NDCG, precision and recall")
	return cmd
}

func writeSummaries(cmd *cobra.Command, summaries []*evaluation.Summary, ks []int) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)

	header := []string{"FEATURE", "QUERIES", "MAP", "MRR"}
	ks = slices.Sorted(slices.Values(ks))
	for _, k := range ks {
		header = append(header, fmt.Sprintf("NDCG@%d", k), fmt.Sprintf("P@%d", k), fmt.Sprintf("R@%d", k))
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for _, s := range summaries {
		row := []string{s.Feature, fmt.Sprint(s.QueryCount), fmt.Sprintf("%.4f", s.MAP), fmt.Sprintf("%.4f", s.MeanMRR)}
		for _, k := range ks {
			row = append(row,
				fmt.Sprintf("%.4f", s.MeanNDCG[k]),
				fmt.Sprintf("%.4f", s.MeanPrecision[k]),
				fmt.Sprintf("%.4f", s.MeanRecall[k]),
			)
		}
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	return w.Flush()
}

type runTimeline struct {
	Manifest *extraction.Manifest `json:"manifest"`
	Events   []bus.Record         `json:"events"`
	Replayed int                  `json:"replayed,omitempty"`
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <run-dir>",
		Short: "Show the recorded progress of an extraction run",
		Long: `Print the manifest of a run and the events the bus recorded for it in
the event log (bus.event_log). With --replay the events are published
again on the configured bus, e.g. to feed a Kafka topic after the fact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			replay, _ := cmd.Flags().GetBool("replay")

			manifest, err := extraction.ReadManifest(filepath.Join(args[0], extraction.ManifestFile))
			if err != nil {
				return err
			}
			if e.cfg.Bus.EventLog == "" {
				return fmt.Errorf("no event log configured (bus.event_log)")
			}
			records, err := bus.ReadRunLog(e.cfg.Bus.EventLog, manifest.RunID)
			if err != nil {
				return err
			}
			timeline := runTimeline{Manifest: manifest, Events: records}

			if replay {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				// Publishing through a bus without the log keeps the
				// replayed events out of it.
				busCfg := e.cfg.Bus
				busCfg.EventLog = ""
				target, err := bus.NewBus(busCfg, e.log)
				if err != nil {
					return fmt.Errorf("failed to create event bus: %w", err)
				}
				n, err := bus.Replay(ctx, records, target)
				if cerr := target.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
				timeline.Replayed = n
				e.log.Info("Replayed run", "run", manifest.RunID, "events", n, "bus", busCfg.Type)
			}

			out := cmd.OutOrStdout()
			if e.format == "json" {
				return writeJSON(out, timeline)
			}
			return writeTimeline(cmd, timeline)
		},
	}
	cmd.Flags().Bool("replay", false, "publish the recorded events on the configured bus")
	return cmd
}

func writeTimeline(cmd *cobra.Command, tl runTimeline) error {
	out := cmd.OutOrStdout()
	m := tl.Manifest
	fmt.Fprintf(out, "run %s (%s): %d rows, %d features\n", m.RunID, m.Mode, m.Rows, len(m.Features))
	if len(tl.Events) == 0 {
		fmt.Fprintln(out, "  no recorded events")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tFEATURE\tDURATION")
	for _, r := range tl.Events {
		feature, duration := "", ""
		if p, ok := r.Event.Progress(); ok && p.Feature != "" {
			feature = p.Feature
			if p.Duration > 0 {
				duration = p.Duration.String()
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Event.Time().UTC().Format(time.RFC3339), r.Topic, feature, duration)
	}
	if tl.Replayed > 0 {
		fmt.Fprintf(w, "\treplayed %d events\t\t\n", tl.Replayed)
	}
	return w.Flush()
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the durable score caches",
	}

	clearCmd := &cobra.Command{
		Use:       "clear [table...]",
		Short:     "Drop cached scores so the next run recomputes them",
		ValidArgs: cache.Tables,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			tables := args
			if len(tables) == 0 {
				tables = cache.Tables
			}

			backend, err := cache.NewBackend(e.cfg.Cache)
			if err != nil {
				return fmt.Errorf("failed to open cache backend: %w", err)
			}
			defer func() { _ = backend.Close() }()

			if err := backend.Clear(cmd.Context(), tables...); err != nil {
				return err
			}
			e.log.Info("Cleared cache tables", "kind", e.cfg.Cache.Kind, "tables", tables)
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d %s cache tables\n", len(tables), e.cfg.Cache.Kind)
			return nil
		},
	}
	cmd.AddCommand(clearCmd)
	return cmd
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [nquads-file]",
		Short: "Import an N-Quads dump into the SQLite store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			src := e.cfg.Store.NQuads
			if len(args) == 1 {
				src = args[0]
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			db, err := kstore.OpenQuadDB(e.cfg.Store.SQLite)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.ImportNQuads(ctx, src)
			if err != nil {
				return err
			}
			e.log.Info("Imported quads", "source", src, "db", e.cfg.Store.SQLite, "quads", n)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d quads into %s\n", n, e.cfg.Store.SQLite)
			return nil
		},
	}
	return cmd
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the full-text label index from the knowledge store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.cfg.Search.IndexPath == "" {
				return fmt.Errorf("no index path configured (search.index_path)")
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			prefixes, err := e.prefixes()
			if err != nil {
				return err
			}
			store, err := e.openStore(ctx, prefixes)
			if err != nil {
				return err
			}

			idx, err := search.OpenLabelIndex(e.cfg.Search.IndexPath, e.log)
			if err != nil {
				return err
			}
			defer idx.Close()

			n, err := idx.Build(ctx, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d subjects into %s\n", n, e.cfg.Search.IndexPath)
			return nil
		},
	}
	return cmd
}
