// Package main provides the lovrank binary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lovbench/lovrank/internal/config"
	"github.com/lovbench/lovrank/internal/kstore"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lovrank",
		Short: "lovrank - learning-to-rank features for the LOV collection",
		Long: `lovrank computes ranking features for term and ontology search over the
Linked Open Vocabularies collection and joins them against a ground truth.

Run 'lovrank extract' to write a feature matrix.
Run 'lovrank --help' for available commands.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		extractCmd(),
		featuresCmd(),
		evaluateCmd(),
		inspectCmd(),
		cacheCmd(),
		loadCmd(),
		indexCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lovrank %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// env bundles what every command loads before doing work.
type env struct {
	cfg    *config.Config
	log    *logger.Logger
	format string
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid format %q (must be text or json)", format)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.IsDevelopment() {
		log.Debug("Loaded config", "path", configPath, "store", cfg.Store.Kind, "cache", cfg.Cache.Kind, "bus", cfg.Bus.Type)
	}
	return &env{cfg: cfg, log: log, format: format}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (e *env) prefixes() (*model.Prefixes, error) {
	p, err := model.LoadPrefixes(e.cfg.Store.Prefixes)
	if err != nil {
		return nil, fmt.Errorf("failed to load prefixes: %w", err)
	}
	e.log.Debug("Loaded prefixes", "path", e.cfg.Store.Prefixes, "count", p.Len())
	return p, nil
}

func (e *env) openStore(ctx context.Context, p *model.Prefixes) (*kstore.Memory, error) {
	mode, err := kstore.ParseMatchMode(e.cfg.Store.MatchMode)
	if err != nil {
		return nil, err
	}
	store, err := kstore.Open(ctx, p, kstore.Options{
		Kind:      e.cfg.Store.Kind,
		NQuads:    e.cfg.Store.NQuads,
		SQLite:    e.cfg.Store.SQLite,
		MatchMode: mode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	e.log.Info("Opened knowledge store", "kind", e.cfg.Store.Kind, "quads", store.Len(), "match_mode", mode)
	return store, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
