package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOVRANK_MODE", "ontology")
	t.Setenv("LOVRANK_LOG_LEVEL", "debug")
	t.Setenv("LOVRANK_FEATURES", "TF_O,BM25_O")
	t.Setenv("LOVRANK_LOV_TERM_DELAY", "1s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Extraction.Mode != "ontology" {
		t.Errorf("Extraction.Mode = %s, want ontology", cfg.Extraction.Mode)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if len(cfg.Extraction.Features) != 2 || cfg.Extraction.Features[1] != "BM25_O" {
		t.Errorf("Extraction.Features = %v, want [TF_O BM25_O]", cfg.Extraction.Features)
	}
	if cfg.LOV.TermDelay != time.Second {
		t.Errorf("LOV.TermDelay = %v, want 1s", cfg.LOV.TermDelay)
	}
	if cfg.LOV.VocabDelay != 6*time.Second {
		t.Errorf("LOV.VocabDelay = %v, want default 6s", cfg.LOV.VocabDelay)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
store:
  kind: sqlite
  sqlite: /data/lov.db
  match_mode: dwrank
cache:
  kind: redis
  redis_url: redis://cache:6379/2
extraction:
  mode: ontology
  ground_truth: /data/gt.csv
  features: [PageRank_OwlImports_O, TF_O]
  limit: 50
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Kind != "sqlite" {
		t.Errorf("Store.Kind = %s, want sqlite", cfg.Store.Kind)
	}
	if cfg.Store.MatchMode != "dwrank" {
		t.Errorf("Store.MatchMode = %s, want dwrank", cfg.Store.MatchMode)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/2" {
		t.Errorf("Cache.RedisURL = %s", cfg.Cache.RedisURL)
	}
	if cfg.Extraction.Limit != 50 {
		t.Errorf("Extraction.Limit = %d, want 50", cfg.Extraction.Limit)
	}
	if len(cfg.Extraction.Features) != 2 {
		t.Errorf("Extraction.Features = %v", cfg.Extraction.Features)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}

	// defaults survive for keys the file leaves out
	if cfg.Extraction.Workers != 4 {
		t.Errorf("Extraction.Workers = %d, want default 4", cfg.Extraction.Workers)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("log:\n  level: warn\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("LOVRANK_LOG_LEVEL", "error")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %s, want error", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid store kind",
			modify: func(c *Config) {
				c.Store.Kind = "stardog"
			},
			wantErr: true,
		},
		{
			name: "invalid match mode",
			modify: func(c *Config) {
				c.Store.MatchMode = "fuzzy"
			},
			wantErr: true,
		},
		{
			name: "csv cache without dir",
			modify: func(c *Config) {
				c.Cache.Dir = ""
			},
			wantErr: true,
		},
		{
			name: "redis cache without dir",
			modify: func(c *Config) {
				c.Cache.Kind = "redis"
				c.Cache.Dir = ""
			},
			wantErr: false,
		},
		{
			name: "invalid extraction mode",
			modify: func(c *Config) {
				c.Extraction.Mode = "both"
			},
			wantErr: true,
		},
		{
			name: "negative limit",
			modify: func(c *Config) {
				c.Extraction.Limit = -1
			},
			wantErr: true,
		},
		{
			name: "negative delay",
			modify: func(c *Config) {
				c.LOV.TermDelay = -time.Second
			},
			wantErr: true,
		},
		{
			name: "kafka without brokers",
			modify: func(c *Config) {
				c.Bus.Type = "kafka"
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidation_CollectsAll(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Store.Kind = "x"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	if !strings.Contains(err.Error(), "store kind") || !strings.Contains(err.Error(), "log format") {
		t.Errorf("Validate() should report every violation, got: %v", err)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}
	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() should be true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() should be false for info level")
	}
}
