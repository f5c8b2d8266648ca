// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Knowledge store configuration
	Store StoreConfig `yaml:"store"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// LOV search API configuration
	LOV LOVConfig `yaml:"lov"`

	// Extraction run configuration
	Extraction ExtractionConfig `yaml:"extraction"`

	// Label search configuration
	Search SearchConfig `yaml:"search"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// StoreConfig selects and locates the knowledge store.
type StoreConfig struct {
	Kind      string `envconfig:"LOVRANK_STORE_KIND" yaml:"kind"`
	NQuads    string `envconfig:"LOVRANK_STORE_NQUADS" yaml:"nquads"`
	SQLite    string `envconfig:"LOVRANK_STORE_SQLITE" yaml:"sqlite"`
	Prefixes  string `envconfig:"LOVRANK_STORE_PREFIXES" yaml:"prefixes"`
	MatchMode string `envconfig:"LOVRANK_STORE_MATCH_MODE" yaml:"match_mode"`
}

// CacheConfig holds durable cache settings.
type CacheConfig struct {
	Kind     string `envconfig:"LOVRANK_CACHE_KIND" yaml:"kind"`
	Dir      string `envconfig:"LOVRANK_CACHE_DIR" yaml:"dir"`
	RedisURL string `envconfig:"LOVRANK_REDIS_URL" yaml:"redis_url"`
}

// LOVConfig holds LOV search API settings.
type LOVConfig struct {
	TermURL     string        `envconfig:"LOVRANK_LOV_TERM_URL" yaml:"term_url"`
	VocabURL    string        `envconfig:"LOVRANK_LOV_VOCAB_URL" yaml:"vocab_url"`
	TermDelay   time.Duration `envconfig:"LOVRANK_LOV_TERM_DELAY" yaml:"term_delay"`
	VocabDelay  time.Duration `envconfig:"LOVRANK_LOV_VOCAB_DELAY" yaml:"vocab_delay"`
	ResponseDir string        `envconfig:"LOVRANK_LOV_RESPONSE_DIR" yaml:"response_dir"`
	Timeout     time.Duration `envconfig:"LOVRANK_LOV_TIMEOUT" yaml:"timeout"`
}

// ExtractionConfig holds settings for one extraction run.
type ExtractionConfig struct {
	Mode        string   `envconfig:"LOVRANK_MODE" yaml:"mode"`
	GroundTruth string   `envconfig:"LOVRANK_GROUND_TRUTH" yaml:"ground_truth"`
	OutputDir   string   `envconfig:"LOVRANK_OUTPUT_DIR" yaml:"output_dir"`
	Features    []string `envconfig:"LOVRANK_FEATURES" yaml:"features"`
	Limit       int      `envconfig:"LOVRANK_LIMIT" yaml:"limit"` // 0 = all rows
	Where       string   `envconfig:"LOVRANK_WHERE" yaml:"where"`
	Workers     int      `envconfig:"LOVRANK_WORKERS" yaml:"workers"`
}

// SearchConfig holds label index settings.
type SearchConfig struct {
	IndexPath string `envconfig:"LOVRANK_INDEX_PATH" yaml:"index_path"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"LOVRANK_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"LOVRANK_KAFKA_BROKERS" yaml:"kafka_brokers"`
	EventLog     string `envconfig:"LOVRANK_EVENT_LOG" yaml:"event_log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOVRANK_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"LOVRANK_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Store = StoreConfig{
		Kind:      "memory",
		NQuads:    "./data/lov.nq",
		SQLite:    "./data/lov.db",
		Prefixes:  "./data/prefixes.json",
		MatchMode: "lov",
	}

	cfg.Cache = CacheConfig{
		Kind:     "csv",
		Dir:      "./cache",
		RedisURL: "redis://localhost:6379",
	}

	cfg.LOV = LOVConfig{
		TermURL:     "https://lov.linkeddata.es/dataset/lov/api/v2/term/searchScoreExplain?",
		VocabURL:    "https://lov.linkeddata.es/dataset/lov/api/v2/vocabulary/search?",
		TermDelay:   12 * time.Second,
		VocabDelay:  6 * time.Second,
		ResponseDir: "./lov-responses",
		Timeout:     30 * time.Second,
	}

	cfg.Extraction = ExtractionConfig{
		Mode:      "term",
		OutputDir: "./output",
		Workers:   4,
	}

	cfg.Search = SearchConfig{
		IndexPath: "./data/labels.bleve",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	validStores := map[string]bool{"memory": true, "sqlite": true}
	if !validStores[c.Store.Kind] {
		errs = append(errs, fmt.Sprintf("invalid store kind: %s (must be memory or sqlite)", c.Store.Kind))
	}

	validModes := map[string]bool{"aktiverank": true, "dwrank": true, "lov": true}
	if !validModes[c.Store.MatchMode] {
		errs = append(errs, fmt.Sprintf("invalid match mode: %s (must be aktiverank, dwrank, or lov)", c.Store.MatchMode))
	}

	validCaches := map[string]bool{"csv": true, "redis": true, "memory": true}
	if !validCaches[c.Cache.Kind] {
		errs = append(errs, fmt.Sprintf("invalid cache kind: %s (must be csv, redis, or memory)", c.Cache.Kind))
	}

	if c.Cache.Kind == "csv" && c.Cache.Dir == "" {
		errs = append(errs, "cache dir is required for csv cache")
	}

	if c.LOV.TermDelay < 0 || c.LOV.VocabDelay < 0 {
		errs = append(errs, "lov delays must not be negative")
	}

	validRunModes := map[string]bool{"term": true, "ontology": true}
	if !validRunModes[c.Extraction.Mode] {
		errs = append(errs, fmt.Sprintf("invalid extraction mode: %s (must be term or ontology)", c.Extraction.Mode))
	}

	if c.Extraction.Limit < 0 {
		errs = append(errs, "limit must not be negative")
	}

	if c.Extraction.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers is required for kafka bus")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running with debug logging.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
