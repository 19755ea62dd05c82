package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MiningConfig represents the mining core configuration
type MiningConfig struct {
	// Bucket selects the time partition: day, hour or none
	Bucket string `yaml:"bucket"`

	// RelativeCutoff drops edges whose share of transitions is not above it, in [0, 1)
	RelativeCutoff float64 `yaml:"relative_cutoff"`

	// SignificanceCutoff drops edges whose confidence is not above it, in [-1, 1)
	SignificanceCutoff float64 `yaml:"significance_cutoff"`

	// AllowCaseIDReuse treats a case id reappearing after its case ended as a new case
	AllowCaseIDReuse bool `yaml:"allow_case_id_reuse"`

	// CheckOrdering enables detection of interleaved cases and unordered positions
	CheckOrdering bool `yaml:"check_ordering"`

	// Alphabet lists the accepted event categories (empty = any 3-character code)
	Alphabet []string `yaml:"alphabet"`
}

// StoreConfig represents the mining store configuration
type StoreConfig struct {
	// Enabled records every mined bucket in the SQLite store
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the store database
	DBPath string `yaml:"db_path"`
}

// ParserConfig represents raw trace parsing configuration
type ParserConfig struct {
	// BlockPadding multiplies block numbers to build the position key
	BlockPadding int64 `yaml:"block_padding"`
}

// Config represents chainminer configuration options
type Config struct {
	// MaxConcurrency is the maximum number of buckets mined in parallel (0 = unlimited)
	MaxConcurrency int `yaml:"max_concurrency"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// OutputDir is the directory where exported tables are written
	OutputDir string `yaml:"output_dir"`

	// Formats lists the export formats (csv, json, markdown, html)
	Formats []string `yaml:"formats"`

	// Mining contains mining core configuration
	Mining MiningConfig `yaml:"mining"`

	// Store contains mining store configuration
	Store StoreConfig `yaml:"store"`

	// Parser contains raw trace parsing configuration
	Parser ParserConfig `yaml:"parser"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 0, // Unlimited
		LogLevel:       "info",
		LogDir:         ".chainminer/logs",
		OutputDir:      "out",
		Formats:        []string{"csv"},
		Mining: MiningConfig{
			Bucket:             "day",
			RelativeCutoff:     0.01,
			SignificanceCutoff: 0.5,
			AllowCaseIDReuse:   false,
			CheckOrdering:      true,
			Alphabet:           []string{"CtC", "CtU", "UtC", "UtU"},
		},
		Store: StoreConfig{
			Enabled: true,
			DBPath:  filepath.Join(".chainminer", "store", "mining.db"),
		},
		Parser: ParserConfig{
			BlockPadding: 1_000_000_000,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero top-level values from file (merging with defaults)
	if fileCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = fileCfg.MaxConcurrency
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogDir != "" {
		cfg.LogDir = fileCfg.LogDir
	}
	if fileCfg.OutputDir != "" {
		cfg.OutputDir = fileCfg.OutputDir
	}
	if len(fileCfg.Formats) > 0 {
		cfg.Formats = fileCfg.Formats
	}

	// Nested sections: zero values are legitimate (cutoff 0, enabled false),
	// so merge only the keys actually present in the file
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if section, ok := rawMap["mining"].(map[string]interface{}); ok {
		m := fileCfg.Mining
		if _, exists := section["bucket"]; exists {
			cfg.Mining.Bucket = m.Bucket
		}
		if _, exists := section["relative_cutoff"]; exists {
			cfg.Mining.RelativeCutoff = m.RelativeCutoff
		}
		if _, exists := section["significance_cutoff"]; exists {
			cfg.Mining.SignificanceCutoff = m.SignificanceCutoff
		}
		if _, exists := section["allow_case_id_reuse"]; exists {
			cfg.Mining.AllowCaseIDReuse = m.AllowCaseIDReuse
		}
		if _, exists := section["check_ordering"]; exists {
			cfg.Mining.CheckOrdering = m.CheckOrdering
		}
		if _, exists := section["alphabet"]; exists {
			cfg.Mining.Alphabet = m.Alphabet
		}
	}

	if section, ok := rawMap["store"].(map[string]interface{}); ok {
		if _, exists := section["enabled"]; exists {
			cfg.Store.Enabled = fileCfg.Store.Enabled
		}
		if _, exists := section["db_path"]; exists {
			cfg.Store.DBPath = fileCfg.Store.DBPath
		}
	}

	if section, ok := rawMap["parser"].(map[string]interface{}); ok {
		if _, exists := section["block_padding"]; exists {
			cfg.Parser.BlockPadding = fileCfg.Parser.BlockPadding
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .chainminer/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".chainminer", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(maxConcurrency *int, bucket *string, relativeCutoff, significanceCutoff *float64, outputDir *string, formats []string, storeEnabled *bool, allowCaseIDReuse *bool) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if bucket != nil {
		c.Mining.Bucket = *bucket
	}
	if relativeCutoff != nil {
		c.Mining.RelativeCutoff = *relativeCutoff
	}
	if significanceCutoff != nil {
		c.Mining.SignificanceCutoff = *significanceCutoff
	}
	if outputDir != nil {
		c.OutputDir = *outputDir
	}
	if len(formats) > 0 {
		c.Formats = formats
	}
	if storeEnabled != nil {
		c.Store.Enabled = *storeEnabled
	}
	if allowCaseIDReuse != nil {
		c.Mining.AllowCaseIDReuse = *allowCaseIDReuse
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	validFormats := map[string]bool{"csv": true, "json": true, "markdown": true, "md": true, "html": true}
	for _, f := range c.Formats {
		if !validFormats[strings.ToLower(f)] {
			return fmt.Errorf("invalid format %q, must be one of: csv, json, markdown, html", f)
		}
	}

	switch c.Mining.Bucket {
	case "day", "hour", "none":
	default:
		return fmt.Errorf("invalid mining.bucket %q, must be one of: day, hour, none", c.Mining.Bucket)
	}

	rc := c.Mining.RelativeCutoff
	if math.IsNaN(rc) || rc < 0 || rc >= 1 {
		return fmt.Errorf("mining.relative_cutoff must be in [0, 1), got %v", rc)
	}
	sc := c.Mining.SignificanceCutoff
	if math.IsNaN(sc) || sc < -1 || sc >= 1 {
		return fmt.Errorf("mining.significance_cutoff must be in [-1, 1), got %v", sc)
	}

	for _, code := range c.Mining.Alphabet {
		if len(code) != 3 {
			return fmt.Errorf("mining.alphabet code %q must be 3 characters", code)
		}
		if code == "sta" || code == "end" {
			return fmt.Errorf("mining.alphabet code %q is reserved", code)
		}
	}

	if c.Store.Enabled && c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path cannot be empty when store is enabled")
	}

	if c.Parser.BlockPadding <= 0 {
		return fmt.Errorf("parser.block_padding must be > 0, got %d", c.Parser.BlockPadding)
	}

	return nil
}
