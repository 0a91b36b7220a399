package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unklstewy/flightpath/pkg/sources"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// Config represents the complete application configuration.
// Configuration is loaded from a JSON file; secrets and a few paths can be
// overridden from the environment.
type Config struct {
	Analysis AnalysisConfig `json:"analysis"`
	Sources  []SourceConfig `json:"sources"`
	Database DatabaseConfig `json:"database"`
	Report   ReportConfig   `json:"report"`
	Metrics  MetricsConfig  `json:"metrics"`
	Server   ServerConfig   `json:"server"`
}

// AnalysisConfig controls how predictions are compared.
type AnalysisConfig struct {
	// GroundTruth is the name of the source every prediction is compared against
	GroundTruth string `json:"ground_truth"`

	// Metric is the distance metric: planar_degrees (default), haversine_nm, slant_range_m
	Metric string `json:"metric"`

	// Concurrency is the maximum number of comparisons run at once (default: 1)
	Concurrency int `json:"concurrency"`

	// Strict fails a comparison when any ground-truth sample lies outside
	// the prediction's time range instead of skipping that sample
	Strict bool `json:"strict"`

	// PrintTrajectories enables dumping normalized trajectories to the console
	PrintTrajectories bool `json:"print_trajectories"`

	// TrajectoriesToPrint limits the dump to the named sources (empty = all)
	TrajectoriesToPrint []string `json:"trajectories_to_print"`
}

// SourceConfig describes one trajectory file.
type SourceConfig struct {
	// Name identifies the source in reports and in AnalysisConfig.GroundTruth
	Name string `json:"name"`

	// Label is the human-readable name used in summary sentences (default: Name)
	Label string `json:"label,omitempty"`

	// Format is one of csv, uwyo, actual, s3
	Format string `json:"format"`

	// Path is the file to read
	Path string `json:"path"`

	// Enabled determines if this source is loaded
	Enabled bool `json:"enabled"`
}

// DisplayName returns Label, or Name when no label is set.
func (s SourceConfig) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled determines if analysis runs are persisted
	Enabled bool `json:"enabled"`

	// Driver is the database driver (sqlite, postgres)
	Driver string `json:"driver"`

	// Path is the SQLite database file
	Path string `json:"path"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// ReportConfig selects the report files written after a run.
type ReportConfig struct {
	// OutputDir is where report files are written
	OutputDir string `json:"output_dir"`

	CSV  bool `json:"csv"`
	XLSX bool `json:"xlsx"`
	PNG  bool `json:"png"`
	HTML bool `json:"html"`
}

// Any reports whether at least one report format is enabled.
func (r ReportConfig) Any() bool {
	return r.CSV || r.XLSX || r.PNG || r.HTML
}

// MetricsConfig contains Prometheus export settings.
type MetricsConfig struct {
	// TextfilePath is where batch runs write metrics for the node_exporter
	// textfile collector (empty = disabled)
	TextfilePath string `json:"textfile_path"`
}

// ServerConfig contains HTTP report server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// RequestsPerSecond is the sustained request rate allowed (default: 20)
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Burst is the number of requests allowed above the sustained rate
	Burst int `json:"burst"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so omitted sections keep sensible values.
	// The source list is replaced wholesale, never merged.
	cfg := DefaultConfig()
	cfg.Sources = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
// The source list mirrors the 2018 flight analysis: four Cambridge (CUSF)
// predictions, ASTRA, University of Wyoming, the recorded flight log and
// the tracker export, all under ./data.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			GroundTruth: "actual",
			Metric:      trajectory.PlanarDegrees.String(),
			Concurrency: 1,
		},
		Sources: []SourceConfig{
			{Name: "cambridge", Label: "Cambridge", Format: "csv", Path: "data/cambridge.csv", Enabled: true},
			{Name: "cambridge_1.2", Label: "Cambridge 1.2", Format: "csv", Path: "data/cambridge1.2.csv", Enabled: true},
			{Name: "cambridge_1.4", Label: "Cambridge 1.4", Format: "csv", Path: "data/cambridge1.4.csv", Enabled: true},
			{Name: "cambridge_2.25", Label: "Cambridge 2.25", Format: "csv", Path: "data/cambridge2.25.csv", Enabled: true},
			{Name: "astra", Label: "ASTRA", Format: "csv", Path: "data/astra.csv", Enabled: true},
			{Name: "uwyo", Label: "UWYO", Format: "uwyo", Path: "data/uwyo.txt", Enabled: true},
			{Name: "actual", Label: "Actual", Format: "actual", Path: "data/actual.txt", Enabled: true},
			{Name: "s3", Label: "S3 tracker", Format: "s3", Path: "data/s3.json", Enabled: false},
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "sqlite",
			Path:         "flightpath.db",
			Host:         "localhost",
			Port:         5432,
			Database:     "flightpath",
			Username:     "flightpath",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Report: ReportConfig{
			OutputDir: "reports",
			CSV:       true,
		},
		Server: ServerConfig{
			Port:              "8080",
			Host:              "0.0.0.0",
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Source returns the source with the given name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// EnabledSources returns the enabled sources in configuration order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the configuration for problems that would make an
// analysis run meaningless. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := trajectory.ParseMetric(c.Analysis.Metric); err != nil {
		errs = append(errs, fmt.Errorf("analysis.metric: %w", err))
	}
	if c.Analysis.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("analysis.concurrency must not be negative, got %d", c.Analysis.Concurrency))
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true

		if _, err := sources.ParseFormat(s.Format); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d] %s: %w", i, s.Name, err))
		}
		if s.Enabled && s.Path == "" {
			errs = append(errs, fmt.Errorf("sources[%d] %s: path is required", i, s.Name))
		}
	}

	gt, ok := c.Source(c.Analysis.GroundTruth)
	switch {
	case c.Analysis.GroundTruth == "":
		errs = append(errs, errors.New("analysis.ground_truth is required"))
	case !ok:
		errs = append(errs, fmt.Errorf("analysis.ground_truth %q does not name a source", c.Analysis.GroundTruth))
	case !gt.Enabled:
		errs = append(errs, fmt.Errorf("analysis.ground_truth %q is disabled", c.Analysis.GroundTruth))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("FLIGHTPATH_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("FLIGHTPATH_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if dbPath := os.Getenv("FLIGHTPATH_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if outDir := os.Getenv("FLIGHTPATH_OUTPUT_DIR"); outDir != "" {
		c.Report.OutputDir = outDir
	}
	if gt := os.Getenv("FLIGHTPATH_GROUND_TRUTH"); gt != "" {
		c.Analysis.GroundTruth = gt
	}
}
