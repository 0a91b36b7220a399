package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Analysis.GroundTruth != "actual" {
		t.Errorf("Expected default ground truth 'actual', got %s", cfg.Analysis.GroundTruth)
	}
	if cfg.Analysis.Metric != "planar_degrees" {
		t.Errorf("Expected default metric planar_degrees, got %s", cfg.Analysis.Metric)
	}
	if cfg.Analysis.Concurrency != 1 {
		t.Errorf("Expected default concurrency 1, got %d", cfg.Analysis.Concurrency)
	}

	// The default source list covers every supported format
	formats := map[string]bool{}
	for _, s := range cfg.Sources {
		formats[s.Format] = true
	}
	for _, f := range []string{"csv", "uwyo", "actual", "s3"} {
		if !formats[f] {
			t.Errorf("Expected a default source with format %s", f)
		}
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Enabled {
		t.Error("Expected database persistence to be disabled by default")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if !cfg.Report.CSV {
		t.Error("Expected CSV report enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile verifies defaults are returned for a missing file.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config, got nil")
	}
	if cfg.Server.Port != "8080" {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadValidConfig tests loading a valid configuration file.
func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	testConfig := map[string]any{
		"analysis": map[string]any{
			"ground_truth": "flight",
			"metric":       "haversine_nm",
			"concurrency":  4,
		},
		"sources": []map[string]any{
			{"name": "flight", "format": "actual", "path": "flight.txt", "enabled": true},
			{"name": "cusf", "label": "Cambridge", "format": "csv", "path": "cusf.csv", "enabled": true},
		},
		"database": map[string]any{
			"driver":   "postgres",
			"host":     "db.example.com",
			"port":     5433,
			"database": "testdb",
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Analysis.Metric != "haversine_nm" {
		t.Errorf("Expected haversine_nm, got %s", cfg.Analysis.Metric)
	}
	if cfg.Analysis.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Analysis.Concurrency)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("Expected the file's 2 sources to replace the defaults, got %d", len(cfg.Sources))
	}
	if cfg.Sources[1].DisplayName() != "Cambridge" {
		t.Errorf("Expected label Cambridge, got %s", cfg.Sources[1].DisplayName())
	}
	if cfg.Sources[0].DisplayName() != "flight" {
		t.Errorf("Expected name fallback 'flight', got %s", cfg.Sources[0].DisplayName())
	}
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Expected db.example.com, got %s", cfg.Database.Host)
	}
	// Sections omitted from the file keep their defaults
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default server port, got %s", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected loaded config to validate, got: %v", err)
	}
}

// TestLoadInvalidJSON tests error handling for malformed JSON.
func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	if err := os.WriteFile(configPath, []byte("{ invalid json }"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid JSON, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

// TestSaveConfigCreatesDirectory tests that Save creates missing directories.
func TestSaveConfigCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "dir", "config.json")

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config with nested directory: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

// TestEnvironmentOverrides tests environment variable overrides.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLIGHTPATH_PORT", "7777")
	t.Setenv("FLIGHTPATH_DB_PASSWORD", "env-password")
	t.Setenv("FLIGHTPATH_DB_PATH", "/var/lib/flightpath/runs.db")
	t.Setenv("FLIGHTPATH_OUTPUT_DIR", "/tmp/reports")
	t.Setenv("FLIGHTPATH_GROUND_TRUTH", "s3")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	testCfg := DefaultConfig()
	testCfg.Database.Password = "original-password"
	if err := testCfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "7777" {
		t.Errorf("Expected port 7777 from env, got %s", cfg.Server.Port)
	}
	if cfg.Database.Password != "env-password" {
		t.Errorf("Expected env-password from env, got %s", cfg.Database.Password)
	}
	if cfg.Database.Path != "/var/lib/flightpath/runs.db" {
		t.Errorf("Expected database path from env, got %s", cfg.Database.Path)
	}
	if cfg.Report.OutputDir != "/tmp/reports" {
		t.Errorf("Expected output dir from env, got %s", cfg.Report.OutputDir)
	}
	if cfg.Analysis.GroundTruth != "s3" {
		t.Errorf("Expected ground truth from env, got %s", cfg.Analysis.GroundTruth)
	}
}

// TestValidate covers the configuration mistakes Validate must catch.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown metric",
			mutate:  func(c *Config) { c.Analysis.Metric = "manhattan" },
			wantErr: "analysis.metric",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Analysis.Concurrency = -1 },
			wantErr: "concurrency",
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Sources[0].Format = "kml" },
			wantErr: "unknown source format",
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: "duplicate name",
		},
		{
			name:    "missing path",
			mutate:  func(c *Config) { c.Sources[0].Path = "" },
			wantErr: "path is required",
		},
		{
			name:    "ground truth not a source",
			mutate:  func(c *Config) { c.Analysis.GroundTruth = "radiosonde" },
			wantErr: "does not name a source",
		},
		{
			name: "ground truth disabled",
			mutate: func(c *Config) {
				c.Analysis.GroundTruth = "s3"
			},
			wantErr: "is disabled",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "database.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

// TestEnabledSources verifies order is preserved and disabled sources dropped.
func TestEnabledSources(t *testing.T) {
	cfg := DefaultConfig()

	enabled := cfg.EnabledSources()
	for _, s := range enabled {
		if s.Name == "s3" {
			t.Error("Disabled source s3 returned by EnabledSources")
		}
	}
	if len(enabled) != len(cfg.Sources)-1 {
		t.Errorf("Expected %d enabled sources, got %d", len(cfg.Sources)-1, len(enabled))
	}
	if enabled[0].Name != cfg.Sources[0].Name {
		t.Errorf("Expected configuration order, first is %s", enabled[0].Name)
	}

	if _, ok := cfg.Source("astra"); !ok {
		t.Error("Expected to find source astra")
	}
	if _, ok := cfg.Source("missing"); ok {
		t.Error("Found a source that does not exist")
	}
}

// TestConfigRoundTrip tests saving and loading config preserves data.
func TestConfigRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "roundtrip.json")

	original := DefaultConfig()
	original.Analysis.TrajectoriesToPrint = []string{"actual", "astra"}
	original.Report.XLSX = true
	original.Metrics.TextfilePath = "/var/lib/node_exporter/flightpath.prom"

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if len(loaded.Sources) != len(original.Sources) {
		t.Error("Sources not preserved in round trip")
	}
	if len(loaded.Analysis.TrajectoriesToPrint) != 2 {
		t.Error("Trajectories to print not preserved in round trip")
	}
	if !loaded.Report.XLSX {
		t.Error("XLSX setting not preserved in round trip")
	}
	if loaded.Metrics.TextfilePath != original.Metrics.TextfilePath {
		t.Error("Metrics textfile path not preserved in round trip")
	}
}
