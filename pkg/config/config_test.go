package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}

	// Upstream defaults
	if cfg.OpenSky.APIURL == "" {
		t.Error("Expected a default upstream API URL")
	}
	if cfg.OpenSky.TimeoutSeconds != 15 {
		t.Errorf("Expected 15s upstream timeout, got %d", cfg.OpenSky.TimeoutSeconds)
	}
	if cfg.OpenSky.HasCredentials() {
		t.Error("Expected no credentials by default")
	}

	// Records defaults
	if cfg.Records.MaxEntries != 1000 {
		t.Errorf("Expected record cache capacity 1000, got %d", cfg.Records.MaxEntries)
	}
	if cfg.Records.TTLMinutes != 60 {
		t.Errorf("Expected record TTL 60 minutes, got %d", cfg.Records.TTLMinutes)
	}

	// Region and cadence defaults
	if cfg.Region.RadiusMiles != 5.0 {
		t.Errorf("Expected default radius 5 miles, got %f", cfg.Region.RadiusMiles)
	}
	if cfg.RateLimit.SteadySeconds != 30 {
		t.Errorf("Expected steady cadence 30s, got %d", cfg.RateLimit.SteadySeconds)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns default config when file doesn't exist.
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

	content := `{
  "server": {"port": "9090", "host": "127.0.0.1"},
  "opensky": {"api_url": "https://test.api", "timeout_seconds": 5},
  "records": {"bucket": "test-aircraft-records"},
  "region": {"latitude": 35.5, "longitude": -80.8, "radius_miles": 10},
  "rate_limit": {"steady_seconds": 60}
}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.OpenSky.APIURL != "https://test.api" {
		t.Errorf("Expected https://test.api, got %s", cfg.OpenSky.APIURL)
	}
	if cfg.Records.Bucket != "test-aircraft-records" {
		t.Errorf("Expected test-aircraft-records, got %s", cfg.Records.Bucket)
	}
	if cfg.Region.Latitude != 35.5 {
		t.Errorf("Expected latitude 35.5, got %f", cfg.Region.Latitude)
	}
	if cfg.RateLimit.SteadySeconds != 60 {
		t.Errorf("Expected steady cadence 60s, got %d", cfg.RateLimit.SteadySeconds)
	}

	// Fields absent from the file keep their defaults.
	if cfg.Records.MaxEntries != 1000 {
		t.Errorf("Expected default cache capacity preserved, got %d", cfg.Records.MaxEntries)
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
		t.Error("Expected error for invalid JSON, got nil")
	}
	if err != nil && !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

// TestLoadRejectsInvalidValues tests that out-of-range settings fail validation.
func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"latitude out of range", `{"region": {"latitude": 91, "longitude": 0, "radius_miles": 5}}`},
		{"radius too large", `{"region": {"latitude": 33, "longitude": -112, "radius_miles": 150}}`},
		{"steady cadence too slow", `{"rate_limit": {"steady_seconds": 301}}`},
		{"negative timeout", `{"opensky": {"timeout_seconds": -1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "bad.json")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

// TestSaveConfig tests saving configuration to file.
func TestSaveConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved-config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = "9999"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Server.Port != "9999" {
		t.Errorf("Expected saved port 9999, got %s", loaded.Server.Port)
	}
}

// TestEnvironmentOverrides tests that credentials come from the environment.
func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKYFENCE_PORT", "7070")
	t.Setenv("SKYFENCE_OPENSKY_CLIENT_ID", "env-client")
	t.Setenv("SKYFENCE_OPENSKY_CLIENT_SECRET", "env-secret")
	t.Setenv("SKYFENCE_STEADY_SECONDS", "45")

	cfg, err := Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected env port 7070, got %s", cfg.Server.Port)
	}
	if !cfg.OpenSky.HasCredentials() {
		t.Error("Expected credentials from environment")
	}
	if cfg.OpenSky.ClientSecret != "env-secret" {
		t.Errorf("Expected env-secret, got %s", cfg.OpenSky.ClientSecret)
	}
	if cfg.RateLimit.SteadySeconds != 45 {
		t.Errorf("Expected steady cadence 45s from env, got %d", cfg.RateLimit.SteadySeconds)
	}
}
