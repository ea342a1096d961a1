package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/unklstewy/skyfence/pkg/geo"
	"github.com/unklstewy/skyfence/pkg/opensky"
	"github.com/unklstewy/skyfence/pkg/ratelimit"
)

// Config represents the complete application configuration.
// Configuration is loaded from a JSON file with environment overrides.
type Config struct {
	Server    ServerConfig    `json:"server"`
	OpenSky   OpenSkyConfig   `json:"opensky"`
	Records   RecordsConfig   `json:"records"`
	Region    RegionConfig    `json:"region"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`
}

// OpenSkyConfig contains upstream flight feed settings.
type OpenSkyConfig struct {
	// APIURL is the REST API base URL
	APIURL string `json:"api_url"`

	// TokenURL is the OAuth2 token endpoint
	TokenURL string `json:"token_url"`

	// ClientID for the client credentials grant.
	// Should normally be left empty here and provided via SKYFENCE_OPENSKY_CLIENT_ID.
	ClientID string `json:"client_id"`

	// ClientSecret for the client credentials grant (load from environment)
	ClientSecret string `json:"client_secret"`

	// TimeoutSeconds is the HTTP timeout for upstream calls
	TimeoutSeconds int `json:"timeout_seconds"`
}

// RecordsConfig contains aircraft registry lookup settings.
type RecordsConfig struct {
	// Bucket is the object storage bucket holding aircraft records.
	// Empty disables registry enrichment.
	Bucket string `json:"bucket"`

	// MaxEntries is the record cache capacity
	MaxEntries int `json:"max_entries"`

	// TTLMinutes is how long a cached record stays valid
	TTLMinutes int `json:"ttl_minutes"`
}

// RegionConfig is the alert region active at startup. It can be changed at
// runtime through the API; changes are not persisted back to the file.
type RegionConfig struct {
	// Latitude of the region center in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude of the region center in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// RadiusMiles must be > 0 and <= 100
	RadiusMiles float64 `json:"radius_miles"`
}

// RateLimitConfig controls the upstream polling cadence.
type RateLimitConfig struct {
	// SteadySeconds is the minimum interval between steady-state upstream
	// calls (1 to 300). The pan/zoom cadence is fixed and not configurable.
	SteadySeconds int `json:"steady_seconds"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
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
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		OpenSky: OpenSkyConfig{
			APIURL:         opensky.DefaultAPIURL,
			TokenURL:       opensky.DefaultTokenURL,
			TimeoutSeconds: 15,
		},
		Records: RecordsConfig{
			MaxEntries: 1000,
			TTLMinutes: 60,
		},
		Region: RegionConfig{
			// Phoenix Sky Harbor area
			Latitude:    33.4484,
			Longitude:   -112.0740,
			RadiusMiles: 5.0,
		},
		RateLimit: RateLimitConfig{
			SteadySeconds: 30,
		},
	}
}

// Validate checks the loaded configuration for values the server cannot
// start with.
func (c *Config) Validate() error {
	if !geo.ValidRegion(c.Region.GeoRegion()) {
		return fmt.Errorf("invalid region: lat=%f lon=%f radius=%f",
			c.Region.Latitude, c.Region.Longitude, c.Region.RadiusMiles)
	}
	if c.RateLimit.SteadySeconds < ratelimit.MinSteadySeconds ||
		c.RateLimit.SteadySeconds > ratelimit.MaxSteadySeconds {
		return fmt.Errorf("steady_seconds must be between %d and %d, got %d",
			ratelimit.MinSteadySeconds, ratelimit.MaxSteadySeconds, c.RateLimit.SteadySeconds)
	}
	if c.OpenSky.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.OpenSky.TimeoutSeconds)
	}
	return nil
}

// GeoRegion converts the startup region settings into a geofence region.
func (r RegionConfig) GeoRegion() geo.Region {
	return geo.Region{
		Center:      geo.Point{Lat: r.Latitude, Lon: r.Longitude},
		RadiusMiles: r.RadiusMiles,
	}
}

// HasCredentials reports whether upstream credentials are configured. When
// they are not, the server falls back to synthetic traffic.
func (o OpenSkyConfig) HasCredentials() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// applyEnvironmentOverrides applies environment variable overrides to the
// config. This keeps credentials out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("SKYFENCE_PORT"); port != "" {
		c.Server.Port = port
	}
	if host := os.Getenv("SKYFENCE_HOST"); host != "" {
		c.Server.Host = host
	}
	if clientID := os.Getenv("SKYFENCE_OPENSKY_CLIENT_ID"); clientID != "" {
		c.OpenSky.ClientID = clientID
	}
	if clientSecret := os.Getenv("SKYFENCE_OPENSKY_CLIENT_SECRET"); clientSecret != "" {
		c.OpenSky.ClientSecret = clientSecret
	}
	if apiURL := os.Getenv("SKYFENCE_OPENSKY_API_URL"); apiURL != "" {
		c.OpenSky.APIURL = apiURL
	}
	if tokenURL := os.Getenv("SKYFENCE_OPENSKY_TOKEN_URL"); tokenURL != "" {
		c.OpenSky.TokenURL = tokenURL
	}
	if bucket := os.Getenv("SKYFENCE_RECORDS_BUCKET"); bucket != "" {
		c.Records.Bucket = bucket
	}
	if steady := os.Getenv("SKYFENCE_STEADY_SECONDS"); steady != "" {
		if v, err := strconv.Atoi(steady); err == nil {
			c.RateLimit.SteadySeconds = v
		}
	}
}
