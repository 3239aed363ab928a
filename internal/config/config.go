// Package config loads the exporter configuration: environment variables
// first, with an optional YAML file underneath for non-secret settings.
// The configuration is read once at startup and never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultEndpoint       = "https://s3.idrivee2.com"
	defaultRegion         = "default"
	defaultScrapeInterval = 300 * time.Second
	defaultMetricsPort    = 8000
	defaultHealthPort     = 8001
)

// Config holds the full exporter configuration.
type Config struct {
	// Endpoint is the store endpoint as configured, kept for display and
	// metric labels. EndpointHost and UseSSL are derived from it for the
	// store client.
	Endpoint     string
	EndpointHost string
	UseSSL       bool

	AccessKey string
	SecretKey string
	Region    string

	// Buckets is the ordered bucket list; blank entries are filtered out
	// at load time, duplicates are kept as configured.
	Buckets []string

	ScrapeInterval time.Duration
	// ScrapeSchedule is an optional cron expression; when set it replaces
	// the fixed interval.
	ScrapeSchedule string

	MetricsPort int
	HealthPort  int

	// DatabaseURL enables usage history persistence when set.
	DatabaseURL string
}

// fileConfig is the optional YAML file shape. Credentials are not
// file-configurable; they come from the environment only.
type fileConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Region         string   `yaml:"region"`
	Buckets        []string `yaml:"buckets"`
	ScrapeInterval int      `yaml:"scrape_interval"`
	ScrapeSchedule string   `yaml:"scrape_schedule"`
	MetricsPort    int      `yaml:"metrics_port"`
	HealthPort     int      `yaml:"health_port"`
}

// ResolvePath finds the optional config file path.
// Priority: EXPORTER_CONFIG env var > ./e2exporter.yaml > "" (no file).
func ResolvePath() string {
	if p := os.Getenv("EXPORTER_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("e2exporter.yaml"); err == nil {
		return "e2exporter.yaml"
	}
	return ""
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Endpoint:       defaultEndpoint,
		Region:         defaultRegion,
		ScrapeInterval: defaultScrapeInterval,
		MetricsPort:    defaultMetricsPort,
		HealthPort:     defaultHealthPort,
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	host, useSSL, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	cfg.EndpointHost = host
	cfg.UseSSL = useSSL

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Endpoint != "" {
		cfg.Endpoint = fc.Endpoint
	}
	if fc.Region != "" {
		cfg.Region = fc.Region
	}
	if len(fc.Buckets) > 0 {
		cfg.Buckets = filterBlank(fc.Buckets)
	}
	if fc.ScrapeInterval > 0 {
		cfg.ScrapeInterval = time.Duration(fc.ScrapeInterval) * time.Second
	}
	if fc.ScrapeSchedule != "" {
		cfg.ScrapeSchedule = fc.ScrapeSchedule
	}
	if fc.MetricsPort > 0 {
		cfg.MetricsPort = fc.MetricsPort
	}
	if fc.HealthPort > 0 {
		cfg.HealthPort = fc.HealthPort
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ENDPOINT_URL"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("ACCESS_KEY"); v != "" {
		cfg.AccessKey = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("REGION_NAME"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("BUCKETS"); v != "" {
		cfg.Buckets = filterBlank(strings.Split(v, ","))
	}
	if v := os.Getenv("SCRAPE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("SCRAPE_INTERVAL=%q: must be a positive integer (seconds)", v)
		}
		cfg.ScrapeInterval = time.Duration(n) * time.Second
	}
	if v := os.Getenv("SCRAPE_SCHEDULE"); v != "" {
		cfg.ScrapeSchedule = v
	}
	for _, p := range []struct {
		env  string
		port *int
	}{
		{"METRICS_PORT", &cfg.MetricsPort},
		{"HEALTH_PORT", &cfg.HealthPort},
	} {
		if v := os.Getenv(p.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("%s=%q: must be a valid port number", p.env, v)
			}
			*p.port = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	return nil
}

// filterBlank trims each name and drops empty entries, preserving order.
func filterBlank(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// splitEndpoint derives the host[:port] and SSL flag from the configured
// endpoint. A bare host without a scheme defaults to SSL.
func splitEndpoint(endpoint string) (host string, useSSL bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.Host, u.Scheme != "http", nil
}

func (c *Config) validate() error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("ACCESS_KEY and SECRET_KEY must be set")
	}
	if len(c.Buckets) == 0 {
		return errors.New("BUCKETS must list at least one bucket (comma-separated)")
	}
	if c.ScrapeInterval <= 0 {
		return errors.New("scrape interval must be positive")
	}
	if c.MetricsPort == c.HealthPort {
		return fmt.Errorf("metrics port and health port must differ (both %d)", c.MetricsPort)
	}
	return nil
}
