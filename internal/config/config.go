// ABOUTME: Configuration loading and parsing for cin-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete cin-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Generator GeneratorConfig `yaml:"generator"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Harvester HarvesterConfig `yaml:"harvester"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig holds the ingestion endpoint's shared secret
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// GeneratorConfig holds the content generation model configuration
type GeneratorConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// VerifierConfig holds the optional post-moderation verification stage
type VerifierConfig struct {
	Enabled bool `yaml:"enabled"`

	// Model overrides the generator model for verification calls.
	Model string `yaml:"model"`
}

// CleanupConfig holds the stale-post sweep configuration
type CleanupConfig struct {
	Interval time.Duration `yaml:"-"`
	MaxAge   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	IntervalRaw string `yaml:"interval"`
	MaxAgeRaw   string `yaml:"max_age"`
}

// Feed binds one RSS/Atom feed URL to a content domain
type Feed struct {
	URL    string `yaml:"url"`
	Domain string `yaml:"domain"`
}

// HarvesterConfig holds the RSS harvester configuration
type HarvesterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Feeds    []Feed `yaml:"feeds"`

	CycleInterval  time.Duration `yaml:"-"`
	MaxItemAge     time.Duration `yaml:"-"`
	BusyWait       time.Duration `yaml:"-"`
	SubmitInterval time.Duration `yaml:"-"`

	BusyMaxTries uint `yaml:"busy_max_tries"`

	// Raw string values for YAML unmarshaling
	CycleIntervalRaw  string `yaml:"cycle_interval"`
	MaxItemAgeRaw     string `yaml:"max_item_age"`
	BusyWaitRaw       string `yaml:"busy_wait"`
	SubmitIntervalRaw string `yaml:"submit_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible standard settings.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = 5 * time.Minute
	}
	if c.Cleanup.Interval == 0 {
		c.Cleanup.Interval = time.Hour
	}
	if c.Cleanup.MaxAge == 0 {
		c.Cleanup.MaxAge = time.Hour
	}
	if c.Harvester.CycleInterval == 0 {
		c.Harvester.CycleInterval = 10 * time.Minute
	}
	if c.Harvester.MaxItemAge == 0 {
		c.Harvester.MaxItemAge = 24 * time.Hour
	}
	if c.Harvester.BusyWait == 0 {
		c.Harvester.BusyWait = 30 * time.Second
	}
	if c.Harvester.SubmitInterval == 0 {
		c.Harvester.SubmitInterval = time.Second
	}
	if c.Harvester.BusyMaxTries == 0 {
		c.Harvester.BusyMaxTries = 10
	}
	if c.Harvester.Token == "" {
		c.Harvester.Token = c.Webhook.Secret
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	if c.Generator.Model == "" {
		return fmt.Errorf("generator.model is required")
	}

	if c.Harvester.Enabled {
		if len(c.Harvester.Feeds) == 0 {
			return fmt.Errorf("harvester.feeds is required when harvester is enabled")
		}
		for i, feed := range c.Harvester.Feeds {
			if feed.URL == "" {
				return fmt.Errorf("harvester.feeds[%d].url is required", i)
			}
			if feed.Domain == "" {
				return fmt.Errorf("harvester.feeds[%d].domain is required", i)
			}
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Generator.TimeoutRaw, &cfg.Generator.Timeout, "generator.timeout"},
		{cfg.Cleanup.IntervalRaw, &cfg.Cleanup.Interval, "cleanup.interval"},
		{cfg.Cleanup.MaxAgeRaw, &cfg.Cleanup.MaxAge, "cleanup.max_age"},
		{cfg.Harvester.CycleIntervalRaw, &cfg.Harvester.CycleInterval, "harvester.cycle_interval"},
		{cfg.Harvester.MaxItemAgeRaw, &cfg.Harvester.MaxItemAge, "harvester.max_item_age"},
		{cfg.Harvester.BusyWaitRaw, &cfg.Harvester.BusyWait, "harvester.busy_wait"},
		{cfg.Harvester.SubmitIntervalRaw, &cfg.Harvester.SubmitInterval, "harvester.submit_interval"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
