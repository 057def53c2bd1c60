// Package config handles YAML configuration for Holvi, with environment
// variable overrides for deployment settings.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure. Everything a component needs
// is carried here and injected at construction; nothing reads the
// environment at call time.
type Config struct {
	AWS       AWSConfig       `yaml:"aws"`
	Authz     AuthzConfig     `yaml:"authz"`
	Notify    NotifyConfig    `yaml:"notify"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	OTEL      OTELConfig      `yaml:"otel"`
	Log       LogConfig       `yaml:"log"`

	// Environment partitions bucket names and records between deployments.
	Environment string `yaml:"environment" env:"HOLVI_ENVIRONMENT"`

	// LocalDir switches the record store to the embedded database under
	// this directory. Empty means DynamoDB.
	LocalDir string `yaml:"local_dir" env:"HOLVI_LOCAL_DIR"`
}

// AWSConfig holds AWS settings.
type AWSConfig struct {
	Region         string `yaml:"region" env:"HOLVI_REGION"`
	Table          string `yaml:"table" env:"HOLVI_TABLE"`
	CallTimeoutStr string `yaml:"call_timeout" env:"HOLVI_CALL_TIMEOUT"`
	CallTimeout    time.Duration
}

// AuthzConfig holds role resolution settings.
type AuthzConfig struct {
	HelperGroup    string   `yaml:"helper_group" env:"HOLVI_HELPER_GROUP"`
	AuthorityGroup string   `yaml:"authority_group" env:"HOLVI_AUTHORITY_GROUP"`
	AdminEmails    []string `yaml:"admin_emails" env:"HOLVI_ADMIN_EMAILS"`
}

// NotifyConfig holds notification channel settings. Empty values disable
// the corresponding channel.
type NotifyConfig struct {
	TopicARN string `yaml:"topic_arn" env:"HOLVI_TOPIC_ARN"`
	QueueURL string `yaml:"queue_url" env:"HOLVI_QUEUE_URL"`
}

// ReconcileConfig holds reconciliation loop settings.
type ReconcileConfig struct {
	IntervalStr string `yaml:"interval" env:"HOLVI_RECONCILE_INTERVAL"`
	Interval    time.Duration `yaml:"-"`
	MetricsPort int `yaml:"metrics_port" env:"HOLVI_METRICS_PORT"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"HOLVI_LOG_LEVEL"`
}

// Load reads the YAML config file (optional) and overlays environment
// variables on top.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.CallTimeoutStr == "" {
		cfg.AWS.CallTimeoutStr = "10s"
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	if cfg.Authz.HelperGroup == "" {
		cfg.Authz.HelperGroup = "business-admins"
	}
	if cfg.Authz.AuthorityGroup == "" {
		cfg.Authz.AuthorityGroup = "admins"
	}
	if cfg.Reconcile.IntervalStr == "" {
		cfg.Reconcile.IntervalStr = "5m"
	}
	if cfg.Reconcile.MetricsPort == 0 {
		cfg.Reconcile.MetricsPort = 2112
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "holvi"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	interval, err := time.ParseDuration(cfg.Reconcile.IntervalStr)
	if err != nil {
		return fmt.Errorf("parse reconcile interval %q: %w", cfg.Reconcile.IntervalStr, err)
	}
	cfg.Reconcile.Interval = interval

	timeout, err := time.ParseDuration(cfg.AWS.CallTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse call timeout %q: %w", cfg.AWS.CallTimeoutStr, err)
	}
	cfg.AWS.CallTimeout = timeout
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.LocalDir == "" && c.AWS.Table == "" {
		return fmt.Errorf("aws: table is required unless local_dir is set")
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile: interval must be positive")
	}
	if c.AWS.CallTimeout <= 0 {
		return fmt.Errorf("aws: call_timeout must be positive")
	}
	return nil
}
