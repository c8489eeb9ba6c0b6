// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/cindralabs/riskcore/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Evaluator() EvaluatorConfig
	Scoring() ScoringConfig
	Sla() SlaConfig
	Notifier() NotifierConfig
	Metrics() MetricsConfig

	// Evaluator Setters
	SetEvaluatorTickInterval(d time.Duration)
	SetEvaluatorConcurrency(int)
	SetEvaluatorBatchSize(int)

	// Notifier Setter
	SetNotifierRatePerSecond(float64)
}

// Config holds the entire application configuration. Callers outside this
// package go through the Interface's getter methods; the exported fields
// exist so mapstructure can populate them.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	EvaluatorCfg EvaluatorConfig `mapstructure:"evaluator" yaml:"evaluator"`
	ScoringCfg   ScoringConfig   `mapstructure:"scoring" yaml:"scoring"`
	SlaCfg       SlaConfig       `mapstructure:"sla" yaml:"sla"`
	NotifierCfg  NotifierConfig  `mapstructure:"notifier" yaml:"notifier"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Evaluator() EvaluatorConfig { return c.EvaluatorCfg }
func (c *Config) Scoring() ScoringConfig     { return c.ScoringCfg }
func (c *Config) Sla() SlaConfig             { return c.SlaCfg }
func (c *Config) Notifier() NotifierConfig   { return c.NotifierCfg }
func (c *Config) Metrics() MetricsConfig     { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEvaluatorTickInterval(d time.Duration) { c.EvaluatorCfg.TickInterval = d }
func (c *Config) SetEvaluatorConcurrency(n int)            { c.EvaluatorCfg.Concurrency = n }
func (c *Config) SetEvaluatorBatchSize(n int)              { c.EvaluatorCfg.BatchSize = n }
func (c *Config) SetNotifierRatePerSecond(r float64)       { c.NotifierCfg.RatePerSecond = r }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EvaluatorConfig tunes the periodic evaluation loop.
type EvaluatorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
}

// ScoringConfig points at an optional YAML file of scoring profile overrides.
type ScoringConfig struct {
	ProfilesFile string `mapstructure:"profiles_file" yaml:"profiles_file"`
}

// SlaConfig defines the SLA policy: resolution hours per severity and the
// warning lookahead before a due date.
type SlaConfig struct {
	Hours                 map[string]int `mapstructure:"hours" yaml:"hours"`
	DefaultSeverity       string         `mapstructure:"default_severity" yaml:"default_severity"`
	WarningThresholdHours int            `mapstructure:"warning_threshold_hours" yaml:"warning_threshold_hours"`
}

// Policy converts the string-keyed file representation into the typed policy
// the SLA clock consumes.
func (s SlaConfig) Policy() schemas.SlaPolicy {
	hours := make(map[schemas.Severity]int, len(s.Hours))
	for k, v := range s.Hours {
		hours[schemas.ParseSeverity(k)] = v
	}
	return schemas.SlaPolicy{
		Hours:                 hours,
		DefaultSeverity:       schemas.ParseSeverity(s.DefaultSeverity),
		WarningThresholdHours: s.WarningThresholdHours,
	}
}

// NotifierConfig configures event delivery.
type NotifierConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "riskcore")
	v.SetDefault("logger.log_file", "riskcore.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Evaluator --
	v.SetDefault("evaluator.tick_interval", "1m")
	v.SetDefault("evaluator.concurrency", 4)
	v.SetDefault("evaluator.batch_size", 500)

	// -- SLA --
	v.SetDefault("sla.hours.critical", 24)
	v.SetDefault("sla.hours.high", 72)
	v.SetDefault("sla.hours.medium", 168)
	v.SetDefault("sla.hours.low", 720)
	v.SetDefault("sla.default_severity", "medium")
	v.SetDefault("sla.warning_threshold_hours", 12)

	// -- Notifier --
	v.SetDefault("notifier.rate_per_second", 0.0)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9151")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind the env var for the connection string so it never has to live in a
	// config file.
	v.BindEnv("database.url", "RISKCORE_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the URL if Unmarshal didn't pick it up.
	if cfg.DatabaseCfg.URL == "" {
		cfg.DatabaseCfg.URL = os.Getenv("RISKCORE_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EvaluatorCfg.Concurrency <= 0 {
		return fmt.Errorf("evaluator.concurrency must be a positive integer")
	}
	if c.EvaluatorCfg.BatchSize <= 0 {
		return fmt.Errorf("evaluator.batch_size must be a positive integer")
	}
	if c.EvaluatorCfg.TickInterval <= 0 {
		return fmt.Errorf("evaluator.tick_interval must be a positive duration")
	}
	if err := c.SlaCfg.Validate(); err != nil {
		return fmt.Errorf("sla configuration invalid: %w", err)
	}
	if c.NotifierCfg.RatePerSecond < 0 {
		return fmt.Errorf("notifier.rate_per_second must not be negative")
	}
	return nil
}

// Validate checks the SLA policy settings.
func (s *SlaConfig) Validate() error {
	for sev, hours := range s.Hours {
		if hours <= 0 {
			return fmt.Errorf("sla.hours.%s must be greater than 0", sev)
		}
	}
	if s.WarningThresholdHours < 0 {
		return fmt.Errorf("warning_threshold_hours must not be negative")
	}
	return nil
}
