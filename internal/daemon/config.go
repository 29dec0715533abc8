// Package daemon manages the Pulse daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig           `toml:"api"`
	Storage   StorageConfig       `toml:"storage"`
	Challenge ChallengeConfig     `toml:"challenge"`
	Goals     map[string]int      `toml:"goals"`
	Mapping   domain.FieldMapping `toml:"mapping"`
	Cache     CacheConfig         `toml:"cache"`
	Health    HealthConfig        `toml:"health"`
	Logging   LoggingConfig       `toml:"logging"`
	Telemetry TelemetryConfig     `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig locates the database. Empty Dir means the Pulse home.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// ChallengeConfig describes the outreach challenge being tracked.
type ChallengeConfig struct {
	StartDate   string `toml:"start_date"` // YYYY-MM-DD; empty = first record
	WindowDays  int    `toml:"window_days"`
	GoalTotal   int    `toml:"goal_total"`
	TargetField string `toml:"target_field"`
}

// CacheConfig controls the snapshot cache.
type CacheConfig struct {
	TTL  string `toml:"ttl"` // "0s" disables caching
	Size int    `toml:"size"`
}

// HealthConfig controls the periodic health checks.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
	File   string `toml:"file"`   // empty = stderr
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a 30-day challenge with the daily goals the tracker
// has always shipped with.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7420,
		},
		Challenge: ChallengeConfig{
			WindowDays:  30,
			GoalTotal:   600,
			TargetField: string(domain.FieldConnectionsSent),
		},
		Goals: map[string]int{
			string(domain.FieldConnectionsSent):     20,
			string(domain.FieldMessagesSent):        50,
			string(domain.FieldInterestedResponses): 5,
			string(domain.FieldConversions):         1,
		},
		Mapping: domain.DefaultFieldMapping(),
		Cache: CacheConfig{
			TTL:  "60s",
			Size: 64,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Validate checks the configuration once, at load time.
func (c Config) Validate() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api.port %d out of range", domain.ErrInvalidConfig, c.API.Port)
	}
	if _, err := c.ReportChallenge(); err != nil {
		return err
	}
	if err := c.Mapping.Validate(); err != nil {
		return err
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if _, err := c.HealthInterval(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", domain.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ReportChallenge converts the [challenge] and [goals] sections.
func (c Config) ReportChallenge() (report.Challenge, error) {
	ch := report.Challenge{
		WindowDays: c.Challenge.WindowDays,
		GoalTotal:  c.Challenge.GoalTotal,
	}
	if ch.WindowDays <= 0 {
		return ch, fmt.Errorf("%w: challenge.window_days must be positive, got %d", domain.ErrInvalidConfig, ch.WindowDays)
	}
	if ch.GoalTotal < 0 {
		return ch, fmt.Errorf("%w: challenge.goal_total must not be negative, got %d", domain.ErrInvalidConfig, ch.GoalTotal)
	}

	f, err := domain.ParseField(c.Challenge.TargetField)
	if err != nil {
		return ch, fmt.Errorf("challenge.target_field: %w", err)
	}
	ch.TargetField = f

	if c.Challenge.StartDate != "" {
		start, err := time.Parse("2006-01-02", c.Challenge.StartDate)
		if err != nil {
			return ch, fmt.Errorf("%w: challenge.start_date %q is not YYYY-MM-DD", domain.ErrInvalidConfig, c.Challenge.StartDate)
		}
		ch.StartDate = start
	}

	if len(c.Goals) > 0 {
		ch.DailyGoals = make(map[domain.Field]int, len(c.Goals))
		for name, g := range c.Goals {
			f, err := domain.ParseField(name)
			if err != nil {
				return ch, fmt.Errorf("goals: %w", err)
			}
			if g < 0 {
				return ch, fmt.Errorf("%w: goals.%s must not be negative", domain.ErrInvalidConfig, name)
			}
			ch.DailyGoals[f] = g
		}
	}
	return ch, nil
}

// CacheTTL parses cache.ttl. Empty means the default of 60s.
func (c Config) CacheTTL() (time.Duration, error) {
	return parseDuration("cache.ttl", c.Cache.TTL, 60*time.Second)
}

// HealthInterval parses health.interval. Empty means 60s.
func (c Config) HealthInterval() (time.Duration, error) {
	return parseDuration("health.interval", c.Health.Interval, 60*time.Second)
}

// DataDir returns where the database lives.
func (c Config) DataDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return pulseHome()
}

// LoadConfig reads config from ~/.pulse/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path. A missing file yields the defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	// A [goals] section replaces the default goals instead of merging into them.
	defaultGoals := cfg.Goals
	cfg.Goals = nil
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parse config: %w", err)
	}
	if !md.IsDefined("goals") {
		cfg.Goals = defaultGoals
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.pulse/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(pulseHome(), "config.toml")
}

// pulseHome returns the Pulse data directory.
func pulseHome() string {
	if env := os.Getenv("PULSE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pulse")
}

// parseDuration parses a duration string, returning fallback when empty.
func parseDuration(key, s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", domain.ErrInvalidConfig, key, s, err)
	}
	return d, nil
}
