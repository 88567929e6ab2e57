package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog" json:"catalog"`
	Matching MatchingConfig `toml:"matching" json:"matching"`
	Cache    CacheConfig    `toml:"cache" json:"cache"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// CatalogConfig contains destination catalog connection settings.
type CatalogConfig struct {
	URL            string  `toml:"url" json:"url" validate:"required,url"`
	Token          string  `toml:"token" json:"token"`
	AuthHeader     string  `toml:"auth_header" json:"auth_header"`
	RateLimit      float64 `toml:"rate_limit" json:"rate_limit" validate:"gte=0"`
	Burst          int     `toml:"burst" json:"burst" validate:"gte=0"`
	TimeoutSeconds int     `toml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// MatchingConfig toggles cascade stages and tunes thresholds.
type MatchingConfig struct {
	EnableISRC     bool    `toml:"enable_isrc" json:"enable_isrc"`
	EnableStrict   bool    `toml:"enable_strict" json:"enable_strict"`
	EnableFuzzy    bool    `toml:"enable_fuzzy" json:"enable_fuzzy"`
	FuzzyThreshold float64 `toml:"fuzzy_threshold" json:"fuzzy_threshold" validate:"gte=0,lte=1"`
	StrictResults  int     `toml:"strict_results" json:"strict_results" validate:"gte=1,lte=500"`
	FuzzyResults   int     `toml:"fuzzy_results" json:"fuzzy_results" validate:"gte=1,lte=500"`
	Concurrency    int     `toml:"concurrency" json:"concurrency" validate:"gte=1,lte=64"`
}

// CacheConfig selects and configures the export cache backend.
type CacheConfig struct {
	Driver       string `toml:"driver" json:"driver" validate:"oneof=sqlite badger redis memory"`
	Path         string `toml:"path" json:"path" validate:"required_if=Driver sqlite,required_if=Driver badger"`
	RedisAddr    string `toml:"redis_addr" json:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB      int    `toml:"redis_db" json:"redis_db" validate:"gte=0"`
	MaxAgeDays   int    `toml:"max_age_days" json:"max_age_days" validate:"gte=1"`
	MaxOpenConns int    `toml:"max_open_conns" json:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" json:"max_idle_conns" validate:"gte=0"`
	LockPath     string `toml:"lock_path" json:"lock_path"`
}

// LogConfig controls the level and optional rotating log file.
type LogConfig struct {
	Level      string `toml:"level" json:"level" validate:"oneof=debug info warn error"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" validate:"gte=0"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %w", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks every section and wraps failures in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := NewValidator().Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.Matching.EnableISRC && !c.Matching.EnableStrict && !c.Matching.EnableFuzzy {
		return fmt.Errorf("%w: at least one matching stage must be enabled", ErrInvalidConfig)
	}
	return nil
}

// MaxAge is the cache retention window.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// Timeout is the per-request catalog timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
