package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Cache.Driver != "sqlite" {
			t.Errorf("expected cache driver sqlite, got %s", config.Cache.Driver)
		}

		if config.Cache.Path != "./trackmatch.db" {
			t.Errorf("expected cache path ./trackmatch.db, got %s", config.Cache.Path)
		}

		if config.Matching.FuzzyThreshold != 0.8 {
			t.Errorf("expected fuzzy threshold 0.8, got %v", config.Matching.FuzzyThreshold)
		}

		if config.Matching.Concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", config.Matching.Concurrency)
		}

		if config.Cache.MaxAge() != 90*24*time.Hour {
			t.Errorf("expected 90 day max age, got %v", config.Cache.MaxAge())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Cache.Path != DefaultConfig().Cache.Path {
			t.Errorf("created config cache path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[catalog]
url = "https://music.example.com"
token = "secret"

[matching]
fuzzy_threshold = 0.85
concurrency = 4

[cache]
driver = "badger"
path = "/var/lib/trackmatch"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Catalog.URL != "https://music.example.com" {
			t.Errorf("expected catalog url override, got %s", config.Catalog.URL)
		}
		if config.Matching.Concurrency != 4 {
			t.Errorf("expected concurrency 4, got %d", config.Matching.Concurrency)
		}
		if config.Cache.Driver != "badger" {
			t.Errorf("expected badger driver, got %s", config.Cache.Driver)
		}
		if !config.Matching.EnableFuzzy || config.Matching.StrictResults != 20 {
			t.Error("keys absent from the file should keep their defaults")
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "threshold above one", mutate: func(c *Config) { c.Matching.FuzzyThreshold = 1.5 }},
			{name: "zero concurrency", mutate: func(c *Config) { c.Matching.Concurrency = 0 }},
			{name: "unknown driver", mutate: func(c *Config) { c.Cache.Driver = "postgres" }},
			{name: "redis without address", mutate: func(c *Config) { c.Cache.Driver = "redis"; c.Cache.RedisAddr = "" }},
			{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }},
			{name: "all stages off", mutate: func(c *Config) {
				c.Matching.EnableISRC, c.Matching.EnableStrict, c.Matching.EnableFuzzy = false, false, false
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}

		t.Run("memory driver needs no path", func(t *testing.T) {
			config := DefaultConfig()
			config.Cache.Driver = "memory"
			config.Cache.Path = ""
			if err := config.Validate(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	})
}
