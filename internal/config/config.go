// Package config loads the collector's TOML configuration file, overlays it
// with environment variables (in particular RIOT_API_KEY, which is never
// read from the file), and validates the result. Structure and load
// sequencing (defaults → file → normalize → validate) are grounded on
// five82-spindle's internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/go-playground/validator/v10"

	"github.com/tft-collector/tftcollector/internal/riot"
	"github.com/tft-collector/tftcollector/internal/window"
)

// API holds Riot API connection settings. APIKey is never populated from
// the TOML file — see Load.
type API struct {
	Region         string `toml:"region" validate:"required"`
	Continent      string `toml:"continent" validate:"required"`
	RateLimit      int    `toml:"rate_limit" validate:"gte=1"`
	RequestTimeout int    `toml:"request_timeout_seconds" validate:"gte=1"`
	APIKey         string `toml:"-"`
}

// Collection holds the Collection Engine's tunables.
type Collection struct {
	Mode                    string   `toml:"mode" validate:"oneof=daily weekly incremental"`
	Tiers                   []string `toml:"tiers"`
	IncompleteMatchPolicy   string   `toml:"incomplete_match_policy" validate:"oneof=identify filter mark"`
	WorkerCount             int      `toml:"worker_count" validate:"gte=1"`
	CheckpointEveryNMatches int      `toml:"checkpoint_every_n_matches" validate:"gte=1"`
	MatchesPerPlayerQuery   int      `toml:"matches_per_player_query" validate:"gte=1"`
}

// Quality holds the QA stage's gating threshold.
type Quality struct {
	QualityThreshold float64 `toml:"quality_threshold" validate:"gte=0,lte=1"`
}

// Backup holds the backup stage's toggles.
type Backup struct {
	AutoBackup    bool `toml:"auto_backup"`
	RetentionDays int  `toml:"retention_days" validate:"gte=0"`
}

// Registry holds the durable Identifier & Status Registry's backend choice.
type Registry struct {
	Backend     string `toml:"backend" validate:"oneof=embedded postgres"`
	Path        string `toml:"path"`
	DatabaseURL string `toml:"database_url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Format string `toml:"format" validate:"oneof=json text"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
}

// Metrics holds Prometheus metrics server configuration.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Paths holds the deterministic output-tree root.
type Paths struct {
	DataDir string `toml:"data_dir" validate:"required"`
}

// Config is the full collector configuration.
type Config struct {
	API        API        `toml:"api"`
	Collection Collection `toml:"collection"`
	Quality    Quality    `toml:"quality"`
	Backup     Backup     `toml:"backup"`
	Registry   Registry   `toml:"registry"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
	Paths      Paths      `toml:"paths"`
}

// Default returns the design-default configuration.
func Default() Config {
	return Config{
		API: API{
			Region:         "na1",
			Continent:      "AMERICAS",
			RateLimit:      90,
			RequestTimeout: 30,
		},
		Collection: Collection{
			Mode:                    string(window.ModeWeekly),
			IncompleteMatchPolicy:   "mark",
			WorkerCount:             8,
			CheckpointEveryNMatches: 500,
			MatchesPerPlayerQuery:   50,
		},
		Quality: Quality{QualityThreshold: 0.6},
		Backup:  Backup{AutoBackup: true, RetentionDays: 30},
		Registry: Registry{
			Backend: "embedded",
			Path:    "data/registry.json",
		},
		Logging: Logging{Format: "text", Level: "info"},
		Metrics: Metrics{Enabled: false, Address: ":9090"},
		Paths:   Paths{DataDir: "."},
	}
}

// Load reads path (a TOML file), falling back to defaults for anything not
// set, then overlays environment variables (loading a .env file in the
// working directory first, if present) and validates the result.
// RIOT_API_KEY is required and is never read from the TOML file: committing
// a credential to a config file checked into source control is exactly the
// failure mode this split guards against.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	apiKey := strings.TrimSpace(os.Getenv("RIOT_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("config: RIOT_API_KEY is not set in the environment or .env file")
	}
	cfg.API.APIKey = apiKey

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.API.Region = strings.ToLower(strings.TrimSpace(c.API.Region))
	c.API.Continent = strings.ToUpper(strings.TrimSpace(c.API.Continent))
	if _, ok := riot.PlatformFor(c.API.Region); !ok {
		return fmt.Errorf("config: unrecognized api.region %q", c.API.Region)
	}
	if _, ok := riot.ContinentFor(c.API.Continent); !ok {
		return fmt.Errorf("config: unrecognized api.continent %q", c.API.Continent)
	}
	for i, t := range c.Collection.Tiers {
		norm, ok := riot.ParseTier(t)
		if !ok {
			return fmt.Errorf("config: unrecognized collection.tiers entry %q", t)
		}
		c.Collection.Tiers[i] = string(norm)
	}
	if c.Paths.DataDir != "" {
		abs, err := filepath.Abs(c.Paths.DataDir)
		if err == nil {
			c.Paths.DataDir = abs
		}
	}
	return nil
}

var validate = validator.New()

// Validate runs struct-tag validation over the config, matching
// spindle's Load→normalize→Validate sequencing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if c.Registry.Backend == "postgres" && strings.TrimSpace(c.Registry.DatabaseURL) == "" {
		return fmt.Errorf("config: registry.backend=postgres requires registry.database_url")
	}
	return nil
}

// Tiers converts the configured tier names into riot.Tier values.
func (c *Config) Tiers() []riot.Tier {
	tiers := make([]riot.Tier, 0, len(c.Collection.Tiers))
	for _, t := range c.Collection.Tiers {
		tiers = append(tiers, riot.Tier(t))
	}
	return tiers
}
