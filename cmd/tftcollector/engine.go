package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/checkpoint"
	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/config"
	"github.com/tft-collector/tftcollector/internal/httpclient"
	"github.com/tft-collector/tftcollector/internal/notify"
	"github.com/tft-collector/tftcollector/internal/registry"
	"github.com/tft-collector/tftcollector/internal/riot"
	"github.com/tft-collector/tftcollector/internal/storage"
	"github.com/tft-collector/tftcollector/internal/telemetry"
	"github.com/tft-collector/tftcollector/internal/window"
)

// buildEngine wires the full dependency graph a Collection Engine run needs
// for one cycle: the rate-limited Riot client, the registry backend chosen
// by config, the checkpoint store, and the design-default engine tunables.
func buildEngine(ctx context.Context, cfg *config.Config, cycleID string) (*collector.Engine, func() error, error) {
	layout := storage.NewLayout(cfg.Paths.DataDir)

	platformBase, ok := riot.PlatformFor(cfg.API.Region)
	if !ok {
		return nil, nil, fmt.Errorf("tftcollector: unrecognized region %q", cfg.API.Region)
	}
	continentBase, ok := riot.ContinentFor(cfg.API.Continent)
	if !ok {
		return nil, nil, fmt.Errorf("tftcollector: unrecognized continent %q", cfg.API.Continent)
	}

	logger := telemetry.CycleLogger(cycleID, cfg.API.Region)
	limits := httpclient.DefaultLimits()
	limits.LongWindowBudget = cfg.API.RateLimit
	client := riot.New(
		cfg.API.APIKey,
		platformBase,
		continentBase,
		limits,
		httpclient.DefaultRetryPolicy(),
		time.Duration(cfg.API.RequestTimeout)*time.Second,
		telemetry.Component("riot"),
	)

	var reg registry.Registry
	switch cfg.Registry.Backend {
	case "postgres":
		pg, err := registry.NewPostgres(ctx, cfg.Registry.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("tftcollector: connect postgres registry: %w", err)
		}
		reg = pg
	default:
		embedded, err := registry.NewEmbedded(filepath.Join(cfg.Paths.DataDir, cfg.Registry.Path), registry.DefaultEmbeddedOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("tftcollector: open embedded registry: %w", err)
		}
		reg = embedded
	}

	store, err := checkpoint.NewStore(filepath.Join(cfg.Paths.DataDir, "data", "raw"))
	if err != nil {
		return nil, nil, fmt.Errorf("tftcollector: open checkpoint store: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "data", "raw", fmt.Sprintf(".tft_collection_%s.lock", cycleID))
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("tftcollector: acquire collection lock: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("tftcollector: another process holds the collection lock for cycle %s", cycleID)
	}
	release := func() error {
		reg.Close()
		return lock.Unlock()
	}

	engineCfg := collector.DefaultConfig()
	engineCfg.CycleID = cycleID
	engineCfg.Region = cfg.API.Region
	engineCfg.Tiers = cfg.Tiers()
	engineCfg.Mode = window.Mode(cfg.Collection.Mode)
	engineCfg.IncompleteMatchPolicy = collector.IncompleteMatchPolicy(cfg.Collection.IncompleteMatchPolicy)
	engineCfg.WorkerCount = cfg.Collection.WorkerCount
	engineCfg.CheckpointEveryNMatches = cfg.Collection.CheckpointEveryNMatches
	engineCfg.MatchesPerPlayerQuery = cfg.Collection.MatchesPerPlayerQuery
	engineCfg.OutputDir = filepath.Join(layout.Root, "data", "raw")

	engine := collector.New(client, reg, store, logger, engineCfg).WithNotifier(notify.NewLogNotifier(logger))
	return engine, release, nil
}

func cycleIDsFromArgs(cmd *cobra.Command, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return []string{time.Now().UTC().Format("20060102")}
}
