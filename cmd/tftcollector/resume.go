package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/checkpoint"
	"github.com/tft-collector/tftcollector/internal/config"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

// newResumeCommand is a thin wrapper over collect: the Collection Engine
// already resumes automatically from any existing checkpoint (§4.4), so
// resume differs only in refusing to silently start a fresh cycle when no
// checkpoint is present for the given cycleId.
func newResumeCommand(cfg **config.Config, configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <cycleId>",
		Short: "Resume an interrupted collection cycle from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if *cfg == nil {
				return errNoConfig
			}
			cycleID := args[0]
			store, err := checkpoint.NewStore(filepath.Join((*cfg).Paths.DataDir, "data", "raw"))
			if err != nil {
				return err
			}
			if !store.Exists(cycleID) {
				return fmt.Errorf("tftcollector: no checkpoint found for cycle %s", cycleID)
			}

			ctx := telemetry.WithCorrelationID(cmd.Context(), cycleID)
			engine, release, err := buildEngine(ctx, *cfg, cycleID)
			if err != nil {
				return err
			}
			_, runErr := engine.Run(ctx)
			closeErr := release()
			if runErr != nil {
				if errors.Is(runErr, errResumable) {
					return runErr
				}
				return fmt.Errorf("tftcollector: resume cycle %s: %w", cycleID, runErr)
			}
			return closeErr
		},
	}
}
