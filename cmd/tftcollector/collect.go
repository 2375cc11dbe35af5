package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/config"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

func newCollectCommand(cfg **config.Config, configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect [cycleId...]",
		Short: "Run the Collection Engine for one or more cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *cfg == nil {
				return errNoConfig
			}
			for _, cycleID := range cycleIDsFromArgs(cmd, args) {
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
					return fmt.Errorf("tftcollector: collect cycle %s: %w", cycleID, runErr)
				}
				if closeErr != nil {
					return fmt.Errorf("tftcollector: release lock for cycle %s: %w", cycleID, closeErr)
				}
			}
			return nil
		},
	}
}
