package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/config"
	"github.com/tft-collector/tftcollector/internal/notify"
	"github.com/tft-collector/tftcollector/internal/pipeline"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

func newPipelineCommand(cfg **config.Config, configFlag *string) *cobra.Command {
	var parallelism int
	var previousCycleID string

	cmd := &cobra.Command{
		Use:   "pipeline [cycleId...]",
		Short: "Run the full collect→validate→transform→quality→... DAG for one or more cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *cfg == nil {
				return errNoConfig
			}
			cycleIDs := cycleIDsFromArgs(cmd, args)

			logger := telemetry.Component("pipeline")
			pcfg := pipeline.DefaultConfig((*cfg).Paths.DataDir)
			pcfg.QualityThreshold = (*cfg).Quality.QualityThreshold
			pcfg.BackupAutoBackup = (*cfg).Backup.AutoBackup
			pcfg.BackupRetentionDays = (*cfg).Backup.RetentionDays
			pcfg.PreviousCycleID = previousCycleID
			pcfg.Notifier = notify.NewLogNotifier(logger)

			collectFor := func(cycleID string) func(context.Context) error {
				return func(ctx context.Context) error {
					ctx = telemetry.WithCorrelationID(ctx, cycleID)
					engine, release, err := buildEngine(ctx, *cfg, cycleID)
					if err != nil {
						return err
					}
					defer release()
					_, err = engine.Run(ctx)
					return err
				}
			}

			if len(cycleIDs) == 1 {
				return pipeline.RunCycle(cmd.Context(), logger, pcfg, cycleIDs[0], collectFor(cycleIDs[0]))
			}
			return pipeline.RunMany(cmd.Context(), logger, pcfg, cycleIDs, parallelism, collectFor)
		},
	}
	cmd.Flags().IntVar(&parallelism, "parallelism", 2, "Maximum number of cycles to run concurrently")
	cmd.Flags().StringVar(&previousCycleID, "previous-cycle", "", "cycleId to diff against for cross_cycle and provenance chaining")
	return cmd
}
