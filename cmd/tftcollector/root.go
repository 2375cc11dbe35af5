package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/config"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

// errResumable is the sentinel main.go checks to decide the design-default
// exit code 2 (checkpoint written, resumable), matching collector.ErrResumable
// without importing the collector package's exact error string into main.
var errResumable = collector.ErrResumable

func newRootCommand() *cobra.Command {
	var configFlag string
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "tftcollector",
		Short:         "TFT ranked match data collection engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "validate-config" {
				return nil
			}
			loaded, err := config.Load(configFlag)
			if err != nil {
				telemetry.Component("config").Error("configuration load failed",
					"correlation_id", telemetry.GenerateCorrelationID(), "error", err)
				return err
			}
			cfg = loaded
			telemetry.Setup(telemetry.LogConfig{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
			if cfg.Metrics.Enabled {
				go func() {
					if err := telemetry.StartServer(cfg.Metrics.Address); err != nil {
						telemetry.Component("metrics").Error("metrics server exited", "error", err)
					}
				}()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.toml", "Configuration file path")

	root.AddCommand(newCollectCommand(&cfg, &configFlag))
	root.AddCommand(newResumeCommand(&cfg, &configFlag))
	root.AddCommand(newPipelineCommand(&cfg, &configFlag))
	root.AddCommand(newValidateConfigCommand(&configFlag))

	return root
}

var errNoConfig = errors.New("tftcollector: configuration not loaded")
