package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tft-collector/tftcollector/internal/config"
)

func newValidateConfigCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration file without starting a collection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: region=%s continent=%s mode=%s worker_count=%d\n",
				cfg.API.Region, cfg.API.Continent, cfg.Collection.Mode, cfg.Collection.WorkerCount)
			return nil
		},
	}
}
