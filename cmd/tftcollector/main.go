// Command tftcollector is the CLI entrypoint for the TFT ranked match
// collection system: a cobra command tree following the structure of
// five82-spindle's cmd/spindle (a thin main.go delegating to
// newRootCommand, persistent flags shared across subcommands).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

func main() {
	telemetry.Init("")
	cmd := newRootCommand()
	ctx := collector.SetupSignalHandler(nil, nil)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errResumable) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
