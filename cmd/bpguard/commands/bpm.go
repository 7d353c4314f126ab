package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/shared"
)

// NewBPMCommand creates the bpm column command
func NewBPMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bpm [track_id...]",
		Short: "Show stored key and BPM for many tracks, fetched in small batches.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBPMCommand,
	}
	return cmd
}

func runBPMCommand(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rows := serviceContainer.Populator.Populate(ctx, args)

	fmt.Println()
	failed := 0
	for _, row := range rows {
		if row.Err != nil {
			failed++
			shared.ColorMuted.Printf("%-12s %s\n", row.TrackID, row.Display())
			continue
		}
		fmt.Printf("%-12s %s\n", row.TrackID, row.Display())
	}

	if serviceContainer.WarningCollector.HasWarnings() {
		serviceContainer.WarningCollector.PrintSummary()
	}
	if failed > 0 {
		serviceContainer.Logger.Warning("%d of %d tracks could not be populated", failed, len(rows))
	}
	return nil
}
