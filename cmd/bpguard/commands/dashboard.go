package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// NewDashboardCommand creates the dashboard command
func NewDashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard [track_id]",
		Short: "Render the protection dashboard for a track.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDashboardCommand,
	}
	addFormFlags(cmd)
	cmd.Flags().Bool("follow", false, "Keep polling and re-render on every interval")
	return cmd
}

func runDashboardCommand(cmd *cobra.Command, args []string) error {
	cfg, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	snap, _, err := readForm(cmd, optionalTrackID(args))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := serviceContainer.Dashboard.Refresh(ctx, snap); err != nil {
		return err
	}

	follow, _ := cmd.Flags().GetBool("follow")
	if !follow {
		return nil
	}

	ticker := time.NewTicker(cfg.WatchInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := serviceContainer.Dashboard.Refresh(ctx, snap); err != nil {
				serviceContainer.Logger.Error("Dashboard render failed: %v", err)
			}
		}
	}
}
