package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/shared"
)

// NewPendingCommand creates the pending-submission buffer commands
func NewPendingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Inspect or replay the locally buffered playback-URL submission.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the buffered submission.",
		Args:  cobra.NoArgs,
		RunE:  runPendingShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "retry",
		Short: "Submit the buffered playback URL again.",
		Args:  cobra.NoArgs,
		RunE:  runPendingRetry,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the buffered submission.",
		Args:  cobra.NoArgs,
		RunE:  runPendingClear,
	})
	return cmd
}

func runPendingShow(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	pending, err := serviceContainer.Pending.Get(context.Background())
	if err != nil {
		return err
	}
	if pending == nil {
		serviceContainer.Logger.Info("No pending submission.")
		return nil
	}

	data, err := json.MarshalIndent(pending, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pending submission: %w", err)
	}
	shared.ColorInfo.Printf("📦 Pending submission %s (buffered %s)\n", pending.ID, pending.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(string(data))
	return nil
}

func runPendingRetry(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	pending, err := serviceContainer.Pending.Retry(context.Background())
	if err != nil {
		return err
	}
	if pending == nil {
		serviceContainer.Logger.Info("No pending submission.")
		return nil
	}
	serviceContainer.Logger.Success("Submitted playback URL for track %s", pending.Request.TrackID)
	return nil
}

func runPendingClear(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	if err := serviceContainer.Pending.Clear(context.Background()); err != nil {
		return err
	}
	serviceContainer.Logger.Success("Pending submission cleared")
	return nil
}
