package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/shared"
)

// NewDeleteFingerprintCommand creates the delete-fingerprint command
func NewDeleteFingerprintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-fingerprint [track_id]",
		Short: "Remove the BeatPassID fingerprint stored for a track.",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteFingerprintCommand,
	}
	cmd.Flags().String("reason", "manual", "Reason recorded with the deletion")
	cmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	return cmd
}

func runDeleteFingerprintCommand(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	trackID := args[0]
	reason, _ := cmd.Flags().GetString("reason")
	yes, _ := cmd.Flags().GetBool("yes")

	if !yes && !shared.GetYesNoInput(fmt.Sprintf("Delete the fingerprint for track %s? (y/n)", trackID), "n") {
		serviceContainer.Logger.Warning("Deletion cancelled.")
		return nil
	}

	// Deletes are never retried
	err = serviceContainer.SubmitGate.Submit(context.Background(), func(ctx context.Context) error {
		return serviceContainer.APIClient.DeleteFingerprint(ctx, trackID, reason)
	})
	if err != nil {
		return fmt.Errorf("failed to delete fingerprint: %w", err)
	}
	serviceContainer.Logger.Success("Fingerprint for track %s deleted (%s)", trackID, reason)
	return nil
}
