package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/core/readiness"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [track_id]",
		Short: "Show stored metadata and BeatPassID fingerprint status for a track.",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatusCommand,
	}
	cmd.Flags().String("src", "", "Playback URL to compare against the fingerprinted one")
	return cmd
}

func runStatusCommand(cmd *cobra.Command, args []string) error {
	_, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	ctx := context.Background()
	trackID := args[0]

	record, err := serviceContainer.APIClient.GetTrackMetadata(ctx, trackID)
	if err != nil {
		serviceContainer.Logger.Warning("Could not fetch stored metadata: %v", err)
	}
	status, err := serviceContainer.APIClient.FetchStatus(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to fetch fingerprint status: %w", err)
	}

	shared.ColorAccent.Printf("🎵 Track %s\n", trackID)
	if record != nil {
		fmt.Printf("   Key:     %s %s\n", record.KeyName, record.Scale)
		fmt.Printf("   BPM:     %s\n", record.BPMString())
	}
	fmt.Printf("   Fingerprinted: %t\n", status.HasFingerprint)
	if status.PlaybackURL != "" {
		fmt.Printf("   Playback URL:  %s\n", status.PlaybackURL)
	}
	if status.FingerprintHash != "" {
		fmt.Printf("   Hash:          %s\n", status.FingerprintHash)
	}
	if status.IsDuplicate {
		kind := "ToS violation"
		if status.IsAuthentic {
			kind = "authentic"
		}
		shared.ColorWarning.Printf("   Duplicate (%s), %d match(es)\n", kind, status.DuplicateCount)
		for _, k := range status.DuplicateInfo.Keys() {
			shared.ColorMuted.Printf("     %s: %s\n", k, status.DuplicateInfo.Get(k))
		}
	}

	src, _ := cmd.Flags().GetString("src")
	if src == "" {
		src = status.PlaybackURL
	}
	state := readiness.ComputeState(src, metadata.Evaluate(metadata.Fields{}, record), status)
	shared.ColorInfo.Printf("   Readiness: %s\n", state)
	return nil
}
