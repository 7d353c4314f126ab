package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/core/protection"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// NewProtectCommand creates the protect command
func NewProtectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protect [track_id]",
		Short: "Fingerprint a track with BeatPassID and check it for duplicates.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProtectCommand,
	}
	addFormFlags(cmd)
	cmd.Flags().String("licensing-type", "", "Licensing type (non_exclusive_only, exclusive_allowed)")
	cmd.Flags().String("exclusive-price", "", "Exclusive license price")
	cmd.Flags().String("exclusive-currency", "", "Exclusive license currency")
	cmd.Flags().String("exclusive-status", "", "Exclusive status (available, sold, not_available)")
	cmd.Flags().Bool("continue-on-save-failure", false, "Fingerprint even if saving the playback URL fails")
	return cmd
}

func runProtectCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cont, _ := cmd.Flags().GetBool("continue-on-save-failure"); cont {
		cfg.ContinueOnPersistFailure = true
	}
	serviceContainer, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	snap, licensing, err := readForm(cmd, optionalTrackID(args))
	if err != nil {
		return err
	}
	licensing = licensingFromFlags(cmd, licensing)

	serviceContainer.Logger.Info("🛡️ Protecting track %s", snap.TrackID)
	outcome := serviceContainer.Orchestrator.StartFingerprinting(context.Background(), protection.Request{
		TrackID:     snap.TrackID,
		PlaybackURL: snap.PlaybackURL,
		Form:        snap.Form,
		Licensing:   licensing,
	})

	if err := serviceContainer.Dashboard.ShowOutcome(snap, outcome); err != nil {
		serviceContainer.Logger.Error("Dashboard render failed: %v", err)
	}
	if serviceContainer.WarningCollector.HasWarnings() {
		serviceContainer.WarningCollector.PrintSummary()
	}

	switch outcome.Kind {
	case protection.OutcomeProtected, protection.OutcomeAuthenticDuplicate:
		return nil
	case protection.OutcomeToSViolation:
		var conflict *shared.DuplicateConflict
		if errors.As(outcome.Err, &conflict) {
			return fmt.Errorf("track %s rejected: %w", snap.TrackID, conflict)
		}
		return outcome.Err
	default:
		return fmt.Errorf("protection %s: %w", outcome.Kind, outcome.Err)
	}
}

func licensingFromFlags(cmd *cobra.Command, base metadata.LicensingInfo) metadata.LicensingInfo {
	if cmd.Flags().Changed("licensing-type") {
		base.LicensingType, _ = cmd.Flags().GetString("licensing-type")
	}
	if cmd.Flags().Changed("exclusive-price") {
		base.ExclusivePrice, _ = cmd.Flags().GetString("exclusive-price")
	}
	if cmd.Flags().Changed("exclusive-currency") {
		base.ExclusiveCurrency, _ = cmd.Flags().GetString("exclusive-currency")
	}
	if cmd.Flags().Changed("exclusive-status") {
		base.ExclusiveStatus, _ = cmd.Flags().GetString("exclusive-status")
	}
	return base
}
