package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/core/dashboard"
	"beatpass-guard/internal/core/formwatch"
	"beatpass-guard/internal/metadata"
)

// readForm builds the form snapshot from --draft or the individual flags.
// Explicit flags win over draft values.
func readForm(cmd *cobra.Command, trackID string) (dashboard.Snapshot, metadata.LicensingInfo, error) {
	snap := dashboard.Snapshot{TrackID: trackID}
	var licensing metadata.LicensingInfo

	if draftPath, _ := cmd.Flags().GetString("draft"); draftPath != "" {
		draft, err := formwatch.LoadDraft(draftPath)
		if err != nil {
			return snap, licensing, err
		}
		if trackID != "" && draft.TrackID != trackID {
			return snap, licensing, fmt.Errorf("draft is for track %s, not %s", draft.TrackID, trackID)
		}
		snap = dashboard.Snapshot{TrackID: draft.TrackID, PlaybackURL: draft.PlaybackURL, Form: draft.Form}
		licensing = draft.Licensing
	}

	if cmd.Flags().Changed("src") {
		snap.PlaybackURL, _ = cmd.Flags().GetString("src")
	}
	if cmd.Flags().Changed("key") {
		snap.Form.Key, _ = cmd.Flags().GetString("key")
	}
	if cmd.Flags().Changed("scale") {
		snap.Form.Scale, _ = cmd.Flags().GetString("scale")
	}
	if cmd.Flags().Changed("bpm") {
		snap.Form.BPM, _ = cmd.Flags().GetString("bpm")
	}

	if snap.TrackID == "" {
		return snap, licensing, fmt.Errorf("a track ID is required")
	}
	return snap, licensing, nil
}

// optionalTrackID returns args[0] when given
func optionalTrackID(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
