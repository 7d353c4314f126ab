package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"beatpass-guard/internal/core/dashboard"
	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/core/formwatch"
	"beatpass-guard/internal/core/protection"
	"beatpass-guard/internal/core/readiness"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a form draft and re-render the dashboard whenever it changes.",
		Args:  cobra.NoArgs,
		RunE:  runWatchCommand,
	}
	cmd.Flags().String("draft", "", "JSON draft file to watch (required)")
	cmd.Flags().Bool("auto-protect", false, "Protect the track once a draft edit leaves it ready to scan")
	cmd.MarkFlagRequired("draft")
	return cmd
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	cfg, serviceContainer, err := initConfigAndServices(cmd)
	if err != nil {
		return err
	}
	defer serviceContainer.Close()

	draftPath, _ := cmd.Flags().GetString("draft")
	autoProtect, _ := cmd.Flags().GetBool("auto-protect")

	watcher, err := formwatch.NewWatcher(draftPath, serviceContainer.Bus, serviceContainer.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshot := func() dashboard.Snapshot {
		d := watcher.Current()
		return dashboard.Snapshot{TrackID: d.TrackID, PlaybackURL: d.PlaybackURL, Form: d.Form}
	}

	detach := serviceContainer.Dashboard.Attach(ctx, serviceContainer.Bus, 0, snapshot)
	defer detach()

	if autoProtect {
		// URL and metadata edits from one save collapse into a single attempt.
		handler, stopDebounce := events.Debounce(dashboard.DefaultDebounce, func(events.Event) {
			autoProtectDraft(ctx, serviceContainer.Dashboard, serviceContainer.Orchestrator, watcher.Current())
		})
		defer stopDebounce()
		unsubscribeURL := serviceContainer.Bus.Subscribe(events.PlaybackURLChanged, handler)
		defer unsubscribeURL()
		unsubscribeMeta := serviceContainer.Bus.Subscribe(events.MetadataChanged, handler)
		defer unsubscribeMeta()
	}

	poller := dashboard.NewStatusPoller(serviceContainer.APIClient, serviceContainer.Bus, cfg.WatchInterval())
	go poller.Run(ctx, func() string { return watcher.Current().TrackID })

	if _, err := serviceContainer.Dashboard.Refresh(ctx, snapshot()); err != nil {
		return err
	}
	serviceContainer.Logger.Info("👀 Watching %s (Ctrl+C to stop)", draftPath)

	if err := watcher.Run(ctx); err != nil {
		return fmt.Errorf("draft watcher stopped: %w", err)
	}
	return nil
}

// autoProtectDraft protects the draft's track when a fresh poll shows it
// ready to scan. A run already in progress is left alone. Reports whether a
// run was started.
func autoProtectDraft(ctx context.Context, d *dashboard.Dashboard, o *protection.Orchestrator, draft formwatch.Draft) bool {
	if o.Guard().InProgress() {
		return false
	}
	if draft.TrackID == "" || strings.TrimSpace(draft.PlaybackURL) == "" {
		return false
	}
	snap := dashboard.Snapshot{TrackID: draft.TrackID, PlaybackURL: draft.PlaybackURL, Form: draft.Form}
	if view := d.Inspect(ctx, snap); view.State != readiness.ReadyToScan {
		return false
	}
	outcome := o.StartFingerprinting(ctx, protection.Request{
		TrackID:     draft.TrackID,
		PlaybackURL: draft.PlaybackURL,
		Form:        draft.Form,
		Licensing:   draft.Licensing,
	})
	d.ShowOutcome(snap, outcome)
	return true
}
