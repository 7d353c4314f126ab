// Package dashboard recomputes a track's protection readiness and hands the
// result to a presenter.
package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/core/protection"
	"beatpass-guard/internal/core/readiness"
	"beatpass-guard/internal/interfaces"
	"beatpass-guard/internal/metadata"
)

// DefaultDebounce coalesces bursts of form edits before a refresh
const DefaultDebounce = 250 * time.Millisecond

// Snapshot is what the form currently shows for a track
type Snapshot struct {
	TrackID     string
	PlaybackURL string
	Form        metadata.Fields
}

// View is the data bundle handed to a presenter with the selected state
type View struct {
	TrackID      string
	PlaybackURL  string
	State        readiness.State
	Completeness metadata.Completeness
	Status       beatpass.FingerprintStatus
	InProgress   bool
	// Outcome is set when the view is rendered from a finished protection run
	Outcome *protection.Outcome
	// KeySuggestion is a canonical key name when the entered key isn't one
	KeySuggestion string
	RefreshedAt   time.Time
}

// Presenter renders one of the five readiness branches
type Presenter interface {
	Render(state readiness.State, data View) error
}

// ProgressReporter reports whether a protection run is in flight
type ProgressReporter interface {
	InProgress() bool
}

// Dashboard owns no state between refreshes; every call starts over from the
// snapshot and a fresh network poll.
type Dashboard struct {
	api       interfaces.TrackAPI
	presenter Presenter
	progress  ProgressReporter
	logger    interfaces.LoggerService
	warnings  interfaces.WarningCollectorService

	// serializes renders from debounced refreshes
	mu sync.Mutex
}

// New creates a dashboard. progress and warnings may be nil.
func New(api interfaces.TrackAPI, presenter Presenter, progress ProgressReporter, logger interfaces.LoggerService, warnings interfaces.WarningCollectorService) *Dashboard {
	return &Dashboard{
		api:       api,
		presenter: presenter,
		progress:  progress,
		logger:    logger,
		warnings:  warnings,
	}
}

// Refresh re-fetches stored metadata and fingerprint status, recomputes the
// readiness state and renders it. Network failures degrade to "no record" and
// the zero status; only presenter errors are returned.
func (d *Dashboard) Refresh(ctx context.Context, snap Snapshot) (View, error) {
	view := d.build(ctx, snap)

	d.mu.Lock()
	defer d.mu.Unlock()
	return view, d.presenter.Render(view.State, view)
}

// Inspect builds the view Refresh would render without rendering it
func (d *Dashboard) Inspect(ctx context.Context, snap Snapshot) View {
	return d.build(ctx, snap)
}

func (d *Dashboard) build(ctx context.Context, snap Snapshot) View {
	record, err := d.api.GetTrackMetadata(ctx, snap.TrackID)
	if err != nil {
		d.logger.Debug("Stored metadata unavailable for track %s: %v", snap.TrackID, err)
		if d.warnings != nil {
			d.warnings.AddMetadataFetchWarning(snap.TrackID, err.Error())
		}
		record = nil
	}
	completeness := metadata.Evaluate(snap.Form, record)

	status, err := d.api.FetchStatus(ctx, snap.TrackID)
	if err != nil {
		d.logger.Debug("Fingerprint status unavailable for track %s: %v", snap.TrackID, err)
		if d.warnings != nil {
			d.warnings.AddStatusPollWarning(snap.TrackID, err.Error())
		}
		status = beatpass.FingerprintStatus{}
	}

	view := View{
		TrackID:      snap.TrackID,
		PlaybackURL:  strings.TrimSpace(snap.PlaybackURL),
		State:        readiness.ComputeState(snap.PlaybackURL, completeness, status),
		Completeness: completeness,
		Status:       status,
		RefreshedAt:  time.Now(),
	}
	if d.progress != nil {
		view.InProgress = d.progress.InProgress()
	}
	if completeness.HasKey {
		if key, ok := metadata.SuggestKey(completeness.Key); ok && key != completeness.Key {
			view.KeySuggestion = key
		}
	}
	return view
}

// ShowOutcome renders the state a protection run settled in. The failed
// branch is only ever reached this way.
func (d *Dashboard) ShowOutcome(snap Snapshot, outcome protection.Outcome) error {
	view := View{
		TrackID:      snap.TrackID,
		PlaybackURL:  strings.TrimSpace(snap.PlaybackURL),
		State:        outcome.State,
		Completeness: outcome.Completeness,
		Outcome:      &outcome,
		RefreshedAt:  time.Now(),
	}
	if outcome.Kind == protection.OutcomeProtected {
		view.Status = beatpass.FingerprintStatus{
			HasFingerprint:  true,
			PlaybackURL:     view.PlaybackURL,
			Fingerprint:     outcome.Fingerprint,
			FingerprintHash: outcome.FingerprintHash,
		}
	}
	if outcome.Duplicate != nil {
		view.Status.IsDuplicate = true
		view.Status.IsAuthentic = outcome.Kind == protection.OutcomeAuthenticDuplicate
		view.Status.DuplicateInfo = outcome.Duplicate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presenter.Render(view.State, view)
}

// Attach re-renders whenever the bus reports a change for the snapshot's
// track. snapshot is called at refresh time so edits made during the debounce
// window are picked up. The returned func detaches.
func (d *Dashboard) Attach(ctx context.Context, bus *events.Bus, debounce time.Duration, snapshot func() Snapshot) func() {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	refresh, stop := events.Debounce(debounce, func(events.Event) {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.Refresh(ctx, snapshot()); err != nil {
			d.logger.Error("Dashboard render failed: %v", err)
		}
	})
	// Filtered before debouncing so another track's event cannot swallow a burst.
	unsubscribe := bus.SubscribeAll(func(ev events.Event) {
		if ev.TrackID != "" {
			if current := snapshot().TrackID; current != "" && ev.TrackID != current {
				return
			}
		}
		refresh(ev)
	})
	return func() {
		unsubscribe()
		stop()
	}
}
