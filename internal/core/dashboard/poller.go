package dashboard

import (
	"context"
	"time"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/core/events"
)

// StatusChecker is the status poll the poller needs
type StatusChecker interface {
	CheckStatus(ctx context.Context, trackID string) beatpass.FingerprintStatus
}

// StatusPoller publishes FingerprintStatusChanged when the server-side
// fingerprint status of a track changes
type StatusPoller struct {
	api      StatusChecker
	bus      *events.Bus
	interval time.Duration
}

func NewStatusPoller(api StatusChecker, bus *events.Bus, interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &StatusPoller{api: api, bus: bus, interval: interval}
}

// Run polls until ctx is cancelled. trackID is read on every tick so the
// poller follows track switches.
func (p *StatusPoller) Run(ctx context.Context, trackID func() string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	lastTrack := trackID()
	last := p.api.CheckStatus(ctx, lastTrack)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		id := trackID()
		status := p.api.CheckStatus(ctx, id)
		if id == lastTrack && sameStatus(last, status) {
			continue
		}
		lastTrack, last = id, status
		p.bus.Publish(events.Event{
			Kind:        events.FingerprintStatusChanged,
			TrackID:     id,
			PlaybackURL: status.PlaybackURL,
		})
	}
}

func sameStatus(a, b beatpass.FingerprintStatus) bool {
	return a.HasFingerprint == b.HasFingerprint &&
		a.IsDuplicate == b.IsDuplicate &&
		a.IsAuthentic == b.IsAuthentic &&
		a.DuplicateCount == b.DuplicateCount &&
		a.PlaybackURL == b.PlaybackURL &&
		a.FingerprintHash == b.FingerprintHash
}
