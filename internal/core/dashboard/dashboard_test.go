package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/core/protection"
	"beatpass-guard/internal/core/readiness"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

type stubAPI struct {
	mu          sync.Mutex
	record      *metadata.Record
	recordErr   error
	status      beatpass.FingerprintStatus
	statusErr   error
	metaCalls   int
	statusCalls int
}

func (s *stubAPI) GetTrackMetadata(ctx context.Context, id string) (*metadata.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metaCalls++
	return s.record, s.recordErr
}

func (s *stubAPI) FetchStatus(ctx context.Context, id string) (beatpass.FingerprintStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	return s.status, s.statusErr
}

func (s *stubAPI) CheckStatus(ctx context.Context, id string) beatpass.FingerprintStatus {
	st, _ := s.FetchStatus(ctx, id)
	return st
}

func (s *stubAPI) SavePlaybackURL(context.Context, beatpass.SavePlaybackURLRequest) error { return nil }
func (s *stubAPI) DeleteFingerprint(context.Context, string, string) error               { return nil }
func (s *stubAPI) SaveFingerprint(context.Context, string, string, string) error         { return nil }

func (s *stubAPI) CheckDuplicate(context.Context, string, string) (*beatpass.DuplicateCheck, error) {
	return &beatpass.DuplicateCheck{}, nil
}

func (s *stubAPI) GenerateFingerprint(context.Context, string, string) (*beatpass.GeneratedFingerprint, error) {
	return &beatpass.GeneratedFingerprint{}, nil
}

type recordingPresenter struct {
	mu      sync.Mutex
	renders []View
	done    chan View
}

func (r *recordingPresenter) Render(state readiness.State, v View) error {
	r.mu.Lock()
	r.renders = append(r.renders, v)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- v
	}
	return nil
}

type quietLogger struct{}

func (quietLogger) Info(string, ...interface{})    {}
func (quietLogger) Warning(string, ...interface{}) {}
func (quietLogger) Error(string, ...interface{})   {}
func (quietLogger) Debug(string, ...interface{})   {}
func (quietLogger) Success(string, ...interface{}) {}
func (quietLogger) SetDebugMode(bool)              {}

const url = "https://cdn.example.com/beat.mp3"

var fullForm = metadata.Fields{Key: "A", Scale: "Minor", BPM: "90"}

func TestRefreshStates(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		record *metadata.Record
		status beatpass.FingerprintStatus
		want   readiness.State
	}{
		{"no url", Snapshot{TrackID: "1", Form: fullForm}, nil, beatpass.FingerprintStatus{}, readiness.NoURL},
		{"incomplete", Snapshot{TrackID: "1", PlaybackURL: url, Form: metadata.Fields{Key: "A"}}, nil, beatpass.FingerprintStatus{}, readiness.IncompleteMetadata},
		{"completed from database", Snapshot{TrackID: "1", PlaybackURL: url}, &metadata.Record{KeyName: "A", Scale: "Minor", BPM: "90"}, beatpass.FingerprintStatus{}, readiness.ReadyToScan},
		{"fingerprinted", Snapshot{TrackID: "1", PlaybackURL: url, Form: fullForm}, nil, beatpass.FingerprintStatus{HasFingerprint: true, PlaybackURL: url}, readiness.Fingerprinted},
		{"url changed", Snapshot{TrackID: "1", PlaybackURL: url + "?v=2", Form: fullForm}, nil, beatpass.FingerprintStatus{HasFingerprint: true, PlaybackURL: url}, readiness.ReadyToScan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &stubAPI{record: tt.record, status: tt.status}
			p := &recordingPresenter{}
			d := New(api, p, nil, quietLogger{}, nil)

			view, err := d.Refresh(context.Background(), tt.snap)
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if view.State != tt.want {
				t.Errorf("expected %v, got %v", tt.want, view.State)
			}
			if len(p.renders) != 1 || p.renders[0].State != tt.want {
				t.Errorf("presenter should render once with %v, got %+v", tt.want, p.renders)
			}
		})
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	api := &stubAPI{status: beatpass.FingerprintStatus{HasFingerprint: true, PlaybackURL: url}}
	p := &recordingPresenter{}
	d := New(api, p, nil, quietLogger{}, nil)
	snap := Snapshot{TrackID: "7", PlaybackURL: url, Form: fullForm}

	for i := 0; i < 3; i++ {
		if _, err := d.Refresh(context.Background(), snap); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	if api.metaCalls != 3 || api.statusCalls != 3 {
		t.Errorf("each refresh should poll fresh, got meta=%d status=%d", api.metaCalls, api.statusCalls)
	}
	for _, v := range p.renders {
		if v.State != readiness.Fingerprinted {
			t.Errorf("unexpected state %v", v.State)
		}
	}

	// the server lost the fingerprint: the next refresh must not reuse the old result
	api.status = beatpass.FingerprintStatus{}
	view, _ := d.Refresh(context.Background(), snap)
	if view.State != readiness.ReadyToScan {
		t.Errorf("expected ready-to-scan after status change, got %v", view.State)
	}
}

func TestRefreshDegradesOnNetworkFailure(t *testing.T) {
	api := &stubAPI{
		recordErr: &shared.NetworkError{Op: "get track metadata", Err: errors.New("refused")},
		statusErr: &shared.NetworkError{Op: "check fingerprint status", Err: errors.New("refused")},
	}
	warnings := shared.NewWarningCollector(true)
	d := New(api, &recordingPresenter{}, nil, quietLogger{}, warnings)

	view, err := d.Refresh(context.Background(), Snapshot{TrackID: "3", PlaybackURL: url, Form: fullForm})
	if err != nil {
		t.Fatalf("Refresh should not fail on network errors: %v", err)
	}
	if view.State != readiness.ReadyToScan {
		t.Errorf("expected ready-to-scan, got %v", view.State)
	}
	if warnings.GetWarningCount() != 2 {
		t.Errorf("expected 2 warnings, got %d", warnings.GetWarningCount())
	}
}

func TestRefreshReportsProgressAndKeySuggestion(t *testing.T) {
	guard := protection.NewGuard()
	release, _ := guard.TryAcquire("test")
	defer release()

	d := New(&stubAPI{}, &recordingPresenter{}, guard, quietLogger{}, nil)
	view, _ := d.Refresh(context.Background(), Snapshot{TrackID: "1", PlaybackURL: url, Form: metadata.Fields{Key: "Bb", Scale: "Major", BPM: "100"}})

	if !view.InProgress {
		t.Error("expected in-progress flag")
	}
	if view.KeySuggestion != "A#" {
		t.Errorf("expected key suggestion A#, got %q", view.KeySuggestion)
	}
}

func TestShowOutcomeFailed(t *testing.T) {
	p := &recordingPresenter{}
	d := New(&stubAPI{}, p, nil, quietLogger{}, nil)

	out := protection.Outcome{
		Kind:      protection.OutcomeToSViolation,
		State:     readiness.Failed,
		Err:       &shared.DuplicateConflict{Message: "Matches track 9"},
		Duplicate: beatpass.DuplicateInfo{"track_name": "Other Beat"},
	}
	if err := d.ShowOutcome(Snapshot{TrackID: "9", PlaybackURL: url}, out); err != nil {
		t.Fatalf("ShowOutcome: %v", err)
	}
	if len(p.renders) != 1 {
		t.Fatalf("expected one render, got %d", len(p.renders))
	}
	v := p.renders[0]
	if v.State != readiness.Failed || v.Outcome == nil {
		t.Errorf("unexpected view %+v", v)
	}
	if !v.Status.IsDuplicate || v.Status.IsAuthentic {
		t.Errorf("expected non-authentic duplicate status, got %+v", v.Status)
	}
}

func TestConsolePresenterPanels(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		state readiness.State
		view  View
		want  []string
	}{
		{readiness.NoURL, View{TrackID: "1"}, []string{"No playback URL"}},
		{readiness.IncompleteMetadata, View{TrackID: "1", PlaybackURL: url, Completeness: metadata.Evaluate(metadata.Fields{Key: "A", BPM: "500"}, nil)}, []string{"Metadata incomplete", "Scale, BPM", "between 40 and 300"}},
		{readiness.ReadyToScan, View{TrackID: "1", PlaybackURL: url, Status: beatpass.FingerprintStatus{HasFingerprint: true}}, []string{"Ready to scan", "Rescan", "bpguard protect 1"}},
		{readiness.Fingerprinted, View{TrackID: "1", PlaybackURL: url, Status: beatpass.FingerprintStatus{HasFingerprint: true, FingerprintHash: "deadbeef"}}, []string{"Protected by BeatPassID", "deadbeef"}},
		{readiness.Failed, View{TrackID: "1", Outcome: &protection.Outcome{Message: "Matches another producer", Duplicate: beatpass.DuplicateInfo{"artist": "someone"}}}, []string{"Protection failed", "Matches another producer", "artist: someone"}},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewConsolePresenter(&buf).Render(tt.state, tt.view); err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestAttachRefreshesOnEvents(t *testing.T) {
	bus := events.NewBus()
	p := &recordingPresenter{done: make(chan View, 4)}
	d := New(&stubAPI{}, p, nil, quietLogger{}, nil)

	var mu sync.Mutex
	snap := Snapshot{TrackID: "5", Form: fullForm}
	detach := d.Attach(context.Background(), bus, 10*time.Millisecond, func() Snapshot {
		mu.Lock()
		defer mu.Unlock()
		return snap
	})
	defer detach()

	mu.Lock()
	snap.PlaybackURL = url
	mu.Unlock()
	for i := 0; i < 5; i++ {
		bus.Publish(events.Event{Kind: events.PlaybackURLChanged, TrackID: "5"})
	}

	select {
	case v := <-p.done:
		if v.State != readiness.ReadyToScan {
			t.Errorf("expected ready-to-scan, got %v", v.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard was not refreshed")
	}

	// events for other tracks are ignored
	bus.Publish(events.Event{Kind: events.MetadataChanged, TrackID: "6"})
	select {
	case v := <-p.done:
		t.Errorf("unexpected refresh for another track: %+v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAttachIgnoresOtherTrackAtEndOfBurst(t *testing.T) {
	bus := events.NewBus()
	p := &recordingPresenter{done: make(chan View, 4)}
	d := New(&stubAPI{}, p, nil, quietLogger{}, nil)

	detach := d.Attach(context.Background(), bus, 20*time.Millisecond, func() Snapshot {
		return Snapshot{TrackID: "5", PlaybackURL: url, Form: fullForm}
	})
	defer detach()

	bus.Publish(events.Event{Kind: events.MetadataChanged, TrackID: "5"})
	bus.Publish(events.Event{Kind: events.MetadataChanged, TrackID: "6"})

	select {
	case v := <-p.done:
		if v.TrackID != "5" {
			t.Errorf("expected refresh for track 5, got %q", v.TrackID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh for this track was dropped")
	}
}
