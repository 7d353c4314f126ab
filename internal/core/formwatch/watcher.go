package formwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/interfaces"
)

// DefaultSettle is how long the watcher waits for writes to a draft to settle
const DefaultSettle = 100 * time.Millisecond

// Watcher publishes PlaybackURLChanged and MetadataChanged when the draft
// file's relevant fields change
type Watcher struct {
	path   string
	bus    *events.Bus
	logger interfaces.LoggerService
	settle time.Duration

	mu      sync.RWMutex
	current *Draft
}

// NewWatcher loads the draft at path so Current is usable immediately
func NewWatcher(path string, bus *events.Bus, logger interfaces.LoggerService) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve draft path: %w", err)
	}
	draft, err := LoadDraft(abs)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:    abs,
		bus:     bus,
		logger:  logger,
		settle:  DefaultSettle,
		current: draft,
	}, nil
}

// SetSettle changes the write-settle delay
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Current returns the last successfully parsed draft
func (w *Watcher) Current() Draft {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return *w.current
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that save by rename are still observed.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch draft directory: %w", err)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.settle, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("Draft watcher error: %v", err)
		}
	}
}

// reload parses the draft and publishes one event per changed concern
func (w *Watcher) reload() {
	next, err := LoadDraft(w.path)
	if err != nil {
		// half-written files are common; the next write event retries
		w.logger.Debug("Ignoring unreadable draft: %v", err)
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	w.mu.Unlock()

	for _, kind := range Diff(prev, next) {
		w.bus.Publish(events.Event{
			Kind:        kind,
			TrackID:     next.TrackID,
			PlaybackURL: next.PlaybackURL,
			Form:        next.Form,
		})
	}
}

// Diff lists the event kinds implied by moving from prev to next. A track
// switch reports both kinds.
func Diff(prev, next *Draft) []events.Kind {
	if prev == nil || next == nil || prev.TrackID != next.TrackID {
		return []events.Kind{events.PlaybackURLChanged, events.MetadataChanged}
	}
	var kinds []events.Kind
	if prev.PlaybackURL != next.PlaybackURL {
		kinds = append(kinds, events.PlaybackURLChanged)
	}
	if prev.Form != next.Form || prev.Licensing != next.Licensing {
		kinds = append(kinds, events.MetadataChanged)
	}
	return kinds
}
