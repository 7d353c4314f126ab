// Package events carries typed change notifications between the form
// observer, the protection orchestrator and dashboards.
package events

import (
	"sync"
	"time"

	"beatpass-guard/internal/metadata"
)

// Kind identifies what changed
type Kind int

const (
	PlaybackURLChanged Kind = iota
	MetadataChanged
	FingerprintStatusChanged
	OperationFinished
)

func (k Kind) String() string {
	switch k {
	case PlaybackURLChanged:
		return "playback-url-changed"
	case MetadataChanged:
		return "metadata-changed"
	case FingerprintStatusChanged:
		return "fingerprint-status-changed"
	case OperationFinished:
		return "operation-finished"
	default:
		return "unknown"
	}
}

// Event is a single change notification
type Event struct {
	Kind        Kind
	TrackID     string
	PlaybackURL string
	Form        metadata.Fields
	Detail      string
	At          time.Time
}

// Handler receives events. Handlers run synchronously on the publisher's goroutine.
type Handler func(Event)

type subscription struct {
	id      int
	kind    Kind
	all     bool
	handler Handler
}

// Bus is a minimal typed publish/subscribe hub
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for one kind and returns a function that removes it
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	return b.add(subscription{kind: kind, handler: handler})
}

// SubscribeAll registers handler for every kind
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.add(subscription{all: true, handler: handler})
}

func (b *Bus) add(sub subscription) func() {
	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == sub.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every matching subscriber in subscription order
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	matching := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.all || s.kind == ev.Kind {
			matching = append(matching, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matching {
		h(ev)
	}
}

// Debounce returns a handler that forwards only the last event of a burst,
// after d has passed without a new one. stop cancels any pending delivery.
func Debounce(d time.Duration, fn Handler) (handler Handler, stop func()) {
	var mu sync.Mutex
	var timer *time.Timer

	handler = func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() { fn(ev) })
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return handler, stop
}
