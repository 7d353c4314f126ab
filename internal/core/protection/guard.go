package protection

import (
	"context"
	"sync"
	"time"

	"beatpass-guard/internal/shared"
)

// Guard marks that a protection operation is running. It is owned by the
// service container and handed to every component that must respect it,
// so there is no ambient global flag.
type Guard struct {
	mu     sync.Mutex
	active bool
	owner  string
	since  time.Time
}

// NewGuard creates an idle guard
func NewGuard() *Guard {
	return &Guard{}
}

// TryAcquire claims the guard for owner. The returned release func is
// idempotent and must be called (normally deferred) by the holder.
func (g *Guard) TryAcquire(owner string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return func() {}, false
	}
	g.active = true
	g.owner = owner
	g.since = time.Now()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.active = false
			g.owner = ""
			g.since = time.Time{}
			g.mu.Unlock()
		})
	}, true
}

// InProgress reports whether an operation currently holds the guard
func (g *Guard) InProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Holder returns the current owner and since when it has held the guard
func (g *Guard) Holder() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner, g.since
}

// SubmitGate is what ordinary form submissions go through. A submission is
// refused while a protection operation is in flight.
type SubmitGate struct {
	guard *Guard
}

// NewSubmitGate creates a gate over guard
func NewSubmitGate(guard *Guard) *SubmitGate {
	return &SubmitGate{guard: guard}
}

// Submit runs submit unless a protection operation holds the guard
func (s *SubmitGate) Submit(ctx context.Context, submit func(context.Context) error) error {
	release, ok := s.guard.TryAcquire("form-submit")
	if !ok {
		return shared.ErrOperationInProgress
	}
	defer release()
	return submit(ctx)
}
