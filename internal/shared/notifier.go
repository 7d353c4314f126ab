package shared

import (
	"io"
	"sync"
	"time"
)

// DefaultNotificationDuration is how long a notification stays visible.
const DefaultNotificationDuration = 5 * time.Second

// NotificationKind categorizes user-facing notifications
type NotificationKind int

const (
	NotifyInfo NotificationKind = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

func (k NotificationKind) String() string {
	switch k {
	case NotifySuccess:
		return "success"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a single transient message
type Notification struct {
	Kind      NotificationKind
	Message   string
	ShownAt   time.Time
	ExpiresAt time.Time
}

// Notifier shows toast-style notifications. At most one is visible at a time:
// showing a new notification replaces the previous one.
type Notifier struct {
	mu       sync.Mutex
	out      io.Writer
	duration time.Duration
	now      func() time.Time
	current  *Notification
}

// NewNotifier creates a notifier writing to out. A nil writer keeps notifications silent.
func NewNotifier(out io.Writer, duration time.Duration) *Notifier {
	if duration <= 0 {
		duration = DefaultNotificationDuration
	}
	return &Notifier{
		out:      out,
		duration: duration,
		now:      time.Now,
	}
}

// SetClock replaces the time source (tests)
func (n *Notifier) SetClock(now func() time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

// Show replaces any visible notification with a new one
func (n *Notifier) Show(kind NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	shownAt := n.now()
	n.current = &Notification{
		Kind:      kind,
		Message:   message,
		ShownAt:   shownAt,
		ExpiresAt: shownAt.Add(n.duration),
	}

	if n.out == nil {
		return
	}
	switch kind {
	case NotifySuccess:
		ColorSuccess.Fprintf(n.out, "✅ %s\n", message)
	case NotifyWarning:
		ColorWarning.Fprintf(n.out, "⚠️ %s\n", message)
	case NotifyError:
		ColorError.Fprintf(n.out, "❌ %s\n", message)
	default:
		ColorInfo.Fprintf(n.out, "ℹ️ %s\n", message)
	}
}

func (n *Notifier) Success(message string) { n.Show(NotifySuccess, message) }
func (n *Notifier) Error(message string)   { n.Show(NotifyError, message) }
func (n *Notifier) Warning(message string) { n.Show(NotifyWarning, message) }
func (n *Notifier) Info(message string)    { n.Show(NotifyInfo, message) }

// Current returns the visible notification, auto-dismissing it once expired
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Notification{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notification{}, false
	}
	return *n.current, true
}

// Dismiss hides the visible notification
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	n.current = nil
	n.mu.Unlock()
}
