package shared

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNotifierKeepsOneVisible(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf, time.Second)
	now := time.Unix(1000, 0)
	n.SetClock(func() time.Time { return now })

	n.Info("first")
	n.Error("second")

	got, ok := n.Current()
	if !ok {
		t.Fatal("expected a visible notification")
	}
	if got.Kind != NotifyError || got.Message != "second" {
		t.Errorf("expected the latest notification, got %+v", got)
	}
	if !strings.Contains(buf.String(), "second") {
		t.Errorf("expected output to contain the message, got %q", buf.String())
	}

	now = now.Add(time.Second)
	if _, ok := n.Current(); ok {
		t.Error("expected notification to expire")
	}
}

func TestNotifierDismiss(t *testing.T) {
	n := NewNotifier(nil, 0)
	n.Success("done")
	n.Dismiss()
	if _, ok := n.Current(); ok {
		t.Error("expected no notification after Dismiss")
	}
}

func TestIsRetryableHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&HTTPError{StatusCode: http.StatusServiceUnavailable}, true},
		{&HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{&HTTPError{StatusCode: http.StatusNotFound}, false},
		{&NetworkError{Op: "get", Err: errors.New("timeout"), Timeout: true}, true},
		{&NetworkError{Op: "get", Err: errors.New("refused")}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableHTTPError(tt.err); got != tt.want {
			t.Errorf("IsRetryableHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoffForHTTP(context.Background(), 3, time.Millisecond, time.Millisecond, func() error {
		calls++
		return &HTTPError{StatusCode: http.StatusBadRequest}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoffRetriesTransient(t *testing.T) {
	calls := 0
	err := RetryWithBackoffForHTTP(context.Background(), 3, time.Millisecond, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: http.StatusBadGateway}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestWarningCollectorDisabled(t *testing.T) {
	wc := NewWarningCollector(false)
	wc.AddMetadataFetchWarning("1", "boom")
	if wc.HasWarnings() {
		t.Error("disabled collector should not record warnings")
	}

	wc = NewWarningCollector(true)
	wc.AddMetadataFetchWarning("1", "boom")
	wc.AddInvalidBPMWarning("2", "999")
	if got := wc.GetWarningCount(); got != 2 {
		t.Errorf("expected 2 warnings, got %d", got)
	}
}
