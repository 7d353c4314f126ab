package shared

import (
	"fmt"
	"strings"
)

// ErrOperationInProgress is returned when a protection operation already holds the guard.
var ErrOperationInProgress = fmt.Errorf("a track protection operation is already in progress")

// ValidationError is raised before any network work when required input is missing.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Missing, ", "))
}

// NetworkError wraps transport failures (connection refused, DNS, timeouts).
type NetworkError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DuplicateConflict reports that a submitted fingerprint matches an existing one.
// Authentic duplicates are informational; the rest are ToS violations.
type DuplicateConflict struct {
	Authentic bool
	Message   string
}

func (e *DuplicateConflict) Error() string {
	kind := "ToS violation"
	if e.Authentic {
		kind = "authentic duplicate"
	}
	if e.Message == "" {
		return fmt.Sprintf("duplicate fingerprint (%s)", kind)
	}
	return fmt.Sprintf("duplicate fingerprint (%s): %s", kind, e.Message)
}

// IsToSViolation reports whether the conflict must scrub the submitted fingerprint.
func (e *DuplicateConflict) IsToSViolation() bool {
	return !e.Authentic
}

// UnknownServerError covers malformed or unexpected response envelopes.
type UnknownServerError struct {
	Op      string
	Message string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("%s: unexpected server response: %s", e.Op, e.Message)
}

// ServerRejectedError is a well-formed envelope reporting failure (success=false).
type ServerRejectedError struct {
	Op      string
	Message string
}

func (e *ServerRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected by server", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
