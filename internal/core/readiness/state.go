// Package readiness classifies a track into the dashboard state that decides
// which protection panel a producer sees.
package readiness

import (
	"strings"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/metadata"
)

// State is one of the five mutually exclusive dashboard states
type State int

const (
	NoURL State = iota
	IncompleteMetadata
	ReadyToScan
	Fingerprinted
	// Failed is only reached through a rejected protection run, never computed.
	Failed
)

func (s State) String() string {
	switch s {
	case NoURL:
		return "no-url"
	case IncompleteMetadata:
		return "incomplete-metadata"
	case ReadyToScan:
		return "ready-to-scan"
	case Fingerprinted:
		return "fingerprinted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ComputeState derives the readiness state. Guards are evaluated in priority
// order and the first match wins. A fingerprint taken for a different URL
// requires a rescan.
func ComputeState(currentURL string, meta metadata.Completeness, status beatpass.FingerprintStatus) State {
	url := strings.TrimSpace(currentURL)
	switch {
	case url == "":
		return NoURL
	case !meta.IsComplete:
		return IncompleteMetadata
	case !status.HasFingerprint || url != strings.TrimSpace(status.PlaybackURL):
		return ReadyToScan
	default:
		return Fingerprinted
	}
}
