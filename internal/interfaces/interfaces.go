package interfaces

import (
	"context"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/config"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
	"beatpass-guard/internal/store"
)

// TrackAPI defines the remote BeatPass endpoints the engine depends on
type TrackAPI interface {
	// GetTrackMetadata fetches previously persisted key/scale/BPM
	GetTrackMetadata(ctx context.Context, trackID string) (*metadata.Record, error)

	// CheckStatus polls fingerprint status; failures yield the zero status
	CheckStatus(ctx context.Context, trackID string) beatpass.FingerprintStatus

	// FetchStatus polls fingerprint status and reports failures
	FetchStatus(ctx context.Context, trackID string) (beatpass.FingerprintStatus, error)

	// SavePlaybackURL persists the playback URL, metadata and licensing
	SavePlaybackURL(ctx context.Context, req beatpass.SavePlaybackURLRequest) error

	// DeleteFingerprint scrubs a stored fingerprint
	DeleteFingerprint(ctx context.Context, trackID, reason string) error

	// CheckDuplicate submits a fingerprint hash for duplicate detection
	CheckDuplicate(ctx context.Context, fingerprintHash, trackID string) (*beatpass.DuplicateCheck, error)

	// SaveFingerprint stores a generated fingerprint
	SaveFingerprint(ctx context.Context, trackID, fingerprint, fingerprintHash string) error

	// GenerateFingerprint fingerprints the audio behind a playback URL
	GenerateFingerprint(ctx context.Context, playbackURL, trackID string) (*beatpass.GeneratedFingerprint, error)
}

// PendingStore defines the pending-submission buffer
type PendingStore interface {
	Put(ctx context.Context, req beatpass.SavePlaybackURLRequest) (*store.PendingSubmission, error)
	Get(ctx context.Context) (*store.PendingSubmission, error)
	Clear(ctx context.Context) error
}

// ConfigService defines the interface for configuration management
type ConfigService interface {
	// LoadConfig loads configuration from file
	LoadConfig(configFile string) (*config.Config, error)

	// SaveConfig saves configuration to file
	SaveConfig(configFile string, config *config.Config) error

	// ValidateConfig validates configuration settings
	ValidateConfig(config *config.Config) error

	// GetDefaultConfig returns a default configuration
	GetDefaultConfig() *config.Config

	// EnsureConfigExists creates a default config file if it doesn't exist
	EnsureConfigExists(configFile string) error
}

// LoggerService defines the interface for logging operations
type LoggerService interface {
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Debug(message string, args ...interface{})
	Success(message string, args ...interface{})
	SetDebugMode(enabled bool)
}

// NotifierService shows transient user-facing notifications
type NotifierService interface {
	Success(message string)
	Error(message string)
	Warning(message string)
	Info(message string)
	Current() (shared.Notification, bool)
}

// WarningCollectorService defines the interface for warning collection
type WarningCollectorService interface {
	AddMetadataFetchWarning(trackID, details string)
	AddInvalidBPMWarning(trackID, bpm string)
	AddStatusPollWarning(trackID, details string)
	AddPendingBufferWarning(context, details string)
	HasWarnings() bool
	GetWarningCount() int
	PrintSummary()
}
