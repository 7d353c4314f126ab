package beatpass

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// Actions accepted by key_bpm_handler.php
const (
	ActionSavePlaybackURL   = "save_playback_url"
	ActionDeleteFingerprint = "delete_fingerprint"
	ActionSaveFingerprint   = "save_fingerprint"
)

// DuplicateInfo describes the track an uploaded fingerprint collided with.
// Its shape is owned by the server, so it is kept as a loose object.
type DuplicateInfo map[string]interface{}

// Get returns a field rendered as text
func (d DuplicateInfo) Get(key string) string {
	if d == nil {
		return ""
	}
	return shared.AnyToString(d[key])
}

// UnmarshalJSON accepts an object, or the array PHP emits for empty and list
// values. An array yields its first object; null, scalars and empty arrays yield nil.
func (d *DuplicateInfo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*d = nil
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '{':
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*d = m
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		for _, item := range items {
			var m map[string]interface{}
			if json.Unmarshal(item, &m) == nil && m != nil {
				*d = m
				return nil
			}
		}
	}
	return nil
}

// Keys returns the field names in stable order
func (d DuplicateInfo) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FingerprintStatus is the server's view of a track's fingerprint
type FingerprintStatus struct {
	HasFingerprint  bool          `json:"hasFingerprint"`
	IsDuplicate     bool          `json:"isDuplicate"`
	IsAuthentic     bool          `json:"isAuthentic"`
	DuplicateCount  int           `json:"duplicateCount"`
	PlaybackURL     string        `json:"playbackUrl"`
	Fingerprint     string        `json:"fingerprint"`
	FingerprintHash string        `json:"fingerprint_hash"`
	DuplicateInfo   DuplicateInfo `json:"duplicateInfo"`
}

// rawFingerprintStatus tolerates PHP's loose scalar typing
type rawFingerprintStatus struct {
	HasFingerprint  interface{}   `json:"hasFingerprint"`
	IsDuplicate     interface{}   `json:"isDuplicate"`
	IsAuthentic     interface{}   `json:"isAuthentic"`
	DuplicateCount  interface{}   `json:"duplicateCount"`
	PlaybackURL     string        `json:"playbackUrl"`
	Fingerprint     string        `json:"fingerprint"`
	FingerprintHash string        `json:"fingerprint_hash"`
	DuplicateInfo   DuplicateInfo `json:"duplicateInfo"`
}

func (r rawFingerprintStatus) normalize() FingerprintStatus {
	count, _ := strconv.Atoi(shared.AnyToString(r.DuplicateCount))
	return FingerprintStatus{
		HasFingerprint:  truthy(r.HasFingerprint),
		IsDuplicate:     truthy(r.IsDuplicate),
		IsAuthentic:     truthy(r.IsAuthentic),
		DuplicateCount:  count,
		PlaybackURL:     r.PlaybackURL,
		Fingerprint:     r.Fingerprint,
		FingerprintHash: r.FingerprintHash,
		DuplicateInfo:   r.DuplicateInfo,
	}
}

// truthy mirrors PHP truthiness for values the handler emits (true, 1, "1", "true")
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s != "" && s != "0" && s != "false"
	default:
		return false
	}
}

// DuplicateCheck is the result of submitting a fingerprint hash for comparison
type DuplicateCheck struct {
	IsDuplicate   bool          `json:"isDuplicate"`
	IsAuthentic   bool          `json:"isAuthentic"`
	DuplicateInfo DuplicateInfo `json:"duplicateInfo"`
	Message       string        `json:"message"`
}

// GeneratedFingerprint is returned by fingerprint.php
type GeneratedFingerprint struct {
	Fingerprint     string `json:"fingerprint"`
	FingerprintHash string `json:"fingerprint_hash"`
}

// SavePlaybackURLRequest is the payload persisted before fingerprinting
type SavePlaybackURLRequest struct {
	TrackID     string                 `json:"track_id"`
	PlaybackURL string                 `json:"playback_url"`
	Metadata    metadata.Fields        `json:"metadata"`
	Licensing   metadata.LicensingInfo `json:"licensing"`
}

// envelope is the generic success/failure wrapper used by both endpoints
type envelope struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	return strings.EqualFold(e.Status, "success")
}

func (e envelope) failureMessage() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Status
}
