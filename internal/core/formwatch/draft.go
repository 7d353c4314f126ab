// Package formwatch observes a JSON form draft on disk and reports field
// changes on the event bus.
package formwatch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// Draft is the track form as last saved by the editor
type Draft struct {
	TrackID     string
	PlaybackURL string
	Form        metadata.Fields
	Licensing   metadata.LicensingInfo
}

type rawDraft struct {
	TrackID interface{} `json:"track_id"`
	Src     string      `json:"src"`
	KeyName string      `json:"key_name"`
	Scale   string      `json:"scale"`
	BPM     interface{} `json:"bpm"`

	LicensingType      string      `json:"licensing_type"`
	ExclusivePrice     interface{} `json:"exclusive_price"`
	ExclusiveCurrency  string      `json:"exclusive_currency"`
	ExclusiveStatus    string      `json:"exclusive_status"`
	ExclusiveBuyerInfo string      `json:"exclusive_buyer_info"`
}

// ParseDraft decodes a draft document
func ParseDraft(data []byte) (*Draft, error) {
	var raw rawDraft
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	d := &Draft{
		TrackID:     strings.TrimSpace(shared.AnyToString(raw.TrackID)),
		PlaybackURL: strings.TrimSpace(raw.Src),
		Form: metadata.Fields{
			Key:   strings.TrimSpace(raw.KeyName),
			Scale: strings.TrimSpace(raw.Scale),
			BPM:   strings.TrimSpace(shared.AnyToString(raw.BPM)),
		},
		Licensing: metadata.LicensingInfo{
			LicensingType:      raw.LicensingType,
			ExclusivePrice:     shared.AnyToString(raw.ExclusivePrice),
			ExclusiveCurrency:  raw.ExclusiveCurrency,
			ExclusiveStatus:    raw.ExclusiveStatus,
			ExclusiveBuyerInfo: raw.ExclusiveBuyerInfo,
		},
	}
	if d.TrackID == "" {
		return nil, fmt.Errorf("draft has no track_id")
	}
	return d, nil
}

// LoadDraft reads and decodes the draft at path
func LoadDraft(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	return ParseDraft(data)
}
