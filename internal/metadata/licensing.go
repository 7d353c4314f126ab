package metadata

// Licensing types and exclusive statuses understood by the track form
const (
	LicensingNonExclusiveOnly = "non_exclusive_only"
	LicensingExclusiveAllowed = "exclusive_allowed"

	ExclusiveNotAvailable = "not_available"
	ExclusiveAvailable    = "available"
	ExclusiveSold         = "sold"
)

// LicensingInfo carries the licensing fields submitted alongside the playback URL
type LicensingInfo struct {
	LicensingType      string `json:"licensing_type"`
	ExclusivePrice     string `json:"exclusive_price"`
	ExclusiveCurrency  string `json:"exclusive_currency"`
	ExclusiveStatus    string `json:"exclusive_status"`
	ExclusiveBuyerInfo string `json:"exclusive_buyer_info"`
}

// Normalize returns a copy safe to submit. Non-exclusive-only tracks never
// carry an exclusive price and are never available exclusively.
func (l LicensingInfo) Normalize() LicensingInfo {
	if l.LicensingType == LicensingNonExclusiveOnly {
		l.ExclusivePrice = ""
		l.ExclusiveStatus = ExclusiveNotAvailable
	}
	return l
}
