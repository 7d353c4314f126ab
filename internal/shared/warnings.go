package shared

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// WarningType represents different types of warnings
type WarningType int

const (
	MetadataFetchWarning WarningType = iota
	InvalidBPMWarning
	StatusPollWarning
	PendingBufferWarning
)

// Warning represents a single warning with context
type Warning struct {
	Type    WarningType
	Message string
	Context string // track context
	Details string // underlying error
}

// WarningCollector collects non-fatal problems during batch operations.
// It is safe for concurrent use.
type WarningCollector struct {
	mu       sync.Mutex
	warnings []Warning
	enabled  bool
}

// NewWarningCollector creates a new warning collector
func NewWarningCollector(enabled bool) *WarningCollector {
	return &WarningCollector{
		warnings: make([]Warning, 0),
		enabled:  enabled,
	}
}

// AddWarning adds a warning to the collector
func (wc *WarningCollector) AddWarning(warningType WarningType, context, message, details string) {
	if !wc.enabled {
		return
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.warnings = append(wc.warnings, Warning{
		Type:    warningType,
		Message: message,
		Context: context,
		Details: details,
	})
}

// AddMetadataFetchWarning records a track whose metadata could not be fetched
func (wc *WarningCollector) AddMetadataFetchWarning(trackID, details string) {
	wc.AddWarning(MetadataFetchWarning, fmt.Sprintf("track %s", trackID), "Could not fetch track metadata", details)
}

// AddInvalidBPMWarning records a stored BPM outside the accepted range
func (wc *WarningCollector) AddInvalidBPMWarning(trackID, bpm string) {
	wc.AddWarning(InvalidBPMWarning, fmt.Sprintf("track %s (bpm %q)", trackID, bpm), "Stored BPM is not valid", "")
}

// AddStatusPollWarning records a failed fingerprint status poll
func (wc *WarningCollector) AddStatusPollWarning(trackID, details string) {
	wc.AddWarning(StatusPollWarning, fmt.Sprintf("track %s", trackID), "Fingerprint status unavailable", details)
}

// AddPendingBufferWarning records a failure touching the pending-submission buffer
func (wc *WarningCollector) AddPendingBufferWarning(context, details string) {
	wc.AddWarning(PendingBufferWarning, context, "Pending submission buffer unavailable", details)
}

// HasWarnings returns true if there are any warnings
func (wc *WarningCollector) HasWarnings() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return len(wc.warnings) > 0
}

// GetWarningCount returns the total number of warnings
func (wc *WarningCollector) GetWarningCount() int {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return len(wc.warnings)
}

// GetWarningsByType returns warnings grouped by type
func (wc *WarningCollector) GetWarningsByType() map[WarningType][]Warning {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	grouped := make(map[WarningType][]Warning)
	for _, warning := range wc.warnings {
		grouped[warning.Type] = append(grouped[warning.Type], warning)
	}
	return grouped
}

// PrintSummary prints a formatted summary of all warnings
func (wc *WarningCollector) PrintSummary() {
	count := wc.GetWarningCount()
	if count == 0 {
		return
	}

	ColorWarning.Printf("\n⚠️  Warning Summary (%d warnings):\n", count)
	ColorWarning.Println(strings.Repeat("─", 50))

	grouped := wc.GetWarningsByType()

	var types []WarningType
	for warningType := range grouped {
		types = append(types, warningType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, warningType := range types {
		wc.printWarningTypeSection(warningType, grouped[warningType])
	}
}

// printWarningTypeSection prints warnings for a specific type
func (wc *WarningCollector) printWarningTypeSection(warningType WarningType, warnings []Warning) {
	if len(warnings) == 0 {
		return
	}

	ColorWarning.Printf("\n%s (%d):\n", wc.getWarningTypeTitle(warningType), len(warnings))

	contextCounts := make(map[string]int)
	for _, warning := range warnings {
		contextCounts[warning.Context]++
	}

	var contexts []string
	for context := range contextCounts {
		contexts = append(contexts, context)
	}
	sort.Strings(contexts)

	for _, context := range contexts {
		count := contextCounts[context]
		if count > 1 {
			ColorWarning.Printf("  • %s (×%d)\n", context, count)
		} else {
			ColorWarning.Printf("  • %s\n", context)
		}
	}
}

// getWarningTypeTitle returns a human-readable title for a warning type
func (wc *WarningCollector) getWarningTypeTitle(warningType WarningType) string {
	switch warningType {
	case MetadataFetchWarning:
		return "Metadata Fetch Failures"
	case InvalidBPMWarning:
		return "Invalid Stored BPM Values"
	case StatusPollWarning:
		return "Fingerprint Status Poll Failures"
	case PendingBufferWarning:
		return "Pending Submission Buffer Problems"
	default:
		return "Other Warnings"
	}
}
