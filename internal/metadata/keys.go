package metadata

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const keySimilarityThreshold = 0.85

// CanonicalKeys lists the key names stored by BeatPass
var CanonicalKeys = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var enharmonics = map[string]string{
	"db": "C#", "eb": "D#", "gb": "F#", "ab": "G#", "bb": "A#",
	"e#": "F", "b#": "C", "fb": "E", "cb": "B",
}

var spelled = map[string]string{
	"c": "C", "c sharp": "C#", "d": "D", "d sharp": "D#", "e": "E", "f": "F",
	"f sharp": "F#", "g": "G", "g sharp": "G#", "a": "A", "a sharp": "A#", "b": "B",
	"d flat": "C#", "e flat": "D#", "g flat": "F#", "a flat": "G#", "b flat": "A#",
}

// SuggestKey maps free-form key input to a canonical key name.
// It is a hint for producers and does not affect completeness.
func SuggestKey(input string) (string, bool) {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return "", false
	}
	raw = strings.NewReplacer("♯", "#", "♭", "b", "-", " ", "_", " ").Replace(raw)
	raw = strings.Join(strings.Fields(raw), " ")
	for _, suffix := range []string{" major", " minor", " maj", " min"} {
		raw = strings.TrimSuffix(raw, suffix)
	}

	compact := strings.NewReplacer(" sharp", "#", " flat", "b", " ", "").Replace(raw)
	for _, key := range CanonicalKeys {
		if strings.EqualFold(compact, key) {
			return key, true
		}
	}
	if key, ok := enharmonics[compact]; ok {
		return key, true
	}
	if key, ok := spelled[raw]; ok {
		return key, true
	}

	var best string
	var bestScore float64
	jw := metrics.NewJaroWinkler()
	for alias, key := range spelled {
		if len(alias) < 3 {
			continue
		}
		score := strutil.Similarity(raw, alias, jw)
		if score > bestScore || (score == bestScore && key < best) {
			best, bestScore = key, score
		}
	}
	if bestScore >= keySimilarityThreshold {
		return best, true
	}
	return "", false
}
