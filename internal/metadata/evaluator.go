// Package metadata decides whether a track's key, scale and BPM are complete
// enough to be fingerprinted.
package metadata

import (
	"strconv"
	"strings"

	"beatpass-guard/internal/shared"
)

const (
	MinBPM = 40
	MaxBPM = 300
)

// Field names as they are shown to producers
const (
	FieldKey   = "Key"
	FieldScale = "Scale"
	FieldBPM   = "BPM"
)

// Source records where an evaluated value came from
type Source string

const (
	SourceForm     Source = "form"
	SourceDatabase Source = "database"
	SourceMissing  Source = "missing"
)

// Fields are the raw values currently entered in the track form
type Fields struct {
	Key   string `json:"key_name"`
	Scale string `json:"scale"`
	BPM   string `json:"bpm"`
}

// Record is the metadata previously persisted for a track.
// BPM arrives as a number or a string depending on the row.
type Record struct {
	KeyName string      `json:"key_name"`
	Scale   string      `json:"scale"`
	BPM     interface{} `json:"bpm"`
}

// BPMString returns the stored BPM as text
func (r *Record) BPMString() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(shared.AnyToString(r.BPM))
}

// Completeness is the evaluated view of a track's metadata
type Completeness struct {
	Key        string            `json:"key"`
	Scale      string            `json:"scale"`
	BPM        string            `json:"bpm"`
	HasKey     bool              `json:"hasKey"`
	HasScale   bool              `json:"hasScale"`
	HasBPM     bool              `json:"hasBPM"`
	IsComplete bool              `json:"isComplete"`
	Missing    []string          `json:"missing"`
	Sources    map[string]Source `json:"sources"`
}

// ValidBPM reports whether s is an integer in [MinBPM, MaxBPM]
func ValidBPM(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return n >= MinBPM && n <= MaxBPM
}

// Evaluate merges form values over the stored record and reports completeness.
// A non-empty trimmed form value always wins over the stored one.
func Evaluate(form Fields, db *Record) Completeness {
	var stored Record
	if db != nil {
		stored = *db
	}

	key, keySrc := pick(form.Key, stored.KeyName)
	scale, scaleSrc := pick(form.Scale, stored.Scale)
	bpm, bpmSrc := pick(form.BPM, stored.BPMString())

	c := Completeness{
		Key:      key,
		Scale:    scale,
		BPM:      bpm,
		HasKey:   key != "",
		HasScale: scale != "",
		HasBPM:   ValidBPM(bpm),
		Missing:  []string{},
		Sources: map[string]Source{
			FieldKey:   keySrc,
			FieldScale: scaleSrc,
			FieldBPM:   bpmSrc,
		},
	}
	c.IsComplete = c.HasKey && c.HasScale && c.HasBPM

	if !c.HasKey {
		c.Missing = append(c.Missing, FieldKey)
	}
	if !c.HasScale {
		c.Missing = append(c.Missing, FieldScale)
	}
	if !c.HasBPM {
		c.Missing = append(c.Missing, FieldBPM)
	}
	return c
}

func pick(formValue, dbValue string) (string, Source) {
	if v := strings.TrimSpace(formValue); v != "" {
		return v, SourceForm
	}
	if v := strings.TrimSpace(dbValue); v != "" {
		return v, SourceDatabase
	}
	return "", SourceMissing
}
