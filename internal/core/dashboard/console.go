package dashboard

import (
	"fmt"
	"io"
	"strings"

	"beatpass-guard/internal/core/readiness"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// ConsolePresenter renders the dashboard as colored text panels
type ConsolePresenter struct {
	out io.Writer
}

// NewConsolePresenter creates a presenter writing to out
func NewConsolePresenter(out io.Writer) *ConsolePresenter {
	return &ConsolePresenter{out: out}
}

func (p *ConsolePresenter) Render(state readiness.State, v View) error {
	var b strings.Builder

	shared.ColorAccent.Fprintf(&b, "🛡️  BeatPassID · track %s\n", v.TrackID)
	if v.InProgress {
		shared.ColorWarning.Fprintln(&b, "⏳ A protection run is in progress...")
	}

	switch state {
	case readiness.NoURL:
		p.renderNoURL(&b, v)
	case readiness.IncompleteMetadata:
		p.renderIncomplete(&b, v)
	case readiness.ReadyToScan:
		p.renderReady(&b, v)
	case readiness.Fingerprinted:
		p.renderFingerprinted(&b, v)
	case readiness.Failed:
		p.renderFailed(&b, v)
	default:
		return fmt.Errorf("unknown readiness state %d", state)
	}

	if v.Outcome != nil && v.Outcome.Err != nil && state != readiness.Failed {
		shared.ColorError.Fprintf(&b, "   Last run: %s\n", v.Outcome.Err)
	}
	b.WriteString("\n")

	_, err := io.WriteString(p.out, b.String())
	return err
}

func (p *ConsolePresenter) renderNoURL(b *strings.Builder, v View) {
	shared.ColorMuted.Fprintln(b, "🔗 No playback URL")
	fmt.Fprintln(b, "   Add a playback URL to enable Sample-Safe™ protection for this track.")
}

func (p *ConsolePresenter) renderIncomplete(b *strings.Builder, v View) {
	shared.ColorWarning.Fprintln(b, "📝 Metadata incomplete")
	fmt.Fprintf(b, "   Playback URL: %s\n", v.PlaybackURL)
	c := v.Completeness
	p.field(b, metadata.FieldKey, c.Key, c.HasKey, c.Sources[metadata.FieldKey])
	p.field(b, metadata.FieldScale, c.Scale, c.HasScale, c.Sources[metadata.FieldScale])
	p.field(b, metadata.FieldBPM, c.BPM, c.HasBPM, c.Sources[metadata.FieldBPM])
	if c.BPM != "" && !c.HasBPM {
		shared.ColorMuted.Fprintf(b, "   BPM must be a whole number between %d and %d\n", metadata.MinBPM, metadata.MaxBPM)
	}
	fmt.Fprintf(b, "   Complete %s before protecting this track.\n", strings.Join(c.Missing, ", "))
	if v.KeySuggestion != "" {
		shared.ColorMuted.Fprintf(b, "   Did you mean key %q?\n", v.KeySuggestion)
	}
}

func (p *ConsolePresenter) field(b *strings.Builder, name, value string, ok bool, src metadata.Source) {
	if ok {
		shared.ColorSuccess.Fprintf(b, "   ✓ %-6s %s", name, value)
		shared.ColorMuted.Fprintf(b, " (%s)\n", src)
		return
	}
	if value == "" {
		value = "missing"
	}
	shared.ColorError.Fprintf(b, "   ✗ %-6s %s\n", name, value)
}

func (p *ConsolePresenter) renderReady(b *strings.Builder, v View) {
	shared.ColorInfo.Fprintln(b, "🎯 Ready to scan")
	fmt.Fprintf(b, "   Playback URL: %s\n", v.PlaybackURL)
	fmt.Fprintf(b, "   Key %s %s · %s BPM\n", v.Completeness.Key, v.Completeness.Scale, v.Completeness.BPM)
	if v.Status.HasFingerprint {
		shared.ColorWarning.Fprintln(b, "   The playback URL changed since the last scan. Rescan to keep protection current.")
	}
	fmt.Fprintf(b, "   Run `bpguard protect %s` to generate a BeatPassID fingerprint.\n", v.TrackID)
}

func (p *ConsolePresenter) renderFingerprinted(b *strings.Builder, v View) {
	shared.ColorSuccess.Fprintln(b, "✅ Protected by BeatPassID")
	fmt.Fprintf(b, "   Playback URL: %s\n", v.PlaybackURL)
	if v.Status.FingerprintHash != "" {
		fmt.Fprintf(b, "   Fingerprint:  %s\n", shared.TruncateString(v.Status.FingerprintHash, 24))
	}
	if v.Status.IsDuplicate && v.Status.IsAuthentic {
		shared.ColorInfo.Fprintln(b, "   This audio matches other uploads you own.")
		p.duplicate(b, v)
	}
	if v.Outcome != nil && v.Outcome.Message != "" {
		shared.ColorMuted.Fprintf(b, "   %s\n", v.Outcome.Message)
	}
}

func (p *ConsolePresenter) renderFailed(b *strings.Builder, v View) {
	shared.ColorError.Fprintln(b, "🚫 Protection failed")
	if v.Outcome != nil {
		if v.Outcome.Message != "" {
			fmt.Fprintf(b, "   %s\n", v.Outcome.Message)
		}
		if v.Outcome.Err != nil {
			shared.ColorMuted.Fprintf(b, "   %s\n", v.Outcome.Err)
		}
	}
	p.duplicate(b, v)
	fmt.Fprintln(b, "   Uploading audio owned by another producer violates the BeatPass Terms of Service.")
}

func (p *ConsolePresenter) duplicate(b *strings.Builder, v View) {
	info := v.Status.DuplicateInfo
	if v.Outcome != nil && v.Outcome.Duplicate != nil {
		info = v.Outcome.Duplicate
	}
	for _, k := range info.Keys() {
		shared.ColorMuted.Fprintf(b, "     %s: %s\n", k, info.Get(k))
	}
	if v.Status.DuplicateCount > 1 {
		shared.ColorMuted.Fprintf(b, "     %d matching tracks\n", v.Status.DuplicateCount)
	}
}
