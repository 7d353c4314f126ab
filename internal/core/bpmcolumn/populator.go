// Package bpmcolumn fills the key/BPM column of a track listing in small
// batches.
package bpmcolumn

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"

	"beatpass-guard/internal/interfaces"
	"beatpass-guard/internal/metadata"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 300 * time.Millisecond
)

// MetadataFetcher is the one endpoint the populator needs
type MetadataFetcher interface {
	GetTrackMetadata(ctx context.Context, trackID string) (*metadata.Record, error)
}

// Row is one populated cell
type Row struct {
	TrackID string
	Key     string
	Scale   string
	BPM     string
	Err     error
}

// Display renders the cell text
func (r Row) Display() string {
	var parts []string
	if r.BPM != "" {
		parts = append(parts, r.BPM+" BPM")
	}
	if key := strings.TrimSpace(r.Key + " " + r.Scale); key != "" {
		parts = append(parts, key)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " · ")
}

// Options configure a Populator
type Options struct {
	BatchSize int
	// BatchDelay is the pause between batches; zero disables it
	BatchDelay time.Duration
	// Progress, when non-nil, receives a progress bar
	Progress io.Writer
}

// Populator fetches stored metadata for many tracks. Row failures are
// recorded and never abort the run.
type Populator struct {
	api      MetadataFetcher
	warnings interfaces.WarningCollectorService
	logger   interfaces.LoggerService
	opts     Options
}

// NewPopulator creates a populator. warnings may be nil.
func NewPopulator(api MetadataFetcher, warnings interfaces.WarningCollectorService, logger interfaces.LoggerService, opts Options) *Populator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	return &Populator{api: api, warnings: warnings, logger: logger, opts: opts}
}

// Populate returns one row per id, in input order
func (p *Populator) Populate(ctx context.Context, ids []string) []Row {
	rows := make([]Row, len(ids))
	for i, id := range ids {
		rows[i].TrackID = id
	}

	var bar *pb.ProgressBar
	if p.opts.Progress != nil && len(ids) > 0 {
		bar = pb.New(len(ids))
		bar.SetWriter(p.opts.Progress)
		bar.Start()
		defer bar.Finish()
	}

	for start := 0; start < len(ids); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				rows[i] = p.populateRow(ctx, ids[i])
				if bar != nil {
					bar.Increment()
				}
				return nil
			})
		}
		_ = g.Wait()

		if end == len(ids) {
			break
		}
		select {
		case <-time.After(p.opts.BatchDelay):
		case <-ctx.Done():
			for i := end; i < len(ids); i++ {
				rows[i].Err = ctx.Err()
			}
			return rows
		}
	}
	return rows
}

func (p *Populator) populateRow(ctx context.Context, id string) Row {
	row := Row{TrackID: id}

	record, err := p.api.GetTrackMetadata(ctx, id)
	if err != nil {
		row.Err = err
		p.logger.Debug("Metadata for track %s unavailable: %v", id, err)
		if p.warnings != nil {
			p.warnings.AddMetadataFetchWarning(id, err.Error())
		}
		return row
	}
	if record == nil {
		row.Err = fmt.Errorf("no metadata stored for track %s", id)
		return row
	}

	row.Key = strings.TrimSpace(record.KeyName)
	row.Scale = strings.TrimSpace(record.Scale)
	if bpm := strings.TrimSpace(record.BPMString()); bpm != "" {
		if metadata.ValidBPM(bpm) {
			row.BPM = bpm
		} else if p.warnings != nil {
			p.warnings.AddInvalidBPMWarning(id, bpm)
		}
	}
	return row
}
