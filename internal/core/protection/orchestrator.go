// Package protection runs the BeatPassID fingerprinting sequence for a track.
package protection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/config"
	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/core/readiness"
	"beatpass-guard/internal/interfaces"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// ReasonToSViolation is sent when scrubbing a fingerprint that duplicates another producer's track
const ReasonToSViolation = "tos_violation"

// OutcomeKind summarizes how a protection run ended
type OutcomeKind int

const (
	OutcomeProtected OutcomeKind = iota
	OutcomeAuthenticDuplicate
	OutcomeToSViolation
	OutcomeValidationFailed
	OutcomeError
	OutcomeBusy
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeProtected:
		return "protected"
	case OutcomeAuthenticDuplicate:
		return "authentic-duplicate"
	case OutcomeToSViolation:
		return "tos-violation"
	case OutcomeValidationFailed:
		return "validation-failed"
	case OutcomeBusy:
		return "busy"
	default:
		return "error"
	}
}

// Request is everything the producer has entered for the track
type Request struct {
	TrackID     string
	PlaybackURL string
	Form        metadata.Fields
	Licensing   metadata.LicensingInfo
}

// Outcome is the settled result of a protection run
type Outcome struct {
	Kind            OutcomeKind
	State           readiness.State
	Err             error
	Message         string
	Fingerprint     string
	FingerprintHash string
	Duplicate       beatpass.DuplicateInfo
	Completeness    metadata.Completeness
}

// Succeeded reports whether the run ended without an error
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Options tune the orchestrator
type Options struct {
	MaxRetries               int
	InitialDelay             time.Duration
	MaxDelay                 time.Duration
	ContinueOnPersistFailure bool
	Debug                    bool
}

// OptionsFromConfig derives orchestrator options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRetries:               cfg.MaxRetryAttempts,
		InitialDelay:             cfg.RetryInitialDelay(),
		MaxDelay:                 cfg.RetryMaxDelay(),
		ContinueOnPersistFailure: cfg.ContinueOnPersistFailure,
		Debug:                    cfg.Debug,
	}
}

// Orchestrator drives save → generate → duplicate-check → save/delete.
// Steps run strictly in sequence; each one gates the next.
type Orchestrator struct {
	api      interfaces.TrackAPI
	guard    *Guard
	pending  interfaces.PendingStore
	notifier interfaces.NotifierService
	logger   interfaces.LoggerService
	bus      *events.Bus
	opts     Options
}

// NewOrchestrator wires an orchestrator. pending and bus may be nil.
func NewOrchestrator(api interfaces.TrackAPI, guard *Guard, pending interfaces.PendingStore, notifier interfaces.NotifierService, logger interfaces.LoggerService, bus *events.Bus, opts Options) *Orchestrator {
	if guard == nil {
		guard = NewGuard()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = shared.DefaultMaxRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}
	return &Orchestrator{
		api:      api,
		guard:    guard,
		pending:  pending,
		notifier: notifier,
		logger:   logger,
		bus:      bus,
		opts:     opts,
	}
}

// Guard returns the guard this orchestrator holds while running
func (o *Orchestrator) Guard() *Guard {
	return o.guard
}

// StartFingerprinting runs the full protection sequence. It never panics and
// never returns an error value: every failure is folded into the Outcome so
// the caller can always re-render.
func (o *Orchestrator) StartFingerprinting(ctx context.Context, req Request) (out Outcome) {
	req.PlaybackURL = strings.TrimSpace(req.PlaybackURL)

	release, ok := o.guard.TryAcquire("protect:" + req.TrackID)
	if !ok {
		o.notifier.Warning("Another protection operation is already running. Please wait for it to finish.")
		// No network while busy: the state reflects the request alone.
		completeness := metadata.Evaluate(req.Form, nil)
		return Outcome{
			Kind:         OutcomeBusy,
			Err:          shared.ErrOperationInProgress,
			Completeness: completeness,
			State:        readiness.ComputeState(req.PlaybackURL, completeness, beatpass.FingerprintStatus{}),
		}
	}
	defer release()

	var completeness metadata.Completeness
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Protection of track %s aborted unexpectedly: %v", req.TrackID, r)
			err := &shared.UnknownServerError{Op: "protect track", Message: fmt.Sprint(r)}
			o.notifier.Error("Track protection failed unexpectedly. Please try again.")
			out = Outcome{
				Kind:         OutcomeError,
				Err:          err,
				Message:      err.Error(),
				Completeness: completeness,
				State:        readiness.ComputeState(req.PlaybackURL, completeness, beatpass.FingerprintStatus{}),
			}
		}
		o.publish(req, out)
	}()

	// 1. playback URL
	if req.PlaybackURL == "" {
		err := &shared.ValidationError{Message: "a playback URL is required before protecting a track"}
		o.notifier.Error("Please add a playback URL before protecting this track.")
		return Outcome{Kind: OutcomeValidationFailed, Err: err, Message: err.Error(), State: readiness.NoURL}
	}

	// 2. metadata, re-evaluated against what the server already has
	record, err := o.api.GetTrackMetadata(ctx, req.TrackID)
	if err != nil {
		o.logger.Debug("No stored metadata for track %s: %v", req.TrackID, err)
		record = nil
	}
	completeness = metadata.Evaluate(req.Form, record)
	if !completeness.IsComplete {
		err := &shared.ValidationError{Message: "missing required fields", Missing: completeness.Missing}
		o.notifier.Error(fmt.Sprintf("Please complete the following fields: %s", strings.Join(completeness.Missing, ", ")))
		return Outcome{
			Kind:         OutcomeValidationFailed,
			Err:          err,
			Message:      err.Error(),
			Completeness: completeness,
			State:        readiness.IncompleteMetadata,
		}
	}

	// 3. persist playback URL, metadata and licensing
	if err := o.persist(ctx, req, completeness); err != nil {
		if !o.opts.ContinueOnPersistFailure {
			o.notifier.Error(fmt.Sprintf("Could not save track details: %v", err))
			return o.settle(ctx, req, completeness, Outcome{Kind: OutcomeError, Err: err, Message: err.Error()})
		}
		o.notifier.Warning("Track details were not saved; continuing with fingerprinting.")
	}

	// 4. fingerprint generation
	o.notifier.Info("Generating BeatPassID fingerprint...")
	var generated *beatpass.GeneratedFingerprint
	err = o.write(ctx, func() error {
		var genErr error
		generated, genErr = o.api.GenerateFingerprint(ctx, req.PlaybackURL, req.TrackID)
		return genErr
	})
	if err != nil {
		o.notifier.Error(fmt.Sprintf("Fingerprint generation failed: %s", serverMessage(err)))
		return o.settle(ctx, req, completeness, Outcome{Kind: OutcomeError, Err: err, Message: serverMessage(err)})
	}

	// 5. duplicate check
	var check *beatpass.DuplicateCheck
	err = o.write(ctx, func() error {
		var checkErr error
		check, checkErr = o.api.CheckDuplicate(ctx, generated.FingerprintHash, req.TrackID)
		return checkErr
	})
	if err != nil {
		o.notifier.Error(fmt.Sprintf("Duplicate check failed: %s", serverMessage(err)))
		return o.settle(ctx, req, completeness, Outcome{
			Kind:            OutcomeError,
			Err:             err,
			Message:         serverMessage(err),
			Fingerprint:     generated.Fingerprint,
			FingerprintHash: generated.FingerprintHash,
		})
	}

	out = Outcome{
		Completeness:    completeness,
		Fingerprint:     generated.Fingerprint,
		FingerprintHash: generated.FingerprintHash,
		Duplicate:       check.DuplicateInfo,
		Message:         check.Message,
	}

	switch {
	case check.IsDuplicate && !check.IsAuthentic:
		return o.rejectDuplicate(ctx, req, check, out)

	case check.IsDuplicate:
		out.Kind = OutcomeAuthenticDuplicate
		if out.Message == "" {
			out.Message = "This audio matches an existing upload you own."
		}
		o.notifier.Info(out.Message)
		return o.settle(ctx, req, completeness, out)

	default:
		err := o.write(ctx, func() error {
			return o.api.SaveFingerprint(ctx, req.TrackID, generated.Fingerprint, generated.FingerprintHash)
		})
		if err != nil {
			out.Kind = OutcomeError
			out.Err = err
			out.Message = serverMessage(err)
			o.notifier.Error(fmt.Sprintf("Could not save fingerprint: %s", out.Message))
			return o.settle(ctx, req, completeness, out)
		}
		out.Kind = OutcomeProtected
		out.State = readiness.ComputeState(req.PlaybackURL, completeness, beatpass.FingerprintStatus{
			HasFingerprint:  true,
			PlaybackURL:     req.PlaybackURL,
			Fingerprint:     generated.Fingerprint,
			FingerprintHash: generated.FingerprintHash,
		})
		if out.Message == "" {
			out.Message = "Track protected with BeatPassID. Sample-Safe™ coverage is active."
		}
		o.notifier.Success(out.Message)
		return out
	}
}

// persist buffers the payload locally, saves it remotely and clears the
// buffer once the server accepted it
func (o *Orchestrator) persist(ctx context.Context, req Request, c metadata.Completeness) error {
	payload := beatpass.SavePlaybackURLRequest{
		TrackID:     req.TrackID,
		PlaybackURL: req.PlaybackURL,
		Metadata:    metadata.Fields{Key: c.Key, Scale: c.Scale, BPM: c.BPM},
		Licensing:   req.Licensing.Normalize(),
	}

	if o.pending != nil {
		if _, err := o.pending.Put(ctx, payload); err != nil {
			o.logger.Warning("Could not buffer pending submission: %v", err)
		}
	}

	err := o.write(ctx, func() error {
		return o.api.SavePlaybackURL(ctx, payload)
	})
	if err != nil {
		o.logger.Error("Saving playback URL for track %s failed: %v", req.TrackID, err)
		return fmt.Errorf("failed to save playback url: %w", err)
	}

	if o.pending != nil {
		if err := o.pending.Clear(ctx); err != nil {
			o.logger.Warning("Could not clear pending submission: %v", err)
		}
	}
	return nil
}

// rejectDuplicate scrubs a fingerprint that collides with another producer's track
func (o *Orchestrator) rejectDuplicate(ctx context.Context, req Request, check *beatpass.DuplicateCheck, out Outcome) Outcome {
	out.Kind = OutcomeToSViolation
	out.State = readiness.Failed
	out.Err = &shared.DuplicateConflict{
		Authentic: false,
		Message:   check.Message,
	}

	// Delete is sent once; it is not retried so a partially applied delete is never replayed.
	if err := o.api.DeleteFingerprint(ctx, req.TrackID, ReasonToSViolation); err != nil {
		o.logger.Error("Could not remove duplicate fingerprint for track %s: %v", req.TrackID, err)
		out.Err = errors.Join(out.Err, fmt.Errorf("failed to delete fingerprint: %w", err))
	}

	if out.Message == "" {
		out.Message = "This audio matches a track uploaded by another producer."
	}
	o.notifier.Error(fmt.Sprintf("BeatPassID duplicate detected: %s", out.Message))
	return out
}

// settle fills in the state the dashboard falls back to after a failure,
// recomputed from a fresh status poll
func (o *Orchestrator) settle(ctx context.Context, req Request, c metadata.Completeness, out Outcome) Outcome {
	out.Completeness = c
	status := o.api.CheckStatus(ctx, req.TrackID)
	out.State = readiness.ComputeState(req.PlaybackURL, c, status)
	return out
}

func (o *Orchestrator) write(ctx context.Context, fn func() error) error {
	return shared.RetryWithBackoffForHTTPWithDebug(ctx, o.opts.MaxRetries, o.opts.InitialDelay, o.opts.MaxDelay, fn, o.opts.Debug)
}

func (o *Orchestrator) publish(req Request, out Outcome) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Kind:        events.OperationFinished,
		TrackID:     req.TrackID,
		PlaybackURL: req.PlaybackURL,
		Form:        req.Form,
		Detail:      out.Kind.String(),
	})
}

// serverMessage prefers the message the server sent over the wrapped error text
func serverMessage(err error) string {
	var rejected *shared.ServerRejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return err.Error()
}
