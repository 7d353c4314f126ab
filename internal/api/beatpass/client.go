package beatpass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"beatpass-guard/internal/config"
	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

const (
	defaultRateLimit  = 250 * time.Millisecond // 4 req/sec
	defaultBurstLimit = 8
	maxErrorBody      = 200
)

// Options configures the BeatPass client
type Options struct {
	APIURL         string
	FingerprintURL string
	RateLimit      time.Duration
	BurstLimit     int
	Debug          bool
}

// OptionsFromConfig derives client options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIURL:         cfg.APIURL,
		FingerprintURL: cfg.FingerprintURL,
		RateLimit:      cfg.RateLimit(),
		BurstLimit:     cfg.BurstLimit,
		Debug:          cfg.Debug,
	}
}

// Client talks to key_bpm_handler.php and fingerprint.php.
// Every method performs exactly one request; retry policy belongs to callers.
type Client struct {
	apiURL         string
	fingerprintURL string
	client         *http.Client
	rateLimiter    *rate.Limiter
	debug          bool
}

// NewClient creates a new BeatPass API client
func NewClient(opts Options, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.BurstLimit <= 0 {
		opts.BurstLimit = defaultBurstLimit
	}
	return &Client{
		apiURL:         opts.APIURL,
		fingerprintURL: opts.FingerprintURL,
		client:         httpClient,
		rateLimiter:    rate.NewLimiter(rate.Every(opts.RateLimit), opts.BurstLimit),
		debug:          opts.Debug,
	}
}

// ============================================================================
// CORE HTTP METHODS (Private)
// ============================================================================

// buildURL appends params to base, preserving any query the base already has
func buildURL(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("error parsing URL: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for name, values := range params {
			for _, v := range values {
				q.Add(name, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// do executes a request and returns the body of a 2xx response
func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &shared.NetworkError{Op: op, Err: fmt.Errorf("rate limiter wait failed: %w", err)}
	}

	req.Header.Set("User-Agent", shared.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	shared.DebugPrint(c.debug, "%s %s %s", op, req.Method, req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		timeout := false
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			timeout = true
		}
		return nil, &shared.NetworkError{Op: op, Err: err, Timeout: timeout}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &shared.NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &shared.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    shared.TruncateString(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	shared.DebugPrint(c.debug, "%s response: %s", op, shared.TruncateString(string(body), 500))
	return body, nil
}

func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, error) {
	target, err := buildURL(c.apiURL, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.do(ctx, op, req)
}

func (c *Client) postForm(ctx context.Context, op string, query url.Values, form url.Values) ([]byte, error) {
	target, err := buildURL(c.apiURL, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, op, req)
}

func (c *Client) postJSON(ctx context.Context, op, target string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, op, req)
}

// decodeEnvelope checks a generic success/failure response
func decodeEnvelope(op string, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &shared.UnknownServerError{Op: op, Message: shared.TruncateString(string(body), maxErrorBody)}
	}
	if env.Success == nil && env.Status == "" {
		return &shared.UnknownServerError{Op: op, Message: "response carries neither success nor status"}
	}
	if !env.ok() {
		return &shared.ServerRejectedError{Op: op, Message: env.failureMessage()}
	}
	return nil
}

// ============================================================================
// PUBLIC API METHODS
// ============================================================================

// GetTrackMetadata fetches the key, scale and BPM stored for a track
func (c *Client) GetTrackMetadata(ctx context.Context, trackID string) (*metadata.Record, error) {
	const op = "get track metadata"
	body, err := c.get(ctx, op, url.Values{"track_id": {trackID}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		Data *metadata.Record `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &shared.UnknownServerError{Op: op, Message: shared.TruncateString(string(body), maxErrorBody)}
	}
	if !resp.ok() {
		return nil, &shared.ServerRejectedError{Op: op, Message: resp.failureMessage()}
	}
	if resp.Data == nil {
		return &metadata.Record{}, nil
	}
	return resp.Data, nil
}

// FetchStatus polls the fingerprint status for a track and reports failures
func (c *Client) FetchStatus(ctx context.Context, trackID string) (FingerprintStatus, error) {
	const op = "check fingerprint status"
	body, err := c.get(ctx, op, url.Values{
		"track_id":                 {trackID},
		"check_fingerprint_status": {"1"},
	})
	if err != nil {
		return FingerprintStatus{}, err
	}

	var raw rawFingerprintStatus
	if err := json.Unmarshal(body, &raw); err != nil {
		return FingerprintStatus{}, &shared.UnknownServerError{Op: op, Message: shared.TruncateString(string(body), maxErrorBody)}
	}
	return raw.normalize(), nil
}

// CheckStatus polls the fingerprint status for a track. Any failure yields
// the zero status: callers treat "no data" and "explicit negative" alike.
func (c *Client) CheckStatus(ctx context.Context, trackID string) FingerprintStatus {
	status, err := c.FetchStatus(ctx, trackID)
	if err != nil {
		shared.DebugPrint(c.debug, "status poll for track %s failed: %v", trackID, err)
		return FingerprintStatus{}
	}
	return status
}

// SavePlaybackURL persists the playback URL with the current metadata and licensing
func (c *Client) SavePlaybackURL(ctx context.Context, req SavePlaybackURLRequest) error {
	const op = "save playback url"
	licensing := req.Licensing.Normalize()
	form := url.Values{
		"action":               {ActionSavePlaybackURL},
		"track_id":             {req.TrackID},
		"playback_url":         {req.PlaybackURL},
		"key_name":             {req.Metadata.Key},
		"scale":                {req.Metadata.Scale},
		"bpm":                  {req.Metadata.BPM},
		"licensing_type":       {licensing.LicensingType},
		"exclusive_price":      {licensing.ExclusivePrice},
		"exclusive_currency":   {licensing.ExclusiveCurrency},
		"exclusive_status":     {licensing.ExclusiveStatus},
		"exclusive_buyer_info": {licensing.ExclusiveBuyerInfo},
	}
	body, err := c.postForm(ctx, op, nil, form)
	if err != nil {
		return err
	}
	return decodeEnvelope(op, body)
}

// DeleteFingerprint removes the fingerprint stored for a track
func (c *Client) DeleteFingerprint(ctx context.Context, trackID, reason string) error {
	const op = "delete fingerprint"
	body, err := c.postForm(ctx, op, nil, url.Values{
		"action":   {ActionDeleteFingerprint},
		"track_id": {trackID},
		"reason":   {reason},
	})
	if err != nil {
		return err
	}
	return decodeEnvelope(op, body)
}

// CheckDuplicate submits a fingerprint hash for duplicate detection
func (c *Client) CheckDuplicate(ctx context.Context, fingerprintHash, trackID string) (*DuplicateCheck, error) {
	const op = "check duplicate"
	body, err := c.postForm(ctx, op, url.Values{"check_fingerprint": {"1"}}, url.Values{
		"fingerprint_hash": {fingerprintHash},
		"track_id":         {trackID},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		IsDuplicate   interface{}   `json:"isDuplicate"`
		IsAuthentic   interface{}   `json:"isAuthentic"`
		DuplicateInfo DuplicateInfo `json:"duplicateInfo"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &shared.UnknownServerError{Op: op, Message: shared.TruncateString(string(body), maxErrorBody)}
	}

	check := &DuplicateCheck{
		IsDuplicate:   truthy(resp.IsDuplicate),
		IsAuthentic:   truthy(resp.IsAuthentic),
		DuplicateInfo: resp.DuplicateInfo,
		Message:       resp.Message,
	}
	if resp.Success != nil && !*resp.Success && !check.IsDuplicate {
		return nil, &shared.ServerRejectedError{Op: op, Message: resp.failureMessage()}
	}
	return check, nil
}

// SaveFingerprint stores a generated fingerprint against a track
func (c *Client) SaveFingerprint(ctx context.Context, trackID, fingerprint, fingerprintHash string) error {
	const op = "save fingerprint"
	body, err := c.postForm(ctx, op, nil, url.Values{
		"action":           {ActionSaveFingerprint},
		"track_id":         {trackID},
		"fingerprint":      {fingerprint},
		"fingerprint_hash": {fingerprintHash},
	})
	if err != nil {
		return err
	}
	return decodeEnvelope(op, body)
}

// GenerateFingerprint asks fingerprint.php to fingerprint the audio at playbackURL
func (c *Client) GenerateFingerprint(ctx context.Context, playbackURL, trackID string) (*GeneratedFingerprint, error) {
	const op = "generate fingerprint"
	body, err := c.postJSON(ctx, op, c.fingerprintURL, map[string]string{
		"url":      playbackURL,
		"track_id": trackID,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		GeneratedFingerprint
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &shared.UnknownServerError{Op: op, Message: shared.TruncateString(string(body), maxErrorBody)}
	}
	if !resp.ok() {
		return nil, &shared.ServerRejectedError{Op: op, Message: resp.failureMessage()}
	}
	if resp.FingerprintHash == "" {
		return nil, &shared.UnknownServerError{Op: op, Message: "response is missing fingerprint_hash"}
	}
	return &resp.GeneratedFingerprint, nil
}
