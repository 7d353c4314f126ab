package beatpass

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beatpass-guard/internal/metadata"
	"beatpass-guard/internal/shared"
)

// newTestClient creates a client whose both endpoints point at srv
func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Options{
		APIURL:         srv.URL + "/key_bpm_handler.php",
		FingerprintURL: srv.URL + "/fingerprint.php",
		RateLimit:      time.Millisecond,
		BurstLimit:     100,
	}, srv.Client())
}

func TestGetTrackMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("track_id"); got != "42" {
			t.Errorf("Expected track_id 42, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID header")
		}
		w.Write([]byte(`{"status":"success","data":{"key_name":"F#","scale":"minor","bpm":128}}`))
	}))
	defer srv.Close()

	record, err := newTestClient(srv).GetTrackMetadata(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetTrackMetadata failed: %v", err)
	}
	if record.KeyName != "F#" || record.Scale != "minor" || record.BPMString() != "128" {
		t.Errorf("Unexpected record: %+v", record)
	}
}

func TestGetTrackMetadataRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"Track not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).GetTrackMetadata(context.Background(), "7")
	var rejected *shared.ServerRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected ServerRejectedError, got %v", err)
	}
	if rejected.Message != "Track not found" {
		t.Errorf("Expected server message, got %q", rejected.Message)
	}
}

func TestCheckStatusParsesLooseTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("check_fingerprint_status") != "1" {
			t.Error("Expected check_fingerprint_status=1")
		}
		w.Write([]byte(`{"hasFingerprint":"1","isDuplicate":false,"isAuthentic":1,"duplicateCount":"2",
			"playbackUrl":"https://x.com/a","fingerprint":"AQAA","fingerprint_hash":"abc",
			"duplicateInfo":{"track_id":99,"title":"Other"}}`))
	}))
	defer srv.Close()

	status := newTestClient(srv).CheckStatus(context.Background(), "1")
	if !status.HasFingerprint || status.IsDuplicate || !status.IsAuthentic {
		t.Errorf("Unexpected flags: %+v", status)
	}
	if status.DuplicateCount != 2 {
		t.Errorf("Expected duplicateCount 2, got %d", status.DuplicateCount)
	}
	if status.PlaybackURL != "https://x.com/a" || status.FingerprintHash != "abc" {
		t.Errorf("Unexpected strings: %+v", status)
	}
	if status.DuplicateInfo.Get("track_id") != "99" {
		t.Errorf("Expected duplicate track 99, got %q", status.DuplicateInfo.Get("track_id"))
	}
}

func TestCheckStatusFailuresYieldZeroStatus(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>Fatal error</html>`))
		},
	}
	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			status := newTestClient(srv).CheckStatus(context.Background(), "1")
			if status.HasFingerprint || status.PlaybackURL != "" || status.DuplicateCount != 0 || status.DuplicateInfo != nil {
				t.Errorf("Expected zero status, got %+v", status)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		client := newTestClient(srv)
		srv.Close()

		status := client.CheckStatus(context.Background(), "1")
		if status.HasFingerprint || status.PlaybackURL != "" {
			t.Errorf("Expected zero status, got %+v", status)
		}
		if _, err := client.FetchStatus(context.Background(), "1"); err == nil {
			t.Error("FetchStatus should report the transport failure")
		} else {
			var netErr *shared.NetworkError
			if !errors.As(err, &netErr) {
				t.Errorf("Expected NetworkError, got %T", err)
			}
		}
	})
}

func TestSavePlaybackURLNormalizesLicensing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
			return
		}
		if r.PostForm.Get("action") != ActionSavePlaybackURL {
			t.Errorf("Unexpected action %q", r.PostForm.Get("action"))
		}
		if r.PostForm.Get("playback_url") != "https://x.com/a" {
			t.Errorf("Unexpected playback_url %q", r.PostForm.Get("playback_url"))
		}
		if r.PostForm.Get("bpm") != "128" {
			t.Errorf("Unexpected bpm %q", r.PostForm.Get("bpm"))
		}
		if r.PostForm.Get("exclusive_price") != "" {
			t.Errorf("Expected empty exclusive_price, got %q", r.PostForm.Get("exclusive_price"))
		}
		if r.PostForm.Get("exclusive_status") != metadata.ExclusiveNotAvailable {
			t.Errorf("Expected not_available, got %q", r.PostForm.Get("exclusive_status"))
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).SavePlaybackURL(context.Background(), SavePlaybackURLRequest{
		TrackID:     "42",
		PlaybackURL: "https://x.com/a",
		Metadata:    metadata.Fields{Key: "C", Scale: "major", BPM: "128"},
		Licensing: metadata.LicensingInfo{
			LicensingType:   metadata.LicensingNonExclusiveOnly,
			ExclusivePrice:  "999",
			ExclusiveStatus: metadata.ExclusiveAvailable,
		},
	})
	if err != nil {
		t.Fatalf("SavePlaybackURL failed: %v", err)
	}
}

func TestEnvelopeFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
		want interface{}
	}{
		{"rejected", `{"success":false,"error":"Invalid track"}`, &shared.ServerRejectedError{}},
		{"status error", `{"status":"error","message":"nope"}`, &shared.ServerRejectedError{}},
		{"no envelope", `{"foo":"bar"}`, &shared.UnknownServerError{}},
		{"garbage", `Warning: mysqli_connect()`, &shared.UnknownServerError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := newTestClient(srv).DeleteFingerprint(context.Background(), "1", "test")
			switch tc.want.(type) {
			case *shared.ServerRejectedError:
				var target *shared.ServerRejectedError
				if !errors.As(err, &target) {
					t.Errorf("Expected ServerRejectedError, got %v", err)
				}
			case *shared.UnknownServerError:
				var target *shared.UnknownServerError
				if !errors.As(err, &target) {
					t.Errorf("Expected UnknownServerError, got %v", err)
				}
			}
		})
	}
}

func TestHTTPErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := newTestClient(srv).SaveFingerprint(context.Background(), "1", "fp", "hash")
	var httpErr *shared.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Expected HTTP 429 error, got %v", err)
	}
	if !shared.IsRetryableHTTPError(err) {
		t.Error("429 should be retryable")
	}
}

func TestCheckDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("check_fingerprint") != "1" {
			t.Error("Expected check_fingerprint=1 query parameter")
		}
		r.ParseForm()
		if r.PostForm.Get("fingerprint_hash") != "hash-1" || r.PostForm.Get("track_id") != "5" {
			t.Errorf("Unexpected form: %v", r.PostForm)
		}
		w.Write([]byte(`{"isDuplicate":true,"isAuthentic":false,"message":"Matches track 9","duplicateInfo":{"track_id":"9"}}`))
	}))
	defer srv.Close()

	check, err := newTestClient(srv).CheckDuplicate(context.Background(), "hash-1", "5")
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}
	if !check.IsDuplicate || check.IsAuthentic {
		t.Errorf("Unexpected flags: %+v", check)
	}
	if check.Message != "Matches track 9" || check.DuplicateInfo.Get("track_id") != "9" {
		t.Errorf("Unexpected duplicate details: %+v", check)
	}
}

func TestEmptyDuplicateInfoArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("check_fingerprint_status") == "1" {
			w.Write([]byte(`{"hasFingerprint":true,"isDuplicate":false,"isAuthentic":true,"duplicateCount":0,"fingerprint":"AQAA","duplicateInfo":[]}`))
			return
		}
		w.Write([]byte(`{"isDuplicate":false,"isAuthentic":true,"duplicateInfo":[],"message":"ok"}`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	status, err := client.FetchStatus(context.Background(), "1")
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if !status.HasFingerprint || status.DuplicateInfo != nil {
		t.Errorf("Unexpected status: %+v", status)
	}

	check, err := client.CheckDuplicate(context.Background(), "hash-1", "1")
	if err != nil {
		t.Fatalf("CheckDuplicate failed: %v", err)
	}
	if check.IsDuplicate || check.DuplicateInfo != nil || check.Message != "ok" {
		t.Errorf("Unexpected check: %+v", check)
	}
}

func TestDuplicateInfoShapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		trackID string
		isNil   bool
	}{
		{"object", `{"track_id":7}`, "7", false},
		{"list of objects", `[{"track_id":"8"},{"track_id":"9"}]`, "8", false},
		{"empty array", `[]`, "", true},
		{"null", `null`, "", true},
		{"scalar", `false`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info DuplicateInfo
			if err := json.Unmarshal([]byte(tt.input), &info); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if (info == nil) != tt.isNil {
				t.Errorf("Expected nil=%v, got %v", tt.isNil, info)
			}
			if got := info.Get("track_id"); got != tt.trackID {
				t.Errorf("Expected track_id %q, got %q", tt.trackID, got)
			}
		})
	}
}

func TestGenerateFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fingerprint.php" {
			t.Errorf("Expected fingerprint.php, got %s", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
			return
		}
		if payload["url"] == "https://x.com/broken" {
			w.Write([]byte(`{"success":false,"error":"Could not download audio"}`))
			return
		}
		w.Write([]byte(`{"success":true,"fingerprint":"AQAA","fingerprint_hash":"h1"}`))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	fp, err := client.GenerateFingerprint(context.Background(), "https://x.com/a", "1")
	if err != nil {
		t.Fatalf("GenerateFingerprint failed: %v", err)
	}
	if fp.Fingerprint != "AQAA" || fp.FingerprintHash != "h1" {
		t.Errorf("Unexpected fingerprint: %+v", fp)
	}

	_, err = client.GenerateFingerprint(context.Background(), "https://x.com/broken", "1")
	var rejected *shared.ServerRejectedError
	if !errors.As(err, &rejected) || rejected.Message != "Could not download audio" {
		t.Errorf("Expected server message to surface, got %v", err)
	}
}
