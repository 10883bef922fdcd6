package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newClient(t *Transport) *http.Client {
	return &http.Client{Transport: t}
}

func TestPassesThroughSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newClient(&Transport{}).Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one request, got %d", hits)
	}
}

func TestRetriesAfter429(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	stats := NewStats()
	resp, err := newClient(&Transport{Stats: stats}).Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()

	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("expected 3 requests, got %d", hits)
	}
	if stats.Count() != 2 {
		t.Errorf("stats should record 2 rate limits, got %d", stats.Count())
	}
	if stats.LastAt().IsZero() {
		t.Error("stats should record the last event time")
	}
}

func TestReplaysBodyOnRetry(t *testing.T) {
	var hits int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(string(body))
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newClient(&Transport{}).Post(srv.URL, "application/json", bytes.NewReader([]byte(`{"k":"v"}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()

	if got := lastBody.Load(); got != `{"k":"v"}` {
		t.Errorf("retried request body = %q, want original payload", got)
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(&Transport{MaxRetries: 2}).Get(srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var rlErr *Error
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected ratelimit.Error, got %T: %v", err, err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("expected 3 attempts, got %d", hits)
	}
}

func TestContextCancelStopsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = newClient(&Transport{}).Do(req)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff should abort on cancel, waited %v", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := ParseRetryAfter(""); d != nil {
		t.Error("empty header should parse to nil")
	}
	if d := ParseRetryAfter("garbage"); d != nil {
		t.Error("malformed header should parse to nil")
	}
	if d := ParseRetryAfter("-5"); d != nil {
		t.Error("negative seconds should parse to nil")
	}

	if d := ParseRetryAfter("7"); d == nil || *d != 7*time.Second {
		t.Errorf("ParseRetryAfter(7) = %v, want 7s", d)
	}

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(future); d == nil || *d <= 0 || *d > 10*time.Second {
		t.Errorf("HTTP-date should yield a positive duration up to 10s, got %v", d)
	}

	past := time.Now().Add(-10 * time.Second).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(past); d == nil || *d != 0 {
		t.Errorf("past HTTP-date should clamp to zero, got %v", d)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	tr := &Transport{BaseDelay: time.Second, MaxDelay: 4 * time.Second}

	if d := tr.backoff(0, nil); d != time.Second {
		t.Errorf("attempt 0 backoff = %v, want 1s", d)
	}
	if d := tr.backoff(1, nil); d != 2*time.Second {
		t.Errorf("attempt 1 backoff = %v, want 2s", d)
	}
	if d := tr.backoff(5, nil); d != 4*time.Second {
		t.Errorf("attempt 5 backoff = %v, want cap of 4s", d)
	}

	hint := 500 * time.Millisecond
	if d := tr.backoff(3, &hint); d != hint {
		t.Errorf("Retry-After should override schedule, got %v", d)
	}
}
