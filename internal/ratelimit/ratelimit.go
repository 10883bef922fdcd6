// Package ratelimit retries HTTP requests rejected with 429, honoring the
// server's Retry-After hint and falling back to exponential backoff. It
// wraps a transport so every gateway call gets the same throttle handling.
package ratelimit

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 32 * time.Second
)

// Transport is an http.RoundTripper that retries rate-limited requests.
// Only 429 responses are retried; transport errors and other status codes
// pass straight through to the caller.
type Transport struct {
	// Base performs the actual requests. http.DefaultTransport when nil.
	Base http.RoundTripper

	// MaxRetries is the number of retry attempts after the first 429.
	MaxRetries int

	// BaseDelay is the first backoff step; doubles per attempt up to
	// MaxDelay. A Retry-After header overrides the computed delay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads the backoff by up to ±20% so parallel clients do
	// not reconnect in lockstep.
	Jitter bool

	// Stats, when set, records every 429 seen.
	Stats *Stats
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}

		resp, err := base.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if t.Stats != nil {
			t.Stats.Record()
		}

		// A request whose body cannot be replayed cannot be retried.
		if attempt >= maxRetries || (req.Body != nil && req.GetBody == nil) {
			_ = resp.Body.Close()
			return nil, &Error{Attempts: attempt + 1}
		}

		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff(attempt, retryAfter)):
		}
	}
}

// backoff computes the wait before the next attempt. A server-supplied
// Retry-After wins over the exponential schedule.
func (t *Transport) backoff(attempt int, retryAfter *time.Duration) time.Duration {
	if retryAfter != nil {
		return *retryAfter
	}

	baseDelay := t.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxDelay := t.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}
	if t.Jitter {
		delay = time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	}
	return delay
}

// Error reports exhausted rate-limit retries.
type Error struct {
	Attempts int
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

// ParseRetryAfter parses a Retry-After header value, either delay-seconds
// or an HTTP-date. Returns nil for empty or malformed values.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}

	return nil
}

// Stats counts rate-limit events across a transport's lifetime.
type Stats struct {
	mu     sync.RWMutex
	count  int64
	lastAt time.Time
}

// NewStats creates an empty counter.
func NewStats() *Stats {
	return &Stats{}
}

// Record notes one 429 response.
func (s *Stats) Record() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.lastAt = time.Now()
}

// Count returns the number of 429 responses seen.
func (s *Stats) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// LastAt returns when the most recent 429 arrived.
func (s *Stats) LastAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAt
}
