/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// GitHub rate limit headers, in canonical form.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api#checking-the-status-of-your-rate-limit
const (
	HeaderRetryAfter          = "Retry-After"
	HeaderXRateLimitReset     = "X-Ratelimit-Reset"
	HeaderXRateLimitRemaining = "X-Ratelimit-Remaining"
)

// DefaultRetryAfter is the pause used when GitHub rejects a request for rate
// limiting without saying for how long.
const DefaultRetryAfter = time.Minute

// RateLimitTransport holds back every request sharing it while GitHub
// reports the rate limit as exhausted, and replays the rejected request once
// the pause ends.
type RateLimitTransport struct {
	base       http.RoundTripper
	clock      clockwork.Clock
	limiter    *rate.Limiter
	retryAfter time.Duration
	maxRetries int

	mu       sync.Mutex
	until    time.Time
	resumeCh chan struct{}
}

// NewRateLimitTransport wraps base. A nil base means http.DefaultTransport
// and a zero retryAfter means DefaultRetryAfter.
func NewRateLimitTransport(base http.RoundTripper, retryAfter time.Duration) *RateLimitTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &RateLimitTransport{
		base:       base,
		clock:      clockwork.NewRealClock(),
		limiter:    rate.NewLimiter(rate.Inf, 100),
		retryAfter: retryAfter,
		maxRetries: 3,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if err := t.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}

		pause, limited := t.pauseFor(ctx, resp)
		if !limited || attempt >= t.maxRetries || !rewindable(req) {
			return resp, nil
		}
		if resp.Body != nil {
			resp.Body.Close()
		}
		t.pause(pause)

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
	}
}

// rewindable reports whether req can be sent again.
func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// pauseFor inspects resp and reports how long to hold requests back, if at all.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api#exceeding-the-rate-limit
func (t *RateLimitTransport) pauseFor(ctx context.Context, resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	log := clog.FromContext(ctx)

	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			d := time.Duration(s) * time.Second
			log.With("retry_after", d).Warn("GitHub rate limit hit, pausing requests")
			return d, true
		}
		log.Warnf("ignoring retry-after header %q", v)
	}

	remaining := resp.Header.Get(HeaderXRateLimitRemaining)
	if remaining == "" {
		// A 403 without rate limit headers is a permission problem.
		if resp.StatusCode == http.StatusForbidden {
			return 0, false
		}
	} else if remaining == "0" {
		if s, err := strconv.ParseInt(resp.Header.Get(HeaderXRateLimitReset), 10, 64); err == nil {
			reset := time.Unix(s, 0)
			if d := reset.Sub(t.clock.Now()); d > 0 {
				log.With("reset_at", reset, "retry_after", d).Warn("GitHub rate limit exhausted, pausing until reset")
				return d, true
			}
		}
	} else if resp.StatusCode == http.StatusForbidden {
		return 0, false
	}

	log.With("retry_after", t.retryAfter).Warn("GitHub rate limit hit, using default pause")
	return t.retryAfter, true
}

// wait blocks while a pause is active.
func (t *RateLimitTransport) wait(ctx context.Context) error {
	t.mu.Lock()
	ch := t.resumeCh
	t.mu.Unlock()

	if ch != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
	return t.limiter.Wait(ctx)
}

// pause holds requests back for d, extending but never shortening an active
// pause.
func (t *RateLimitTransport) pause(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	until := t.clock.Now().Add(d)
	if !until.After(t.until) {
		return
	}
	t.until = until
	if t.resumeCh == nil {
		t.resumeCh = make(chan struct{})
	}
	ch := t.resumeCh

	timer := t.clock.NewTimer(d)
	go func() {
		<-timer.Chan()

		t.mu.Lock()
		defer t.mu.Unlock()
		// A later pause moved the deadline; its own timer will resume.
		if t.resumeCh != ch || t.clock.Now().Before(t.until) {
			return
		}
		close(ch)
		t.resumeCh = nil
		t.until = time.Time{}
	}()
}
