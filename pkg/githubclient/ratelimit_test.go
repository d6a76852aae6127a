/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/jonboulle/clockwork"
)

type testRT struct {
	responses []*http.Response
	mu        sync.Mutex
	callCount int
}

func (t *testRT) RoundTrip(_ *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.callCount >= len(t.responses) {
		return nil, fmt.Errorf("no more responses")
	}
	resp := t.responses[t.callCount]
	t.callCount++
	return resp, nil
}

func (t *testRT) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callCount
}

func TestRateLimitTransport(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	const defaultRetryAfter = 7 * time.Second

	tests := []struct {
		name       string
		responses  []*http.Response
		pauses     []time.Duration
		wantCalls  int
		wantStatus int
	}{{
		name:       "no rate limit",
		responses:  []*http.Response{{StatusCode: http.StatusOK}},
		wantCalls:  1,
		wantStatus: http.StatusOK,
	}, {
		name: "retry-after",
		responses: []*http.Response{{
			StatusCode: http.StatusTooManyRequests,
			Header:     http.Header{HeaderRetryAfter: []string{"3"}},
		}, {StatusCode: http.StatusOK}},
		pauses:     []time.Duration{3 * time.Second},
		wantCalls:  2,
		wantStatus: http.StatusOK,
	}, {
		name: "exhausted until reset",
		responses: []*http.Response{{
			StatusCode: http.StatusForbidden,
			Header: http.Header{
				HeaderXRateLimitRemaining: []string{"0"},
				HeaderXRateLimitReset:     []string{fmt.Sprint(base.Add(30 * time.Second).Unix())},
			},
		}, {StatusCode: http.StatusOK}},
		pauses:     []time.Duration{30 * time.Second},
		wantCalls:  2,
		wantStatus: http.StatusOK,
	}, {
		name:       "forbidden without headers is not a rate limit",
		responses:  []*http.Response{{StatusCode: http.StatusForbidden}},
		wantCalls:  1,
		wantStatus: http.StatusForbidden,
	}, {
		name:       "too many requests without headers uses default",
		responses:  []*http.Response{{StatusCode: http.StatusTooManyRequests}, {StatusCode: http.StatusCreated}},
		pauses:     []time.Duration{defaultRetryAfter},
		wantCalls:  2,
		wantStatus: http.StatusCreated,
	}, {
		name: "gives up after max retries",
		responses: []*http.Response{
			{StatusCode: http.StatusTooManyRequests, Header: http.Header{HeaderRetryAfter: []string{"1"}}},
			{StatusCode: http.StatusTooManyRequests, Header: http.Header{HeaderRetryAfter: []string{"1"}}},
			{StatusCode: http.StatusTooManyRequests, Header: http.Header{HeaderRetryAfter: []string{"1"}}},
			{StatusCode: http.StatusTooManyRequests, Header: http.Header{HeaderRetryAfter: []string{"1"}}},
		},
		pauses:     []time.Duration{time.Second, time.Second, time.Second},
		wantCalls:  4,
		wantStatus: http.StatusTooManyRequests,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := slogtest.Context(t)
			clock := clockwork.NewFakeClockAt(base)
			rt := &testRT{responses: tt.responses}

			tr := NewRateLimitTransport(rt, defaultRetryAfter)
			tr.clock = clock

			type result struct {
				resp *http.Response
				err  error
			}
			done := make(chan result, 1)
			go func() {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/repos/o/r", nil)
				resp, err := tr.RoundTrip(req)
				done <- result{resp, err}
			}()

			for _, d := range tt.pauses {
				if err := clock.BlockUntilContext(ctx, 1); err != nil {
					t.Fatalf("BlockUntilContext() = %v", err)
				}
				clock.Advance(d)
			}

			got := <-done
			if got.err != nil {
				t.Fatalf("RoundTrip() = %v", got.err)
			}
			if got.resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.resp.StatusCode, tt.wantStatus)
			}
			if c := rt.calls(); c != tt.wantCalls {
				t.Errorf("calls = %d, want %d", c, tt.wantCalls)
			}
		})
	}
}

func TestRateLimitTransportPauseBlocksOthers(t *testing.T) {
	ctx := slogtest.Context(t)
	clock := clockwork.NewFakeClock()
	tr := NewRateLimitTransport(&testRT{responses: []*http.Response{{StatusCode: http.StatusOK}}}, 0)
	tr.clock = clock

	tr.pause(time.Minute)

	wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := tr.wait(wctx); err == nil {
		t.Fatal("wait() = nil during pause, want context error")
	}

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() = %v", err)
	}
	clock.Advance(time.Minute)
	if err := tr.wait(ctx); err != nil {
		t.Errorf("wait() after pause = %v", err)
	}
}
