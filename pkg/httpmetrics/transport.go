/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	mReqCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_request_count",
			Help: "The total number of HTTP requests",
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name", "ce_type"},
	)
	mReqInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_client_request_in_flight",
			Help: "The number of outgoing HTTP requests currently inflight",
		},
		[]string{"method", "host", "path", "service_name", "revision_name", "ce_type"},
	)
	mReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "The duration of HTTP requests",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name", "ce_type"},
	)
	seenHostMap = sync.Map{}
)

var (
	bucketsMu sync.RWMutex
	buckets   = map[string]string{
		"api.github.com": "github",
		"octo-sts.dev":   "octosts",
	}
)

// SetBuckets replaces the host to label mapping used for client metrics.
// Hosts without a bucket are reported as "other".
func SetBuckets(b map[string]string) {
	bucketsMu.Lock()
	defer bucketsMu.Unlock()
	buckets = b
}

// Transport records metrics for requests sent through http.DefaultTransport.
var Transport = WrapTransport(http.DefaultTransport)

// MetricsTransport is an instrumented http.RoundTripper.
type MetricsTransport struct {
	http.RoundTripper

	inner http.RoundTripper
}

// WrapTransport instruments t.
func WrapTransport(t http.RoundTripper) http.RoundTripper {
	return &MetricsTransport{
		RoundTripper: instrumentRoundTripperCounter(
			instrumentRoundTripperInFlight(
				instrumentRoundTripperDuration(
					instrumentGitHubRateLimits(
						otelhttp.NewTransport(t))))),
		inner: t,
	}
}

// ExtractInnerTransport undoes WrapTransport, so transports built on top of
// http.DefaultTransport are not instrumented twice.
func ExtractInnerTransport(rt http.RoundTripper) http.RoundTripper {
	if mt, ok := rt.(*MetricsTransport); ok {
		return mt.inner
	}
	return rt
}

func mapErrorToLabel(err error) string {
	switch msg := err.Error(); {
	case strings.Contains(msg, "no route to host"):
		return "no-route-to-host"
	case strings.Contains(msg, "i/o timeout"):
		return "io-timeout"
	case strings.Contains(msg, "TLS handshake timeout"):
		return "tls-handshake-timeout"
	case strings.Contains(msg, "unexpected EOF"):
		return "unexpected-eof"
	case strings.Contains(msg, "context canceled"):
		return "canceled"
	}
	return "unknown-error"
}

type requestLabels struct {
	host, path string
}

func labelsFor(r *http.Request) requestLabels {
	host := bucketize(r.Context(), r.URL.Host)
	l := requestLabels{host: host}
	if host == "github" {
		l.path = bucketizeGitHubPath(r.URL.Path)
	}
	return l
}

func instrumentRoundTripperCounter(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		l := labelsFor(r)
		resp, err := next.RoundTrip(r)
		code := ""
		if err == nil {
			code = fmt.Sprint(resp.StatusCode)
		} else {
			code = mapErrorToLabel(err)
		}
		mReqCount.With(prometheus.Labels{
			"code":          code,
			"method":        r.Method,
			"host":          l.host,
			"path":          l.path,
			"service_name":  env.KnativeServiceName,
			"revision_name": env.KnativeRevisionName,
			"ce_type":       r.Header.Get(CeTypeHeader),
		}).Inc()
		return resp, err
	}
}

func instrumentRoundTripperInFlight(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		l := labelsFor(r)
		g := mReqInFlight.With(prometheus.Labels{
			"method":        r.Method,
			"host":          l.host,
			"path":          l.path,
			"service_name":  env.KnativeServiceName,
			"revision_name": env.KnativeRevisionName,
			"ce_type":       r.Header.Get(CeTypeHeader),
		})
		g.Inc()
		defer g.Dec()
		return next.RoundTrip(r)
	}
}

func instrumentRoundTripperDuration(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		if err == nil {
			l := labelsFor(r)
			mReqDuration.With(prometheus.Labels{
				"code":          fmt.Sprint(resp.StatusCode),
				"method":        r.Method,
				"host":          l.host,
				"path":          l.path,
				"service_name":  env.KnativeServiceName,
				"revision_name": env.KnativeRevisionName,
				"ce_type":       r.Header.Get(CeTypeHeader),
			}).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

func bucketize(ctx context.Context, host string) string {
	bucketsMu.RLock()
	b, ok := buckets[host]
	bucketsMu.RUnlock()
	if ok {
		return b
	}

	v, _ := seenHostMap.LoadOrStore(host, &atomic.Int64{})
	if seen := v.(*atomic.Int64).Add(1); (seen-1)%10 == 0 {
		clog.WarnContext(ctx, `bucketing host as "other", use httpmetrics.SetBuckets`, "host", host, "seen", seen)
	}
	return "other"
}
