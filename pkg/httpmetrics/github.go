/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// githubPaths maps the REST endpoints the bot calls to low-cardinality labels.
// https://docs.github.com/en/rest
var githubPaths = []struct {
	pattern *regexp.Regexp
	bucket  string
}{{
	// https://docs.github.com/en/rest/pulls/pulls#get-a-pull-request
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/pulls/\d+$`),
	bucket:  "/repos/{org}/{repo}/pulls/{number}",
}, {
	// https://docs.github.com/en/rest/pulls/pulls#list-pull-requests-files
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/pulls/\d+/files$`),
	bucket:  "/repos/{org}/{repo}/pulls/{number}/files",
}, {
	// https://docs.github.com/en/rest/repos/contents#get-repository-content
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/contents/.*$`),
	bucket:  "/repos/{org}/{repo}/contents/{path}",
}, {
	// https://docs.github.com/en/rest/issues/comments#list-issue-comments
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/\d+/comments$`),
	bucket:  "/repos/{org}/{repo}/issues/{number}/comments",
}, {
	// https://docs.github.com/en/rest/issues/comments#update-an-issue-comment
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/issues/comments/\d+$`),
	bucket:  "/repos/{org}/{repo}/issues/comments/{id}",
}, {
	// https://docs.github.com/en/rest/apps/apps#get-a-repository-installation-for-the-authenticated-app
	pattern: regexp.MustCompile(`^/repos/[^/]+/[^/]+/installation$`),
	bucket:  "/repos/{org}/{repo}/installation",
}, {
	// https://docs.github.com/en/rest/apps/apps#create-an-installation-access-token-for-an-app
	pattern: regexp.MustCompile(`^/app/installations/\d+/access_tokens$`),
	bucket:  "/app/installations/{id}/access_tokens",
}}

// bucketizeGitHubPath returns the label for a GitHub API path, or "other".
func bucketizeGitHubPath(path string) string {
	for _, p := range githubPaths {
		if p.pattern.MatchString(path) {
			return p.bucket
		}
	}
	return "other"
}

var (
	mGitHubRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_remaining",
			Help: "The number of requests remaining in the current rate limit window",
		},
		[]string{"resource"},
	)
	mGitHubRateLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit",
			Help: "The number of requests allowed during the rate limit window",
		},
		[]string{"resource"},
	)
	mGitHubRateLimitTimeToReset = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_time_to_reset",
			Help: "The number of minutes until the current rate limit window resets",
		},
		[]string{"resource"},
	)
)

// instrumentGitHubRateLimits records the rate limit headers of GitHub responses.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api
func instrumentGitHubRateLimits(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err != nil || resp.Header.Get("X-RateLimit-Limit") == "" {
			return resp, err
		}

		resource := resp.Header.Get("X-RateLimit-Resource")
		if resource == "" {
			resource = "unknown"
		}
		val := func(key string) float64 {
			i, err := strconv.ParseInt(resp.Header.Get(key), 10, 64)
			if err != nil {
				return 0
			}
			return float64(i)
		}

		labels := prometheus.Labels{"resource": resource}
		mGitHubRateLimitRemaining.With(labels).Set(val("X-RateLimit-Remaining"))
		mGitHubRateLimit.With(labels).Set(val("X-RateLimit-Limit"))
		if reset := val("X-RateLimit-Reset"); reset > 0 {
			mGitHubRateLimitTimeToReset.With(labels).Set(time.Until(time.Unix(int64(reset), 0)).Minutes())
		}
		return resp, nil
	}
}
