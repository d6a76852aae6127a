/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestServerMetrics(t *testing.T) {
	const handler = "test"
	srv := httptest.NewServer(Handler(handler, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want Accepted, got %s", resp.Status)
	}

	if got := testutil.ToFloat64(counter.With(prometheus.Labels{
		"handler":       handler,
		"method":        http.MethodGet,
		"code":          "202",
		"service_name":  "unknown",
		"revision_name": "unknown",
		"ce_type":       "",
	})); got != 1 {
		t.Errorf("want metric count = 1, got %f", got)
	}
}

func TestBucketize(t *testing.T) {
	orig := buckets
	t.Cleanup(func() { SetBuckets(orig) })

	SetBuckets(map[string]string{
		"api.github.com":         "github",
		"octo-sts.dev":           "octosts",
		"storage.googleapis.com": "gcs",
	})
	for _, c := range []struct{ host, bucket string }{
		{"api.github.com", "github"},
		{"octo-sts.dev", "octosts"},
		{"storage.googleapis.com", "gcs"},
		{"github.com", "other"},
		{"127.0.0.1:8080", "other"},
	} {
		if got := bucketize(t.Context(), c.host); got != c.bucket {
			t.Errorf("bucketize(%q) = %q, want %q", c.host, got, c.bucket)
		}
	}
}
