/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubbot

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v75/github"
)

func sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func deliver(t *testing.T, h http.Handler, event string, body, secret []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req = req.WithContext(slogtest.Context(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(github.SHA256SignatureHeader, sign(body, secret))
	req.Header.Set("X-GitHub-Delivery", "abc-123")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler(t *testing.T) {
	secret := []byte("hunter2")

	var got []string
	bot := New("test",
		WithHandler(PullRequestHandler(func(_ context.Context, pre github.PullRequestEvent) error {
			got = append(got, "pr:"+pre.GetAction())
			return nil
		})),
		WithHandler(IssueCommentHandler(func(_ context.Context, ice github.IssueCommentEvent) error {
			got = append(got, "comment:"+ice.GetComment().GetBody())
			return nil
		})),
	)
	h := bot.WebhookHandler([][]byte{[]byte("old-secret"), secret})

	tests := []struct {
		name   string
		event  string
		body   string
		secret []byte
		want   int
	}{{
		name:   "pull request",
		event:  "pull_request",
		body:   `{"action":"synchronize"}`,
		secret: secret,
		want:   http.StatusOK,
	}, {
		name:   "issue comment",
		event:  "issue_comment",
		body:   `{"action":"created","comment":{"body":"/apply x"}}`,
		secret: secret,
		want:   http.StatusOK,
	}, {
		name:   "bad signature",
		event:  "pull_request",
		body:   `{"action":"opened"}`,
		secret: []byte("wrong"),
		want:   http.StatusForbidden,
	}, {
		name:   "missing event header",
		body:   `{}`,
		secret: secret,
		want:   http.StatusBadRequest,
	}, {
		name:   "unhandled event",
		event:  "push",
		body:   `{}`,
		secret: secret,
		want:   http.StatusAccepted,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := deliver(t, h, tt.event, []byte(tt.body), tt.secret)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	if diff := cmp.Diff([]string{"pr:synchronize", "comment:/apply x"}, got); diff != "" {
		t.Errorf("dispatched mismatch (-want +got):\n%s", diff)
	}
}

func TestWebhookHandlerError(t *testing.T) {
	secret := []byte("hunter2")
	bot := New("test", WithHandler(PullRequestHandler(func(context.Context, github.PullRequestEvent) error {
		return context.DeadlineExceeded
	})))

	rec := deliver(t, bot.WebhookHandler([][]byte{secret}), "pull_request", []byte(`{}`), secret)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWebhookHandlerNoSecrets(t *testing.T) {
	bot := New("test")
	rec := deliver(t, bot.WebhookHandler(nil), "pull_request", []byte(`{}`), []byte("x"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "foo")
	t.Setenv("WEBHOOK_SECRET_2", "bar")
	t.Setenv("WEBHOOK_SECRET_EMPTY", "")

	got := LoadSecretsFromEnv(slogtest.Context(t))

	want := [][]byte{[]byte("foo"), []byte("bar")}
	// Environment order is not specified.
	if len(got) != 2 {
		t.Fatalf("LoadSecretsFromEnv() = %q, want %q", got, want)
	}
	if !(bytes.Equal(got[0], want[0]) && bytes.Equal(got[1], want[1])) && !(bytes.Equal(got[0], want[1]) && bytes.Equal(got[1], want[0])) {
		t.Errorf("LoadSecretsFromEnv() = %q, want %q", got, want)
	}
}
