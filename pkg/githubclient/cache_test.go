/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"golang.org/x/oauth2"
)

func TestClientCache(t *testing.T) {
	ctx := slogtest.Context(t)

	var created atomic.Int32
	cc, err := NewClientCache(func(_ context.Context, org, repo string) (oauth2.TokenSource, error) {
		created.Add(1)
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: org + "-" + repo}), nil
	})
	if err != nil {
		t.Fatalf("NewClientCache() = %v", err)
	}

	a1, err := cc.Get(ctx, "acme", "web")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	a2, _ := cc.Get(ctx, "acme", "web")
	b, _ := cc.Get(ctx, "acme", "api")

	if a1 != a2 {
		t.Error("Get() returned a new client for a cached repo")
	}
	if a1 == b {
		t.Error("Get() shared a client across repos")
	}
	if got := created.Load(); got != 2 {
		t.Errorf("token sources created = %d, want 2", got)
	}

	cc.Clear()
	if a3, _ := cc.Get(ctx, "acme", "web"); a3 == a1 {
		t.Error("Get() after Clear() returned the old client")
	}
}

func TestClientCacheAuthenticates(t *testing.T) {
	ctx := slogtest.Context(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ghs_secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"number": 3, "head": {"ref": "feature", "sha": "abc"}}`))
	}))
	defer srv.Close()

	cc, err := NewClientCache(StaticTokenSource("ghs_secret"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClientCache() = %v", err)
	}
	client, err := cc.Get(ctx, "acme", "web")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}

	pr, err := NewPullRequests(client, "acme", "web").GetPullRequest(ctx, 3)
	if err != nil {
		t.Fatalf("GetPullRequest() = %v", err)
	}
	if pr.GetHead().GetRef() != "feature" {
		t.Errorf("head ref = %q, want feature", pr.GetHead().GetRef())
	}
}

func TestClientCacheTokenSourceError(t *testing.T) {
	ctx := slogtest.Context(t)
	want := errors.New("no credentials")

	cc, _ := NewClientCache(func(context.Context, string, string) (oauth2.TokenSource, error) {
		return nil, want
	})
	if _, err := cc.Get(ctx, "acme", "web"); !errors.Is(err, want) {
		t.Errorf("Get() = %v, want %v", err, want)
	}
}
