/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubclient builds authenticated GitHub clients and wraps the
// pull request operations the bot performs.
package githubclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/codemod-bot/pkg/httpmetrics"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// ClientCache hands out one GitHub client per org/repo.
type ClientCache struct {
	tokenSourceFunc TokenSourceFunc
	baseURL         *url.URL
	rateLimit       *RateLimitTransport

	mu      sync.RWMutex
	clients map[string]*github.Client
}

// CacheOption configures a ClientCache.
type CacheOption func(*ClientCache) error

// WithBaseURL points clients at a GitHub API other than api.github.com.
func WithBaseURL(base string) CacheOption {
	return func(cc *ClientCache) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("parsing base url: %w", err)
		}
		cc.baseURL = u
		return nil
	}
}

// NewClientCache creates a cache whose clients authenticate with tokens from
// tokenSourceFunc. All clients share one RateLimitTransport, since GitHub
// accounts the limit per installation rather than per repository.
func NewClientCache(tokenSourceFunc TokenSourceFunc, opts ...CacheOption) (*ClientCache, error) {
	cc := &ClientCache{
		tokenSourceFunc: tokenSourceFunc,
		rateLimit:       NewRateLimitTransport(httpmetrics.WrapTransport(httpmetrics.ExtractInnerTransport(http.DefaultTransport)), 0),
		clients:         make(map[string]*github.Client),
	}
	for _, opt := range opts {
		if err := opt(cc); err != nil {
			return nil, err
		}
	}
	return cc, nil
}

// Get returns the client for org/repo, creating it on first use.
func (cc *ClientCache) Get(ctx context.Context, org, repo string) (*github.Client, error) {
	key := org + "/" + repo
	log := clog.FromContext(ctx).With("org", org, "repo", repo)

	cc.mu.RLock()
	client, ok := cc.clients[key]
	cc.mu.RUnlock()
	if ok {
		log.Debug("Using cached GitHub client")
		return client, nil
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if client, ok := cc.clients[key]; ok {
		return client, nil
	}

	// The token source outlives this request, so it must not inherit its
	// cancellation.
	ts, err := cc.tokenSourceFunc(context.WithoutCancel(ctx), org, repo)
	if err != nil {
		return nil, fmt.Errorf("creating token source: %w", err)
	}

	client = github.NewClient(&http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: cc.rateLimit},
	})
	if cc.baseURL != nil {
		client.BaseURL = cc.baseURL
	}
	cc.clients[key] = client

	log.Info("Created new GitHub client for repository")
	return client, nil
}

// Clear drops every cached client.
func (cc *ClientCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.clients = make(map[string]*github.Client)
}
