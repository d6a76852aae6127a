/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chainguard.dev/sdk/octosts"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNoInstallation is returned when Octo STS cannot find the GitHub App
// installation backing an identity, which usually means the org's
// installation quota is exhausted or the app is not installed.
var ErrNoInstallation = errors.New("no GitHub App installation for scope")

// TokenSourceFunc creates a token source scoped to org/repo.
type TokenSourceFunc func(ctx context.Context, org, repo string) (oauth2.TokenSource, error)

// StaticTokenSource returns the same token for every repository.
func StaticTokenSource(token string) TokenSourceFunc {
	return func(context.Context, string, string) (oauth2.TokenSource, error) {
		if token == "" {
			return nil, errors.New("empty GitHub token")
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}), nil
	}
}

// octoTokenFunc is replaced in tests.
var octoTokenFunc = octosts.Token

type octoTokenSource struct {
	ctx      context.Context
	identity string
	org      string
	repo     string
}

func (ts *octoTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ts.ctx, time.Minute)
	defer cancel()

	tok, err := octoTokenFunc(ctx, ts.identity, ts.org, ts.repo)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			clog.ErrorContextf(ctx, "Got NotFound error from Octo STS for %s/%s: %v", ts.org, ts.repo, err)
			return nil, fmt.Errorf("%w %s/%s: %w", ErrNoInstallation, ts.org, ts.repo, err)
		}
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		// Octo STS tokens live for an hour.
		Expiry: time.Now().Add(55 * time.Minute),
	}, nil
}

// OctoSTSTokenSource exchanges the ambient identity token for a repo-scoped
// GitHub token through Octo STS, using the named trust policy.
func OctoSTSTokenSource(identity string) TokenSourceFunc {
	return func(ctx context.Context, org, repo string) (oauth2.TokenSource, error) {
		return oauth2.ReuseTokenSource(nil, &octoTokenSource{
			ctx:      ctx,
			identity: identity,
			org:      org,
			repo:     repo,
		}), nil
	}
}

// App identifies a GitHub App and how it signs its JWTs.
type App struct {
	ID int64
	// InstallationID pins the installation. Zero looks up the installation
	// on each repository.
	InstallationID int64
	Signer         ghinstallation.Signer
	// BaseURL overrides the GitHub API endpoint.
	BaseURL string
}

type installationTokenSource struct {
	ctx context.Context
	tr  *ghinstallation.Transport
}

func (ts *installationTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.tr.Token(ts.ctx)
	if err != nil {
		return nil, err
	}
	// ghinstallation refreshes on its own; a short expiry makes oauth2 ask
	// it again before GitHub's hour is up.
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "token",
		Expiry:      time.Now().Add(10 * time.Minute),
	}, nil
}

// AppTokenSource mints installation tokens for app.
func AppTokenSource(app App) (TokenSourceFunc, error) {
	atr, err := ghinstallation.NewAppsTransportWithOptions(http.DefaultTransport, app.ID, ghinstallation.WithSigner(app.Signer))
	if err != nil {
		return nil, fmt.Errorf("creating apps transport: %w", err)
	}
	if app.BaseURL != "" {
		atr.BaseURL = app.BaseURL
	}

	return func(ctx context.Context, org, repo string) (oauth2.TokenSource, error) {
		id := app.InstallationID
		if id == 0 {
			var err error
			if id, err = findInstallation(ctx, atr, org, repo); err != nil {
				return nil, err
			}
		}
		tr := ghinstallation.NewFromAppsTransport(atr, id)
		if app.BaseURL != "" {
			tr.BaseURL = app.BaseURL
		}
		return oauth2.ReuseTokenSource(nil, &installationTokenSource{ctx: ctx, tr: tr}), nil
	}, nil
}

func findInstallation(ctx context.Context, atr *ghinstallation.AppsTransport, org, repo string) (int64, error) {
	client := github.NewClient(&http.Client{Transport: atr})
	if atr.BaseURL != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(atr.BaseURL, atr.BaseURL); err != nil {
			return 0, err
		}
	}
	inst, _, err := client.Apps.FindRepositoryInstallation(ctx, org, repo)
	if err != nil {
		return 0, fmt.Errorf("%w %s/%s: %w", ErrNoInstallation, org, repo, err)
	}
	return inst.GetID(), nil
}
