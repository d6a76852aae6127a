/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"context"

	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"github.com/chainguard-dev/codemod-bot/pkg/githubclient"
	"github.com/google/go-github/v75/github"
)

// PullRequestClient is the source-control surface the handlers need for a
// single repository. *githubclient.PullRequests implements it.
type PullRequestClient interface {
	GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error)
	ListFiles(ctx context.Context, number int) ([]*github.CommitFile, error)
	ListChangedFiles(ctx context.Context, number int) ([]*github.CommitFile, error)
	GetFileContent(ctx context.Context, path, ref string) (*githubclient.FileContent, error)
	UpdateFile(ctx context.Context, path, content, sha, branch, message string) (string, error)
	CreateComment(ctx context.Context, number int, body string) error
	UpsertComment(ctx context.Context, number int, marker, body string) error
}

var _ PullRequestClient = (*githubclient.PullRequests)(nil)

// ClientFunc returns a client scoped to owner/repo.
type ClientFunc func(ctx context.Context, owner, repo string) (PullRequestClient, error)

// CachedClients returns a ClientFunc backed by cc.
func CachedClients(cc *githubclient.ClientCache) ClientFunc {
	return func(ctx context.Context, owner, repo string) (PullRequestClient, error) {
		client, err := cc.Get(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		return githubclient.NewPullRequests(client, owner, repo), nil
	}
}

// Runner runs a single codemod. *codemod.Runner implements it.
type Runner interface {
	Run(ctx context.Context, req codemod.Request) (*codemod.Result, error)
}

// Archiver stores the diff of a transformed file. *archive.Archive
// implements it.
type Archiver interface {
	Put(ctx context.Context, key string, res *codemod.Result) (string, error)
}
