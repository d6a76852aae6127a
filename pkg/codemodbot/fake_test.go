/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"github.com/chainguard-dev/codemod-bot/pkg/githubclient"
	"github.com/chainguard-dev/codemod-bot/pkg/textdiff"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/go-github/v75/github"
)

type commit struct {
	Path, Content, SHA, Branch, Message string
}

type fakeClient struct {
	mu sync.Mutex

	pr       *github.PullRequest
	files    []*github.CommitFile
	contents map[string]string
	failPuts map[string]bool

	commits  []commit
	comments []string
	upserts  map[string]string
}

var _ PullRequestClient = (*fakeClient)(nil)

func (f *fakeClient) GetPullRequest(context.Context, int) (*github.PullRequest, error) {
	return f.pr, nil
}

func (f *fakeClient) ListFiles(context.Context, int) ([]*github.CommitFile, error) {
	return f.files, nil
}

func (f *fakeClient) ListChangedFiles(context.Context, int) ([]*github.CommitFile, error) {
	return f.files, nil
}

func (f *fakeClient) GetFileContent(_ context.Context, path, ref string) (*githubclient.FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.contents[path]
	if !ok {
		return nil, fmt.Errorf("getting %s@%s: 404 Not Found", path, ref)
	}
	return &githubclient.FileContent{Path: path, Content: content, SHA: "blob-" + path}, nil
}

func (f *fakeClient) UpdateFile(_ context.Context, path, content, sha, branch, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts[path] {
		return "", errors.New("409 Conflict")
	}
	f.commits = append(f.commits, commit{Path: path, Content: content, SHA: sha, Branch: branch, Message: message})
	return fmt.Sprintf("commit%d", len(f.commits)), nil
}

func (f *fakeClient) CreateComment(_ context.Context, _ int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeClient) UpsertComment(_ context.Context, _ int, marker, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserts == nil {
		f.upserts = map[string]string{}
	}
	f.upserts[marker] = body
	return nil
}

func (f *fakeClient) clients() ClientFunc {
	return func(context.Context, string, string) (PullRequestClient, error) { return f, nil }
}

// fakeRunner applies fn to the content, or fails with errs[FileName].
type fakeRunner struct {
	fn   func(string) string
	errs map[string]error

	mu       sync.Mutex
	inFlight int
	peak     int
	requests []codemod.Request
}

func (r *fakeRunner) Run(_ context.Context, req codemod.Request) (*codemod.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.inFlight++
	r.peak = max(r.peak, r.inFlight)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if err := r.errs[req.FileName]; err != nil {
		return nil, err
	}
	after := r.fn(req.Content)
	return &codemod.Result{
		Codemod: req.Codemod,
		Before:  req.Content,
		After:   after,
		Diff:    textdiff.Diff(req.Content, after),
	}, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchive) Put(_ context.Context, key string, _ *codemod.Result) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key+".diff")
	return key + ".diff", nil
}

type fakeCEClient struct {
	cloudevents.Client

	events []cloudevents.Event
}

func (f *fakeCEClient) Send(_ context.Context, event cloudevents.Event) cloudevents.Result {
	f.events = append(f.events, event)
	return nil
}
