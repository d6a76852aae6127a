/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// PullRequests performs pull request operations against one repository.
type PullRequests struct {
	client *github.Client
	owner  string
	repo   string
}

// NewPullRequests returns the pull request operations for owner/repo.
func NewPullRequests(client *github.Client, owner, repo string) *PullRequests {
	return &PullRequests{client: client, owner: owner, repo: repo}
}

// Owner returns the repository owner.
func (p *PullRequests) Owner() string { return p.owner }

// Repo returns the repository name.
func (p *PullRequests) Repo() string { return p.repo }

// GetPullRequest fetches a pull request.
func (p *PullRequests) GetPullRequest(ctx context.Context, number int) (*github.PullRequest, error) {
	pr, _, err := p.client.PullRequests.Get(ctx, p.owner, p.repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting pull request %s/%s#%d: %w", p.owner, p.repo, number, err)
	}
	return pr, nil
}

// ListFiles returns every file the pull request touches.
func (p *PullRequests) ListFiles(ctx context.Context, number int) ([]*github.CommitFile, error) {
	var all []*github.CommitFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := p.client.PullRequests.ListFiles(ctx, p.owner, p.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files of %s/%s#%d: %w", p.owner, p.repo, number, err)
		}
		all = append(all, files...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListChangedFiles returns the files whose content the pull request adds to
// or modifies. Removed, renamed-only and empty changes are left out.
func (p *PullRequests) ListChangedFiles(ctx context.Context, number int) ([]*github.CommitFile, error) {
	files, err := p.ListFiles(ctx, number)
	if err != nil {
		return nil, err
	}
	changed := make([]*github.CommitFile, 0, len(files))
	for _, f := range files {
		if f.GetAdditions() == 0 && f.GetDeletions() == 0 {
			continue
		}
		switch f.GetStatus() {
		case "added", "modified", "changed":
			changed = append(changed, f)
		}
	}
	return changed, nil
}

// FileContent is a file's decoded content at some ref and the blob sha
// needed to update it.
type FileContent struct {
	Path    string
	Content string
	SHA     string
}

// GetFileContent fetches path at ref.
func (p *PullRequests) GetFileContent(ctx context.Context, path, ref string) (*FileContent, error) {
	file, _, _, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, fmt.Errorf("getting %s@%s: %w", path, ref, err)
	}
	if file == nil {
		return nil, fmt.Errorf("getting %s@%s: not a file", path, ref)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s@%s: %w", path, ref, err)
	}
	return &FileContent{Path: path, Content: content, SHA: file.GetSHA()}, nil
}

// UpdateFile commits content to path on branch, replacing the blob sha.
// It returns the sha of the new commit.
func (p *PullRequests) UpdateFile(ctx context.Context, path, content, sha, branch, message string) (string, error) {
	resp, _, err := p.client.Repositories.UpdateFile(ctx, p.owner, p.repo, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
		SHA:     github.Ptr(sha),
		Branch:  github.Ptr(branch),
	})
	if err != nil {
		return "", fmt.Errorf("updating %s on %s: %w", path, branch, err)
	}
	clog.FromContext(ctx).With("path", path, "branch", branch).Info("Committed file")
	return resp.Commit.GetSHA(), nil
}

// CreateComment posts a new comment on the pull request.
func (p *PullRequests) CreateComment(ctx context.Context, number int, body string) error {
	if _, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	}); err != nil {
		return fmt.Errorf("creating comment on %s/%s#%d: %w", p.owner, p.repo, number, err)
	}
	return nil
}

// UpsertComment keeps a single comment carrying marker on the pull request:
// the first comment containing marker is edited, otherwise one is created.
// marker is prepended to body when body does not already contain it.
func (p *PullRequests) UpsertComment(ctx context.Context, number int, marker, body string) error {
	if !strings.Contains(body, marker) {
		body = marker + "\n\n" + body
	}

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := p.client.Issues.ListComments(ctx, p.owner, p.repo, number, opts)
		if err != nil {
			return fmt.Errorf("listing comments on %s/%s#%d: %w", p.owner, p.repo, number, err)
		}
		for _, c := range comments {
			if !strings.Contains(c.GetBody(), marker) {
				continue
			}
			if c.GetBody() == body {
				clog.FromContext(ctx).Debugf("comment %d is up to date", c.GetID())
				return nil
			}
			if _, _, err := p.client.Issues.EditComment(ctx, p.owner, p.repo, c.GetID(), &github.IssueComment{
				Body: github.Ptr(body),
			}); err != nil {
				return fmt.Errorf("editing comment %d: %w", c.GetID(), err)
			}
			return nil
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return p.CreateComment(ctx, number, body)
}
