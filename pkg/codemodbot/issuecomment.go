/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/codemod-bot/pkg/archive"
	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"github.com/google/go-github/v75/github"
	"golang.org/x/sync/errgroup"
)

// outcome is the result of running the codemod on one changed file.
type outcome struct {
	path   string
	sha    string
	result *codemod.Result
	err    error
}

// IssueComment handles "/apply <codemod>" comments on pull requests.
func (h *Handler) IssueComment(ctx context.Context, ice github.IssueCommentEvent) error {
	log := clog.FromContext(ctx)

	if ice.GetAction() != "created" {
		log.Debugf("Skipping action: %s", ice.GetAction())
		return nil
	}
	if !ice.GetIssue().IsPullRequest() {
		log.Debug("Comment is not on a pull request, skipping")
		return nil
	}
	id, ok := ParseCommand(ice.GetComment().GetBody())
	if !ok {
		log.Debug("No /apply command found in comment")
		return nil
	}

	owner, repo, number := ice.GetRepo().GetOwner().GetLogin(), ice.GetRepo().GetName(), ice.GetIssue().GetNumber()
	log = log.With("owner", owner, "repo", repo, "pr", number, "codemod", id)
	ctx = clog.WithLogger(ctx, log)
	log.Info("Detected /apply command")

	cli, err := h.clients(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("creating client for %s/%s: %w", owner, repo, err)
	}

	pr, err := cli.GetPullRequest(ctx, number)
	if err != nil {
		return err
	}
	if head, base := pr.GetHead().GetRepo().GetFullName(), pr.GetBase().GetRepo().GetFullName(); head != base {
		log.Warnf("Head branch lives in %s, cannot push to it", head)
		return cli.CreateComment(ctx, number, fmt.Sprintf("Codemod `%s` cannot be applied: the head branch lives in the fork %s.", id, head))
	}

	files, err := cli.ListChangedFiles(ctx, number)
	if err != nil {
		return err
	}

	outcomes := make([]outcome, len(files))
	var eg errgroup.Group
	eg.SetLimit(h.concurrency)
	for i, f := range files {
		eg.Go(func() error {
			outcomes[i] = h.transform(ctx, cli, pr.GetHead().GetSHA(), id, f.GetFilename())
			return nil
		})
	}
	_ = eg.Wait() // Failures are recorded per file.

	// Each commit moves the head of the branch, so they are made one at a
	// time after every run has finished.
	var (
		applied []AppliedFile
		failed  []FailedFile
	)
	for _, o := range outcomes {
		flog := log.With("path", o.path)
		if o.err != nil {
			flog.With("kind", codemod.Kind(o.err)).Errorf("Failed to apply codemod: %v", o.err)
			failed = append(failed, FailedFile{Path: o.path, Reason: reason(o.err)})
			continue
		}
		if !o.result.Diff.HasChanges {
			flog.Info("Codemod made no changes")
			continue
		}

		commit, err := cli.UpdateFile(ctx, o.path, o.result.After, o.sha, pr.GetHead().GetRef(),
			fmt.Sprintf("Apply codemod %s to %s", id, o.path))
		if err != nil {
			flog.Errorf("Failed to commit: %v", err)
			failed = append(failed, FailedFile{Path: o.path, Reason: "commit failed"})
			continue
		}
		applied = append(applied, AppliedFile{
			Path:      o.path,
			Commit:    commit,
			Additions: o.result.Diff.Added(),
			Deletions: o.result.Diff.Deleted(),
		})
		h.record(clog.WithLogger(ctx, flog), owner, repo, number, id, o.path, commit, o.result)
	}

	body, err := SummaryComment(id, applied, failed)
	if err != nil {
		return err
	}
	return cli.CreateComment(ctx, number, body)
}

// transform runs codemodID on path as it is at ref.
func (h *Handler) transform(ctx context.Context, cli PullRequestClient, ref, codemodID, path string) outcome {
	o := outcome{path: path}
	file, err := cli.GetFileContent(ctx, path, ref)
	if err != nil {
		o.err = err
		return o
	}
	o.sha = file.SHA
	o.result, o.err = h.runner.Run(ctx, codemod.Request{
		Content:  file.Content,
		Codemod:  codemodID,
		FileName: path,
	})
	return o
}

// record archives and announces a committed file. Neither is required for
// the command to succeed, so failures are only logged.
func (h *Handler) record(ctx context.Context, owner, repo string, number int, codemodID, path, commit string, res *codemod.Result) {
	log := clog.FromContext(ctx)

	var key string
	if h.archive != nil {
		k, err := h.archive.Put(ctx, archive.Key(owner, repo, number, codemodID, path), res)
		if err != nil {
			log.Warnf("Failed to archive diff: %v", err)
		} else {
			key = k
		}
	}

	if h.notifier != nil {
		if err := h.notifier.Applied(ctx, Applied{
			Owner:     owner,
			Repo:      repo,
			Number:    number,
			Codemod:   codemodID,
			Path:      path,
			Commit:    commit,
			Additions: res.Diff.Added(),
			Deletions: res.Diff.Deleted(),
			Archive:   key,
		}); err != nil {
			log.Warnf("Failed to send event: %v", err)
		}
	}
}

// reason is the user-facing explanation of a failed run.
func reason(err error) string {
	switch codemod.Kind(err) {
	case codemod.KindTimeout:
		return "timed out"
	case codemod.KindSpawn:
		return "the codemod could not be started"
	case codemod.KindCreation, codemod.KindRead:
		return "workspace error"
	case codemod.KindCanceled:
		return "canceled"
	default:
		return "could not be read or transformed"
	}
}
