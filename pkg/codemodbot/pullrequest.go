/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/codemod-bot/pkg/manifest"
	"github.com/google/go-github/v75/github"
)

// PullRequest summarizes the dependency bumps of a pull request that was
// opened, reopened or pushed to.
func (h *Handler) PullRequest(ctx context.Context, pre github.PullRequestEvent) error {
	log := clog.FromContext(ctx)

	switch pre.GetAction() {
	case "opened", "synchronize", "reopened":
	default:
		log.Debugf("Skipping action: %s", pre.GetAction())
		return nil
	}

	owner, repo, number := pre.GetRepo().GetOwner().GetLogin(), pre.GetRepo().GetName(), pre.GetNumber()
	log = log.With("owner", owner, "repo", repo, "pr", number)
	ctx = clog.WithLogger(ctx, log)
	log.Infof("Processing pull request (action: %s)", pre.GetAction())

	cli, err := h.clients(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("creating client for %s/%s: %w", owner, repo, err)
	}

	files, err := cli.ListFiles(ctx, number)
	if err != nil {
		return err
	}
	f := manifest.FindManifest(files)
	if f == nil {
		log.Info("No package.json changes detected")
		return nil
	}

	changes := manifest.Changes(f)
	if len(changes) == 0 {
		log.Info("No dependency version changes found")
		return nil
	}
	for _, c := range changes {
		log.With("package", c.Name, "from", c.OldVersion, "to", c.NewVersion, "section", c.Section, "major", c.IsMajor()).
			Info("Dependency version changed")
	}

	body, err := DependenciesComment(changes)
	if err != nil {
		return err
	}
	return cli.UpsertComment(ctx, number, DependenciesMarker, body)
}
