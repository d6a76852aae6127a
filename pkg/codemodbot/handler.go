/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"github.com/chainguard-dev/codemod-bot/pkg/githubbot"
)

// DefaultConcurrency bounds the codemod runs of a single /apply command.
const DefaultConcurrency = 4

// Handler holds what the event handlers share.
type Handler struct {
	clients     ClientFunc
	runner      Runner
	archive     Archiver
	notifier    *Notifier
	concurrency int
}

// Option configures a Handler.
type Option func(*Handler)

// WithArchive stores the diff of every committed file in a.
func WithArchive(a Archiver) Option {
	return func(h *Handler) { h.archive = a }
}

// WithNotifier publishes an event for every committed file.
func WithNotifier(n *Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithConcurrency bounds how many files are transformed at once. Values
// below one are ignored.
func WithConcurrency(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// New returns a Handler.
func New(clients ClientFunc, runner Runner, opts ...Option) *Handler {
	h := &Handler{
		clients:     clients,
		runner:      runner,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bot returns a bot named name that routes pull request and issue comment
// events to h.
func (h *Handler) Bot(name string) *githubbot.Bot {
	return githubbot.New(name,
		githubbot.WithHandler(githubbot.PullRequestHandler(h.PullRequest)),
		githubbot.WithHandler(githubbot.IssueCommentHandler(h.IssueComment)),
	)
}
