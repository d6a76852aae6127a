/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubbot

import (
	"context"

	"github.com/google/go-github/v75/github"
)

// EventType is the CloudEvent type GitHub webhooks are forwarded under.
type EventType string

const (
	PullRequestEvent  EventType = "dev.chainguard.github.pull_request"
	IssueCommentEvent EventType = "dev.chainguard.github.issue_comment"
)

// eventTypePrefix turns an X-GitHub-Event value into an EventType.
const eventTypePrefix = "dev.chainguard.github."

// EventHandlerFunc is implemented by the typed handlers below.
type EventHandlerFunc interface {
	EventType() EventType
}

// PullRequestHandler handles pull_request webhooks.
type PullRequestHandler func(ctx context.Context, pre github.PullRequestEvent) error

func (PullRequestHandler) EventType() EventType { return PullRequestEvent }

// IssueCommentHandler handles issue_comment webhooks, which GitHub also
// sends for comments on pull requests.
type IssueCommentHandler func(ctx context.Context, ice github.IssueCommentEvent) error

func (IssueCommentHandler) EventType() EventType { return IssueCommentEvent }
