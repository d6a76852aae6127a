/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// AppliedEventType is emitted once per committed file.
const AppliedEventType = "dev.chainguard.codemod.applied"

// Applied is the payload of an AppliedEventType event.
type Applied struct {
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Number    int    `json:"number"`
	Codemod   string `json:"codemod"`
	Path      string `json:"path"`
	Commit    string `json:"commit"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	// Archive is the object key of the stored diff, if one was stored.
	Archive string `json:"archive,omitempty"`
}

// Notifier publishes Applied events.
type Notifier struct {
	client cloudevents.Client
	source string
}

// NewNotifier returns a Notifier sending through client with the given
// event source.
func NewNotifier(client cloudevents.Client, source string) *Notifier {
	return &Notifier{client: client, source: source}
}

// Applied sends a.
func (n *Notifier) Applied(ctx context.Context, a Applied) error {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetType(AppliedEventType)
	event.SetSource(n.source)
	event.SetSubject(fmt.Sprintf("%s/%s", a.Owner, a.Repo))
	if err := event.SetData(cloudevents.ApplicationJSON, a); err != nil {
		return fmt.Errorf("setting event data: %w", err)
	}

	if result := n.client.Send(ctx, event); cloudevents.IsUndelivered(result) || cloudevents.IsNACK(result) {
		clog.FromContext(ctx).Errorf("Failed to deliver event: %v", result)
		return fmt.Errorf("sending %s event: %w", AppliedEventType, result)
	}
	return nil
}
