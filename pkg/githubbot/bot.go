/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubbot dispatches GitHub webhook events to typed handlers,
// whether they arrive as CloudEvents from an event broker or directly from
// GitHub.
package githubbot

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/go-github/v75/github"
)

// Envelope is the payload of a forwarded webhook CloudEvent.
type Envelope[T any] struct {
	When    time.Time `json:"when"`
	Headers *Headers  `json:"headers,omitempty"`
	Body    T         `json:"body"`
}

// Headers are the webhook delivery headers recorded with the event.
// https://docs.github.com/en/webhooks/webhook-events-and-payloads#delivery-headers
type Headers struct {
	HookID     string `json:"hook_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Event      string `json:"event,omitempty"`
}

// Bot routes events to at most one handler per event type.
type Bot struct {
	Name     string
	handlers map[EventType]EventHandlerFunc
}

// Option configures a Bot.
type Option func(*Bot)

// WithHandler registers handler.
func WithHandler(handler EventHandlerFunc) Option {
	return func(b *Bot) { b.RegisterHandler(handler) }
}

// New creates a bot.
func New(name string, opts ...Option) *Bot {
	b := &Bot{
		Name:     name,
		handlers: make(map[EventType]EventHandlerFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterHandler adds handler. Registering two handlers for the same event
// type panics.
func (b *Bot) RegisterHandler(handler EventHandlerFunc) {
	etype := handler.EventType()
	if _, ok := b.handlers[etype]; ok {
		panic(fmt.Sprintf("handler for event type %s already registered", etype))
	}
	b.handlers[etype] = handler
}

// Receive handles a CloudEvent carrying an Envelope. It is meant to be
// passed to cloudevents.Client.StartReceiver; a returned error NACKs the
// event so the broker redelivers it.
func (b *Bot) Receive(ctx context.Context, event cloudevents.Event) error {
	log := clog.FromContext(ctx).With("type", event.Type(), "subject", event.Subject(), "id", event.ID())
	ctx = clog.WithLogger(ctx, log)

	etype := EventType(event.Type())
	if _, ok := b.handlers[etype]; !ok {
		log.Debug("ignoring event")
		return nil
	}

	var env Envelope[json.RawMessage]
	if err := event.DataAs(&env); err != nil {
		log.Errorf("failed to unmarshal event envelope: %v", err)
		return err
	}
	return b.dispatch(ctx, etype, env.Body)
}

// dispatch decodes body for etype and runs its handler. Panics in handlers
// are logged and swallowed so a poison event is not redelivered forever.
func (b *Bot) dispatch(ctx context.Context, etype EventType, body []byte) (err error) {
	log := clog.FromContext(ctx)

	handler, ok := b.handlers[etype]
	if !ok {
		log.Debug("ignoring event")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic handling %s: %v\n%s", etype, r, debug.Stack())
			err = nil
		}
	}()

	switch h := handler.(type) {
	case PullRequestHandler:
		var pre github.PullRequestEvent
		if err := json.Unmarshal(body, &pre); err != nil {
			log.Errorf("failed to unmarshal pull request event: %v", err)
			return err
		}
		if err := h(ctx, pre); err != nil {
			log.Errorf("failed to handle pull request event: %v", err)
			return err
		}

	case IssueCommentHandler:
		var ice github.IssueCommentEvent
		if err := json.Unmarshal(body, &ice); err != nil {
			log.Errorf("failed to unmarshal issue comment event: %v", err)
			return err
		}
		if err := h(ctx, ice); err != nil {
			log.Errorf("failed to handle issue comment event: %v", err)
			return err
		}

	default:
		return fmt.Errorf("unsupported handler type %T", handler)
	}
	return nil
}
