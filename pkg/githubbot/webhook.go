/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// maxPayload bounds webhook bodies; GitHub caps deliveries at 25MB.
const maxPayload = 25 << 20

// WebhookHandler serves raw GitHub webhook deliveries, verifying their
// signature against any of secrets before dispatching them in-process.
func (b *Bot) WebhookHandler(secrets [][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := clog.FromContext(ctx)

		payload, err := ValidatePayload(r, secrets)
		if err != nil {
			log.Errorf("failed to verify webhook: %v", err)
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintf(w, "failed to verify webhook: %v", err)
			return
		}

		t := github.WebHookType(r)
		if t == "" {
			log.Errorf("missing X-GitHub-Event header")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		etype := EventType(eventTypePrefix + t)
		log = log.With("type", etype, "delivery", github.DeliveryID(r))
		ctx = clog.WithLogger(ctx, log)

		if _, ok := b.handlers[etype]; !ok {
			log.Debug("ignoring event")
			w.WriteHeader(http.StatusAccepted)
			return
		}

		// GitHub gives up on a delivery after ten seconds, but the work
		// must finish regardless.
		if err := b.dispatch(context.WithoutCancel(ctx), etype, payload); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ValidatePayload returns the body of r if its signature verifies against
// any of secrets.
func ValidatePayload(r *http.Request, secrets [][]byte) ([]byte, error) {
	if len(secrets) == 0 {
		return nil, errors.New("no webhook secrets configured")
	}
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		return nil, err
	}

	for _, secret := range secrets {
		payload, err := github.ValidatePayloadFromBody(contentType, bytes.NewReader(body), signature, secret)
		if err == nil {
			return payload, nil
		}
	}
	return nil, errors.New("signature does not match any secret")
}

// LoadSecretsFromEnv returns the value of every environment variable whose
// name starts with WEBHOOK_SECRET, so secrets can be rotated by adding a new
// variable before removing the old one.
func LoadSecretsFromEnv(ctx context.Context) [][]byte {
	var secrets [][]byte
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok || v == "" {
			continue
		}
		if strings.HasPrefix(k, "WEBHOOK_SECRET") {
			clog.InfoContextf(ctx, "loading secret: %q", k)
			secrets = append(secrets, []byte(v))
		}
	}
	return secrets
}
