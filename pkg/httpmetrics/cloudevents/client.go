/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cloudevents builds CloudEvents HTTP clients whose traffic is
// instrumented by httpmetrics.
package cloudevents

import (
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	metrics "github.com/chainguard-dev/codemod-bot/pkg/httpmetrics"
)

// NewClientHTTP creates a CloudEvents client that both sends through the
// metrics transport and serves through the metrics handler.
func NewClientHTTP(name string, opts ...cehttp.Option) (cloudevents.Client, error) {
	// Passing a client keeps NewClientHTTP from clobbering
	// http.DefaultClient's transport.
	copt := append([]cehttp.Option{
		cehttp.WithClient(http.Client{Transport: metrics.Transport}),
		cloudevents.WithMiddleware(func(next http.Handler) http.Handler {
			return metrics.Handler(name, next)
		}),
	}, opts...)
	return cloudevents.NewClientHTTP(copt...)
}
