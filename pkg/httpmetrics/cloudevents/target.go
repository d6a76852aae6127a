/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package cloudevents

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	metrics "github.com/chainguard-dev/codemod-bot/pkg/httpmetrics"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"google.golang.org/api/idtoken"
)

// WithTarget sends events to url. HTTPS targets are authenticated with a
// Google identity token for that audience.
func WithTarget(ctx context.Context, url string) ([]cehttp.Option, error) {
	opts := make([]cehttp.Option, 0, 2)

	if strings.HasPrefix(url, "https://") {
		idc, err := idtoken.NewClient(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("creating idtoken client: %w", err)
		}
		opts = append(opts, cehttp.WithClient(http.Client{
			Transport: metrics.WrapTransport(idc.Transport),
		}))
	}

	return append(opts, cehttp.WithTarget(url)), nil
}
