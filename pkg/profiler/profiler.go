/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package profiler starts the Cloud Profiler agent when ENABLE_PROFILER is set.
package profiler

import (
	"context"

	"cloud.google.com/go/profiler"
	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	EnableProfiler bool   `env:"ENABLE_PROFILER, default=false"`
	Service        string `env:"K_SERVICE, default=codemod-bot"`
	Version        string `env:"K_REVISION"`
}

var start = profiler.Start

// Setup starts the profiler if it is enabled. Failing to start it is fatal,
// since it was explicitly asked for.
func Setup(ctx context.Context) {
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing profiler config: %v", err)
	}
	if !cfg.EnableProfiler {
		return
	}
	if err := start(profiler.Config{Service: cfg.Service, ServiceVersion: cfg.Version}); err != nil {
		clog.FatalContextf(ctx, "failed to start profiler: %v", err)
	}
	clog.InfoContextf(ctx, "started profiler for %s", cfg.Service)
}
