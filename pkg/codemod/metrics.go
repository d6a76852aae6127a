/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemod

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codemod_runs_total",
			Help: "The number of codemod runs by outcome.",
		},
		[]string{"codemod", "outcome"},
	)
	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codemod_run_duration_seconds",
			Help:    "A histogram of codemod run latencies.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 120},
		},
		[]string{"codemod", "outcome"},
	)
	workspacesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codemod_workspaces_in_flight",
			Help: "The number of codemod workspaces currently on disk.",
		},
	)
)

func observe(codemod, outcome string, d time.Duration) {
	runs.WithLabelValues(codemod, outcome).Inc()
	runDuration.WithLabelValues(codemod, outcome).Observe(d.Seconds())
}
