/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v4/disk"
)

// DiskUsageScrapeInterval is how often ScrapeDiskUsage samples.
const DiskUsageScrapeInterval = 15 * time.Second

var (
	diskUsedBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_usage_bytes",
			Help: "Disk usage in bytes of the volume holding a path.",
		},
		[]string{"path"},
	)
	diskFreeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "disk_free_bytes",
			Help: "Free bytes on the volume holding a path.",
		},
		[]string{"path"},
	)
)

type diskUsage struct {
	used, free uint64
}

// scrapeDiskUsage samples the volumes holding paths. Paths whose volume
// reports no usage are left out.
func scrapeDiskUsage(ctx context.Context, paths []string) map[string]diskUsage {
	usage := make(map[string]diskUsage, len(paths))
	for _, p := range paths {
		s, err := disk.UsageWithContext(ctx, p)
		if err != nil || s == nil || s.Total == 0 {
			continue
		}
		usage[p] = diskUsage{used: s.Used, free: s.Free}
	}
	return usage
}

// ScrapeDiskUsage reports the usage of the volumes holding paths until ctx
// is done. Codemod workspaces live on disk, so a filling volume shows up
// here before runs start failing.
func ScrapeDiskUsage(ctx context.Context, paths ...string) {
	clog.FromContext(ctx).Info("Starting disk usage scraper", "interval", DiskUsageScrapeInterval, "paths", paths)

	ticker := time.NewTicker(DiskUsageScrapeInterval)
	defer ticker.Stop()

	for {
		for p, u := range scrapeDiskUsage(ctx, paths) {
			diskUsedBytes.WithLabelValues(p).Set(float64(u.used))
			diskFreeBytes.WithLabelValues(p).Set(float64(u.free))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
