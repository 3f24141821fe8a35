// Package diskcheck verifies that a data directory's filesystem has
// enough free space before the storage engine starts writing to it, and
// logs usage the way the storage layer logs everything else.
package diskcheck

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// Stats is the free-space snapshot for one data directory.
type Stats struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// Check reads usage for path and fails if free space is below
// minimumFreeGB. It logs the snapshot either way through log, mirroring
// the storage layer's structured logging.
func Check(log *logrus.Logger, path string, minimumFreeGB int) (Stats, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return Stats{}, fmt.Errorf("diskcheck: statting %s: %w", path, err)
	}

	stats := Stats{
		Path:       path,
		TotalBytes: usage.Total,
		FreeBytes:  usage.Free,
		UsedBytes:  usage.Used,
	}

	freeGB := float64(stats.FreeBytes) / 1e9
	log.WithFields(logrus.Fields{
		"path":        path,
		"total_gb":    fmt.Sprintf("%.2f", float64(stats.TotalBytes)/1e9),
		"used_gb":     fmt.Sprintf("%.2f", float64(stats.UsedBytes)/1e9),
		"free_gb":     fmt.Sprintf("%.2f", freeGB),
		"minimum_gb":  minimumFreeGB,
		"used_percent": fmt.Sprintf("%.1f", usage.UsedPercent),
	}).Info("disk usage")

	if freeGB < float64(minimumFreeGB) {
		return stats, fmt.Errorf("diskcheck: %s has %.2fGB free, below the configured minimum of %dGB", path, freeGB, minimumFreeGB)
	}
	return stats, nil
}
