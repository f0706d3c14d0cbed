package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	// MinFreeDiskBytes is the free space a render working directory needs.
	MinFreeDiskBytes uint64 = 2 << 30
	// MinAvailableMemoryBytes is the memory an ffmpeg render needs.
	MinAvailableMemoryBytes uint64 = 1 << 30
)

var (
	diskUsage = disk.UsageWithContext
	memStats  = mem.VirtualMemoryWithContext
)

// CheckDiskSpace reports whether the filesystem holding path has at least need
// bytes free. A path that does not exist yet is measured at its nearest
// existing parent.
func CheckDiskSpace(ctx context.Context, name, path string, need uint64) Result {
	target := nearestExisting(path)
	usage, err := diskUsage(ctx, target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", target, err)}
	}
	detail := fmt.Sprintf("%s free of %s", humanize.IBytes(usage.Free), humanize.IBytes(usage.Total))
	if usage.Free < need {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckMemory reports whether at least need bytes of memory are available.
// Low memory is a warning because ffmpeg may still succeed.
func CheckMemory(ctx context.Context, need uint64) Result {
	const name = "Memory"
	stats, err := memStats(ctx)
	if err != nil {
		return Result{Name: name, Warning: true, Detail: fmt.Sprintf("unavailable (%v)", err)}
	}
	detail := fmt.Sprintf("%s available of %s", humanize.IBytes(stats.Available), humanize.IBytes(stats.Total))
	if stats.Available < need {
		return Result{Name: name, Warning: true, Detail: fmt.Sprintf("%s (recommend %s)", detail, humanize.IBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

func nearestExisting(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
