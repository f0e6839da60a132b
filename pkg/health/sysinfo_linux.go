//go:build linux

package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SystemMemoryCheck reports host memory pressure. Decoding a report near the
// upload cap holds several copies of it in memory, so the server degrades
// rather than fails when the host is above MaxUsagePercent.
type SystemMemoryCheck struct {
	MaxUsagePercent float64
}

func (c *SystemMemoryCheck) Name() string { return "system_memory" }

func (c *SystemMemoryCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("sysinfo: %v", err)
		return result
	}

	unit := uint64(info.Unit)
	total := uint64(info.Totalram) * unit
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if total == 0 {
		result.Status = StatusDegraded
		result.Message = "total memory not reported"
		return result
	}
	used := total - min(available, total)
	usage := float64(used) / float64(total) * 100

	result.Metadata["total_bytes"] = total
	result.Metadata["available_bytes"] = available
	result.Metadata["usage_percent"] = fmt.Sprintf("%.2f", usage)

	if c.MaxUsagePercent > 0 && usage > c.MaxUsagePercent {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("memory usage %.2f%% above %.2f%%", usage, c.MaxUsagePercent)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("memory usage %.2f%%", usage)
	return result
}
