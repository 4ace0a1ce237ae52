package resourcemon

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// GPUSampler is an optional, pluggable GPU reader. The default Monitor
// has none configured (GPUPercent/GPUMemoryPercent stay nil), mirroring
// original_source's best-effort "if GPUtil available" check.
type GPUSampler func(ctx context.Context) (percent, memoryPercent float64, ok bool)

// Sample collects one Snapshot of CPU, memory, disk and (if configured)
// GPU usage (spec.md §4.G).
func (m *Monitor) Sample(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now(), GoroutineCount: runtime.NumGoroutine()}

	cpuPercents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return snap, fmt.Errorf("sampling cpu: %w", err)
	}
	if len(cpuPercents) > 0 {
		snap.CPUPercent = cpuPercents[0]
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("sampling memory: %w", err)
	}
	snap.MemoryPercent = vmem.UsedPercent
	snap.MemoryAvailable = vmem.Available
	snap.MemoryUsed = vmem.Used

	du, err := disk.UsageWithContext(ctx, m.diskPath)
	if err != nil {
		return snap, fmt.Errorf("sampling disk %s: %w", m.diskPath, err)
	}
	snap.DiskPercent = du.UsedPercent
	snap.DiskFree = du.Free

	if m.gpu != nil {
		if percent, memPercent, ok := m.gpu(ctx); ok {
			snap.GPUPercent = &percent
			snap.GPUMemoryPercent = &memPercent
		}
	}

	return snap, nil
}
