// Package system reports host-level resource figures for the health
// endpoint. Figures come straight from gopsutil; nothing here is owned
// state.
package system

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a point-in-time snapshot of host memory and CPU usage.
type Info struct {
	MemoryTotalGB     float64 `json:"memory_total_gb"`
	MemoryAvailableGB float64 `json:"memory_available_gb"`
	MemoryUsedPercent float64 `json:"memory_usage_percent"`
	CPUUsedPercent    float64 `json:"cpu_usage_percent"`
}

const bytesPerGB = 1 << 30

// Snapshot gathers current host figures. The CPU percentage is sampled
// without an interval so the call never blocks a health check.
func Snapshot(ctx context.Context) (Info, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("read memory stats: %w", err)
	}

	var cpuPercent float64
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	return Info{
		MemoryTotalGB:     round1(float64(vm.Total) / bytesPerGB),
		MemoryAvailableGB: round1(float64(vm.Available) / bytesPerGB),
		MemoryUsedPercent: round1(vm.UsedPercent),
		CPUUsedPercent:    round1(cpuPercent),
	}, nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
