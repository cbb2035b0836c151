package server

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics is the resource snapshot reported by /health
type SystemMetrics struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	MemoryUsedGB  float64 `json:"memory_used_gb,omitempty"`
	MemoryTotalGB float64 `json:"memory_total_gb,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}

// getSystemMetrics samples the process and host. Host memory is left zero
// where the platform does not expose it.
func getSystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := SystemMetrics{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
	}
	if v, err := mem.VirtualMemory(); err == nil && v.Total > 0 {
		m.MemoryTotalGB = float64(v.Total) / 1024 / 1024 / 1024
		m.MemoryUsedGB = float64(v.Total-v.Available) / 1024 / 1024 / 1024
		m.MemoryPercent = m.MemoryUsedGB / m.MemoryTotalGB * 100
	}
	return m
}
