package api

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessMetrics снимает показатели процесса и машины для /api/stats
type ProcessMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// ProcessSnapshot показатели на момент запроса
type ProcessSnapshot struct {
	Uptime       string  `json:"uptime"`
	UptimeSec    int64   `json:"uptime_seconds"`
	HeapMB       float64 `json:"heap_mb"`
	SysMB        float64 `json:"sys_mb"`
	NumGC        uint32  `json:"num_gc"`
	Goroutines   int     `json:"goroutines"`
	CPUPercent   float64 `json:"cpu_percent"`
	RSSMB        float64 `json:"rss_mb"`
	HostUsedPct  float64 `json:"host_mem_used_percent"`
	LogicalCPUs  int     `json:"logical_cpus"`
	ServerTimeMs int64   `json:"server_time_ms"`
}

// NewProcessMetrics создает сборщик для текущего процесса
func NewProcessMetrics() *ProcessMetrics {
	pm := &ProcessMetrics{StartTime: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		pm.proc = p
	}
	return pm
}

// Snapshot собирает показатели. Ошибки gopsutil оставляют поля нулевыми.
func (pm *ProcessMetrics) Snapshot() ProcessSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(pm.StartTime).Truncate(time.Second)
	s := ProcessSnapshot{
		Uptime:       uptime.String(),
		UptimeSec:    int64(uptime.Seconds()),
		HeapMB:       float64(m.HeapAlloc) / 1024 / 1024,
		SysMB:        float64(m.Sys) / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		ServerTimeMs: time.Now().UnixMilli(),
	}

	if pm.proc != nil {
		if pct, err := pm.proc.CPUPercent(); err == nil {
			s.CPUPercent = pct
		}
		if info, err := pm.proc.MemoryInfo(); err == nil {
			s.RSSMB = float64(info.RSS) / 1024 / 1024
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.HostUsedPct = vm.UsedPercent
	}
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCPUs = n
	}
	return s
}
