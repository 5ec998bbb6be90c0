package metrics

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// SystemProbe samples resource usage of the current process. It never
// returns an error to callers: a failed platform call falls back to the last
// known CPU value and zeroes for the rest of that sample.
type SystemProbe struct {
	mu      sync.Mutex
	proc    *process.Process
	lastCPU float64
	logger  *slog.Logger
	now     func() time.Time
}

// NewSystemProbe builds a probe for the current process. A nil logger
// disables logging.
func NewSystemProbe(logger *slog.Logger) *SystemProbe {
	if logger != nil {
		logger = logger.With("component", "system_probe")
	}
	p := &SystemProbe{logger: logger, now: time.Now}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		if logger != nil {
			logger.Warn("process handle unavailable, system metrics degraded", "error", err)
		}
		return p
	}
	p.proc = proc
	return p
}

// Sample reads current resource usage. Safe for concurrent use.
func (p *SystemProbe) Sample() SystemMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := SystemMetrics{
		Timestamp:  float64(p.now().UnixNano()) / 1e9,
		CPUPercent: p.lastCPU,
	}
	if p.proc == nil {
		return m
	}

	if cpu, err := p.proc.Percent(0); err == nil {
		m.CPUPercent = cpu
		p.lastCPU = cpu
	} else if p.logger != nil {
		p.logger.Debug("cpu sample failed, using last known value", "error", err)
	}
	if mem, err := p.proc.MemoryInfo(); err == nil && mem != nil {
		m.MemoryMB = int64(mem.RSS / (1024 * 1024))
	}
	if pct, err := p.proc.MemoryPercent(); err == nil {
		m.MemoryPercent = float64(pct)
	}
	if threads, err := p.proc.NumThreads(); err == nil {
		m.ThreadCount = int(threads)
	}
	m.ProcessCount = 1
	if children, err := p.proc.Children(); err == nil {
		m.ProcessCount += len(children)
	}
	return m
}
