// Package hoststat samples host CPU and memory load while streams are generated.
package hoststat

import (
	"context"
	"time"

	"github.com/and161185/streamcheck/internal/metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// OverloadPercent is the CPU or memory utilisation that triggers a host_overloaded warning.
const OverloadPercent = 90.0

// Load is one host sample.
type Load struct {
	CPUPercent float64
	MemPercent float64
}

// Sampler reads the current host load.
type Sampler func(ctx context.Context) (Load, error)

// Probe periodically samples host load into gauges.
type Probe struct {
	sample  Sampler
	metrics *metrics.Generator
	logger  *zap.SugaredLogger
}

// NewProbe returns a probe reading from gopsutil. m may be nil.
func NewProbe(m *metrics.Generator, logger *zap.SugaredLogger) *Probe {
	return NewProbeWithSampler(GopsutilSampler, m, logger)
}

// NewProbeWithSampler returns a probe reading from s.
func NewProbeWithSampler(s Sampler, m *metrics.Generator, logger *zap.SugaredLogger) *Probe {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Probe{sample: s, metrics: m, logger: logger}
}

// GopsutilSampler reads overall CPU utilisation since the previous call and virtual memory usage.
func GopsutilSampler(ctx context.Context) (Load, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Load{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Load{}, err
	}
	l := Load{MemPercent: vm.UsedPercent}
	if len(pcts) > 0 {
		l.CPUPercent = pcts[0]
	}
	return l, nil
}

// Run samples every interval until ctx is done. A non-positive interval disables the probe.
func (p *Probe) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Collect(ctx)
		}
	}
}

// Collect takes one sample and publishes it.
func (p *Probe) Collect(ctx context.Context) {
	l, err := p.sample(ctx)
	if err != nil {
		p.logger.Warnw("host_load_unavailable", "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.HostCPUPercent.Set(l.CPUPercent)
		p.metrics.HostMemPercent.Set(l.MemPercent)
	}
	if l.CPUPercent >= OverloadPercent || l.MemPercent >= OverloadPercent {
		p.logger.Warnw("host_overloaded", "cpu_percent", l.CPUPercent, "mem_percent", l.MemPercent)
	}
}
