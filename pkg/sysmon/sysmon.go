// Package sysmon samples CPU/memory pressure and reports whether it has
// reached configured thresholds (ShouldDegrade). cmd/compositor runs
// its sampling loop; no pipeline component reads ShouldDegrade, and the
// Input Queue's ahead_of_time_processing policy is fixed when the queue
// is built. Grounded on the
// teacher's pkg/system.System: the same injectable cpu/ram func
// fields, periodic update loop, mutex-guarded snapshot.
package sysmon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bialy-nvr/compositor/pkg/culog"
)

type (
	cpuFunc func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc func() (*mem.VirtualMemoryStat, error)
)

// Status is the most recently sampled system pressure.
type Status struct {
	CPUPercent int
	RAMPercent int
}

// Monitor samples CPU/RAM usage on an interval and exposes the
// latest Status plus a degradation verdict.
type Monitor struct {
	cpu      cpuFunc
	ram      ramFunc
	interval time.Duration

	cpuThreshold int
	ramThreshold int

	log *culog.Logger

	mu     sync.Mutex
	status Status
	once   sync.Once
}

// New returns a Monitor sampling every interval, flagging degradation
// once either threshold (percent, 0-100) is reached.
func New(interval time.Duration, cpuThreshold, ramThreshold int, log *culog.Logger) *Monitor {
	return &Monitor{
		cpu:          cpu.PercentWithContext,
		ram:          mem.VirtualMemory,
		interval:     interval,
		cpuThreshold: cpuThreshold,
		ramThreshold: ramThreshold,
		log:          log,
	}
}

func (m *Monitor) update(ctx context.Context) error {
	cpuUsage, err := m.cpu(ctx, m.interval, false)
	if err != nil {
		return fmt.Errorf("could not sample cpu usage: %w", err)
	}
	if len(cpuUsage) == 0 {
		return fmt.Errorf("cpu sample returned no values")
	}
	ramUsage, err := m.ram()
	if err != nil {
		return fmt.Errorf("could not sample ram usage: %w", err)
	}

	m.mu.Lock()
	m.status = Status{
		CPUPercent: int(cpuUsage[0]),
		RAMPercent: int(ramUsage.UsedPercent),
	}
	m.mu.Unlock()
	return nil
}

// Run samples on Monitor's interval until ctx is canceled. Intended to
// run in its own goroutine, matching the teacher's StatusLoop.
func (m *Monitor) Run(ctx context.Context) {
	m.once.Do(func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := m.update(ctx); err != nil {
				m.log.Error().Src("sysmon").Msgf("could not update system status: %v", err)
			}
		}
	})
}

// Status returns the most recently sampled pressure.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ShouldDegrade reports whether the latest sampled CPU or RAM usage
// has reached its threshold.
func (m *Monitor) ShouldDegrade() bool {
	s := m.Status()
	return s.CPUPercent >= m.cpuThreshold || s.RAMPercent >= m.ramThreshold
}
