package sysmon

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/culog"
)

func newTestMonitor(cpuThreshold, ramThreshold int, cpuPct, ramPct float64) *Monitor {
	log := culog.NewLogger()
	m := &Monitor{
		cpu: func(context.Context, time.Duration, bool) ([]float64, error) {
			return []float64{cpuPct}, nil
		},
		ram: func() (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{UsedPercent: ramPct}, nil
		},
		interval:     time.Millisecond,
		cpuThreshold: cpuThreshold,
		ramThreshold: ramThreshold,
		log:          log,
	}
	return m
}

func TestUpdatePopulatesStatus(t *testing.T) {
	m := newTestMonitor(80, 80, 42, 17)
	t.Cleanup(m.log.Close)

	require.NoError(t, m.update(context.Background()))
	require.Equal(t, Status{CPUPercent: 42, RAMPercent: 17}, m.Status())
}

func TestShouldDegradeWhenCPUOverThreshold(t *testing.T) {
	m := newTestMonitor(80, 90, 95, 10)
	t.Cleanup(m.log.Close)
	require.NoError(t, m.update(context.Background()))
	require.True(t, m.ShouldDegrade())
}

func TestShouldDegradeWhenRAMOverThreshold(t *testing.T) {
	m := newTestMonitor(80, 90, 10, 95)
	t.Cleanup(m.log.Close)
	require.NoError(t, m.update(context.Background()))
	require.True(t, m.ShouldDegrade())
}

func TestShouldNotDegradeUnderThresholds(t *testing.T) {
	m := newTestMonitor(80, 90, 10, 10)
	t.Cleanup(m.log.Close)
	require.NoError(t, m.update(context.Background()))
	require.False(t, m.ShouldDegrade())
}
