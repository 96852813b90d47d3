package stats

import (
	"runtime"
	"testing"

	"github.com/c9s/goprocinfo/linux"
	"github.com/stretchr/testify/assert"
)

func TestCpuUsage(t *testing.T) {
	t.Parallel()

	assert.Zero(t, cpuUsage(&linux.CPUStat{}))
	assert.InDelta(t, 0.75, cpuUsage(&linux.CPUStat{User: 50, System: 25, Idle: 20, IOWait: 5}), 1e-9)
}

func TestMemUsedKb(t *testing.T) {
	t.Parallel()

	s := Stats{MemTotalKb: 100, MemAvailableKb: 40}
	assert.Equal(t, uint64(60), s.MemUsedKb())

	s = Stats{MemTotalKb: 10, MemAvailableKb: 40}
	assert.Zero(t, s.MemUsedKb())
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	s := GetStats(t.TempDir())
	if runtime.GOOS != "linux" {
		assert.Zero(t, s.MemTotalKb)
		return
	}
	assert.NotZero(t, s.MemTotalKb)
	assert.NotZero(t, s.DiskTotal)
}
