package stats

import (
	"github.com/c9s/goprocinfo/linux"
	"github.com/rs/zerolog/log"
)

// Host stats served next to the store ones, so operators can tell how much
// room the table has left. Unreadable sources leave their fields zeroed.
type Stats struct {
	MemTotalKb     uint64  `json:"mem_total_kb"`
	MemAvailableKb uint64  `json:"mem_available_kb"`
	DiskTotal      uint64  `json:"disk_total"`
	DiskFree       uint64  `json:"disk_free"`
	CpuUsage       float64 `json:"cpu_usage"`
	Load1          float64 `json:"load_1"`
	Load5          float64 `json:"load_5"`
	Load15         float64 `json:"load_15"`
}

func (s *Stats) MemUsedKb() uint64 {
	if s.MemAvailableKb > s.MemTotalKb {
		return 0
	}
	return s.MemTotalKb - s.MemAvailableKb
}

// Get the stats of the host, disk figures are for the filesystem holding dataDir
func GetStats(dataDir string) *Stats {
	s := &Stats{}
	if mem := getMemoryInfo(); mem != nil {
		s.MemTotalKb = mem.MemTotal
		s.MemAvailableKb = mem.MemAvailable
	}
	if disk := getDiskInfo(dataDir); disk != nil {
		s.DiskTotal = disk.All
		s.DiskFree = disk.Free
	}
	if cpu := getCpuStats(); cpu != nil {
		s.CpuUsage = cpuUsage(cpu)
	}
	if load := getLoadAvg(); load != nil {
		s.Load1 = load.Last1Min
		s.Load5 = load.Last5Min
		s.Load15 = load.Last15Min
	}
	return s
}

func cpuUsage(c *linux.CPUStat) float64 {
	idle := c.Idle + c.IOWait
	active := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	total := idle + active
	if total == 0 {
		return 0
	}
	return (float64(total) - float64(idle)) / float64(total)
}

func getMemoryInfo() *linux.MemInfo {
	memstats, err := linux.ReadMemInfo("/proc/meminfo")
	if err != nil {
		log.Debug().Err(err).Msg("error reading from /proc/meminfo")
		return nil
	}
	return memstats
}

func getDiskInfo(path string) *linux.Disk {
	diskstats, err := linux.ReadDisk(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("error reading disk usage")
		return nil
	}
	return diskstats
}

func getCpuStats() *linux.CPUStat {
	stats, err := linux.ReadStat("/proc/stat")
	if err != nil {
		log.Debug().Err(err).Msg("error reading from /proc/stat")
		return nil
	}
	return &stats.CPUStatAll
}

func getLoadAvg() *linux.LoadAvg {
	loadavg, err := linux.ReadLoadAvg("/proc/loadavg")
	if err != nil {
		log.Debug().Err(err).Msg("error reading from /proc/loadavg")
		return nil
	}
	return loadavg
}
