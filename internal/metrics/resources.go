package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "cpu_percent",
			Help:      "CPU usage of the program's process.",
		}, []string{"name"},
	)
	memoryRSS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size of the program's process.",
		}, []string{"name"},
	)
	numThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "threads",
			Help:      "Thread count of the program's process.",
		}, []string{"name"},
	)
)

// Resources is a point-in-time resource sample of one process.
type Resources struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSS        uint64  `json:"memory_rss"`
	VMS        uint64  `json:"memory_vms"`
	NumThreads int32   `json:"num_threads"`
	NumFDs     int32   `json:"num_fds,omitempty"`
}

// Sample reads CPU, memory and thread counts for pid. CPU and thread
// failures are tolerated; a memory failure usually means the process is
// gone and is returned.
func Sample(pid int) (Resources, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return Resources{}, fmt.Errorf("open process %d: %w", pid, err)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return Resources{}, fmt.Errorf("memory info %d: %w", pid, err)
	}
	r := Resources{PID: pid, RSS: mem.RSS, VMS: mem.VMS}
	if cpu, err := proc.CPUPercent(); err == nil {
		r.CPUPercent = cpu
	}
	if n, err := proc.NumThreads(); err == nil {
		r.NumThreads = n
	}
	if n, err := proc.NumFDs(); err == nil {
		r.NumFDs = n
	}
	return r, nil
}

// SetResources publishes r for name.
func SetResources(name string, r Resources) {
	if regOK.Load() {
		cpuPercent.WithLabelValues(name).Set(r.CPUPercent)
		memoryRSS.WithLabelValues(name).Set(float64(r.RSS))
		numThreads.WithLabelValues(name).Set(float64(r.NumThreads))
	}
}

// ClearResources removes the resource series for name once it stops running.
func ClearResources(name string) {
	if regOK.Load() {
		cpuPercent.DeleteLabelValues(name)
		memoryRSS.DeleteLabelValues(name)
		numThreads.DeleteLabelValues(name)
	}
}
