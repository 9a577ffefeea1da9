package observability

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSnapshot is a point-in-time view of this process's resource use,
// reported alongside long-running batch progress.
type ResourceSnapshot struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Snapshot samples the current process. Failures degrade to a zero snapshot;
// resource reporting is best-effort.
func Snapshot() ResourceSnapshot {
	var snap ResourceSnapshot
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return snap
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	return snap
}
