package monitor

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/warden/errors"
)

// Sample is a point-in-time resource reading for a running process.
type Sample struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// SampleProcess reads cpu and memory usage for a live pid.
func SampleProcess(pid int) (Sample, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Sample{}, errors.Wrapf(err, "failed to open process %d", pid)
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to read cpu usage")
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Sample{}, errors.Wrap(err, "failed to read memory usage")
	}
	return Sample{CPUPercent: cpu, RSSBytes: mem.RSS}, nil
}
