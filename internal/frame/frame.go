// Package frame defines the per-node measurement record and its wire codec.
//
// A Frame is one timestamped snapshot of a node's resource counters. Frames
// travel from collector to monitor as newline-delimited JSON: one object per
// line, self-delimited, with unknown fields ignored on decode so collectors
// and monitors can be versioned independently across nodes.
package frame

import "sort"

// Frame is one timestamped measurement from one node. It is immutable once
// constructed; the ingestor replaces a node's latest frame wholesale and
// never mutates it in place.
type Frame struct {
	// Seq is assigned by the collector and strictly increases per node.
	Seq       uint64 `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Hostname  string `json:"hostname,omitempty"`

	CPUs      []CPUCore       `json:"cpus"`
	Memory    MemoryLoad      `json:"memory"`
	GPUs      []GPURecord     `json:"gpus,omitempty"`
	Processes []ProcessRecord `json:"processes,omitempty"`
}

// CPUCore holds the utilization of a single core.
type CPUCore struct {
	Index        int     `json:"index"`
	UsagePercent float64 `json:"usage_percent"`
}

// MemoryLoad holds memory usage in bytes.
type MemoryLoad struct {
	UsedBytes  uint64 `json:"used_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
}

// GPURecord holds the utilization of a single GPU device.
type GPURecord struct {
	Index        int        `json:"index"`
	Name         string     `json:"name,omitempty"`
	UsagePercent float64    `json:"usage_percent"`
	Memory       MemoryLoad `json:"memory"`
}

// ProcessRecord holds the resource share of a single process.
type ProcessRecord struct {
	PID         int     `json:"pid"`
	Name        string  `json:"name,omitempty"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// AverageCPU returns the mean utilization across all cores, 0 for an empty
// core list.
func (f *Frame) AverageCPU() float64 {
	if len(f.CPUs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range f.CPUs {
		sum += c.UsagePercent
	}
	return sum / float64(len(f.CPUs))
}

// UsagePercent returns memory usage as a percentage, 0 when the total is
// unknown.
func (m MemoryLoad) UsagePercent() float64 {
	if m.TotalBytes == 0 {
		return 0
	}
	return float64(m.UsedBytes) / float64(m.TotalBytes) * 100
}

// SortProcesses orders records descending by CPU share, then by memory.
// Collectors call this before emitting so the wire order matches the
// display order.
func SortProcesses(procs []ProcessRecord) {
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].CPUPercent != procs[j].CPUPercent {
			return procs[i].CPUPercent > procs[j].CPUPercent
		}
		return procs[i].MemoryBytes > procs[j].MemoryBytes
	})
}

// TopProcesses returns the first k records of an already-sorted process list.
func (f *Frame) TopProcesses(k int) []ProcessRecord {
	if k <= 0 || len(f.Processes) == 0 {
		return nil
	}
	if k > len(f.Processes) {
		k = len(f.Processes)
	}
	return f.Processes[:k]
}

// ClampPercent bounds a utilization value to [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
