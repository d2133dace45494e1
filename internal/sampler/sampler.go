// Package sampler reads one snapshot of local resource counters at a point
// in time. The system sampler reads /proc and NVML on the node it runs on;
// the demo sampler synthesizes plausible data for development without a
// cluster.
package sampler

import (
	"context"

	"github.com/jobscope/jobscope/internal/frame"
)

// Snapshot is the raw material for one frame: everything except the
// sequence number and timestamp, which the collector assigns.
type Snapshot struct {
	Hostname  string
	CPUs      []frame.CPUCore
	Memory    frame.MemoryLoad
	GPUs      []frame.GPURecord
	Processes []frame.ProcessRecord
}

// Sampler reads one snapshot of local resource counters.
//
// A sampler reports a missing capability (no GPU, no readable process
// table) by leaving the corresponding field empty, not by failing: one
// absent counter must not cost the whole frame.
type Sampler interface {
	// Sample reads the counters once. The first call may report zero CPU
	// utilization since usage is computed from deltas between reads.
	Sample(ctx context.Context) (*Snapshot, error)

	// Close releases any resources held by the sampler (NVML handles).
	Close()
}
