package monitor

import (
	"sort"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/state"
)

// GlobalSummary aggregates the latest frame of every reporting node
// into one cluster-wide view. Nodes with no frame yet contribute
// nothing; a stale node still contributes its last known frame, a
// disconnected node does not (its last frame stays visible in the
// per-node view only).
type GlobalSummary struct {
	Nodes        int
	Reporting    int
	Live         int
	MeanCPU      float64
	MemoryUsed   uint64
	MemoryTotal  uint64
	GPUs         int
	MeanGPU      float64
	TopProcesses []NodeProcess
}

// NodeProcess is a process annotated with the node it runs on, for the
// merged cluster-wide top list.
type NodeProcess struct {
	Node string
	frame.ProcessRecord
}

// Summarize folds node snapshots into a GlobalSummary. Top processes
// from every node are merged and re-ranked by CPU, keeping topK.
func Summarize(snaps []state.NodeSnapshot, topK int) GlobalSummary {
	s := GlobalSummary{Nodes: len(snaps)}

	var cpuSum, gpuSum float64
	var merged []NodeProcess

	for _, snap := range snaps {
		if snap.Status == state.StatusLive {
			s.Live++
		}
		if snap.Latest == nil || snap.Status == state.StatusDisconnected {
			continue
		}
		s.Reporting++

		cpuSum += snap.Latest.AverageCPU()
		s.MemoryUsed += snap.Latest.Memory.UsedBytes
		s.MemoryTotal += snap.Latest.Memory.TotalBytes

		for _, gpu := range snap.Latest.GPUs {
			gpuSum += gpu.UsagePercent
			s.GPUs++
		}

		for _, p := range snap.Latest.Processes {
			merged = append(merged, NodeProcess{Node: snap.ID, ProcessRecord: p})
		}
	}

	if s.Reporting > 0 {
		s.MeanCPU = cpuSum / float64(s.Reporting)
	}
	if s.GPUs > 0 {
		s.MeanGPU = gpuSum / float64(s.GPUs)
	}

	// Each node sends its own top list sorted; the cluster-wide order
	// interleaves them, so re-rank before trimming.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CPUPercent != merged[j].CPUPercent {
			return merged[i].CPUPercent > merged[j].CPUPercent
		}
		return merged[i].MemoryBytes > merged[j].MemoryBytes
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	s.TopProcesses = merged

	return s
}

// MemoryPercent returns the cluster-wide memory usage percentage.
func (s GlobalSummary) MemoryPercent() float64 {
	if s.MemoryTotal == 0 {
		return 0
	}
	return float64(s.MemoryUsed) / float64(s.MemoryTotal) * 100
}
