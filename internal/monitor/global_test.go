package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/state"
)

func buildAggregate(t *testing.T) *state.Aggregated {
	t.Helper()

	agg := state.New("4242", 10)

	a := agg.AddNode("gpu01")
	require.True(t, a.Apply(&frame.Frame{
		Seq: 1,
		CPUs: []frame.CPUCore{
			{Index: 0, UsagePercent: 40},
			{Index: 1, UsagePercent: 60},
		},
		Memory: frame.MemoryLoad{UsedBytes: 8 << 30, TotalBytes: 16 << 30},
		GPUs: []frame.GPURecord{
			{Index: 0, Name: "A100", UsagePercent: 90},
		},
		Processes: []frame.ProcessRecord{
			{PID: 100, Name: "python", CPUPercent: 200, MemoryBytes: 4 << 30},
			{PID: 101, Name: "dataloader", CPUPercent: 50, MemoryBytes: 1 << 30},
		},
	}))

	b := agg.AddNode("gpu02")
	require.True(t, b.Apply(&frame.Frame{
		Seq: 1,
		CPUs: []frame.CPUCore{
			{Index: 0, UsagePercent: 100},
			{Index: 1, UsagePercent: 100},
		},
		Memory: frame.MemoryLoad{UsedBytes: 4 << 30, TotalBytes: 16 << 30},
		GPUs: []frame.GPURecord{
			{Index: 0, Name: "A100", UsagePercent: 70},
		},
		Processes: []frame.ProcessRecord{
			{PID: 200, Name: "trainer", CPUPercent: 400, MemoryBytes: 8 << 30},
		},
	}))

	// Third node never reported.
	agg.AddNode("gpu03")

	return agg
}

func TestSummarize(t *testing.T) {
	agg := buildAggregate(t)

	s := Summarize(agg.Snapshot(), 10)

	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 2, s.Reporting)
	assert.Equal(t, 2, s.Live)

	// gpu01 mean 50, gpu02 mean 100
	assert.InDelta(t, 75.0, s.MeanCPU, 0.001)

	assert.Equal(t, uint64(12<<30), s.MemoryUsed)
	assert.Equal(t, uint64(32<<30), s.MemoryTotal)
	assert.InDelta(t, 37.5, s.MemoryPercent(), 0.001)

	assert.Equal(t, 2, s.GPUs)
	assert.InDelta(t, 80.0, s.MeanGPU, 0.001)
}

func TestSummarizeMergesTopProcesses(t *testing.T) {
	agg := buildAggregate(t)

	s := Summarize(agg.Snapshot(), 2)

	require.Len(t, s.TopProcesses, 2)
	assert.Equal(t, "gpu02", s.TopProcesses[0].Node)
	assert.Equal(t, 200, s.TopProcesses[0].PID)
	assert.Equal(t, "gpu01", s.TopProcesses[1].Node)
	assert.Equal(t, 100, s.TopProcesses[1].PID)
}

func TestSummarizeExcludesDisconnectedNodes(t *testing.T) {
	agg := state.New("4242", 10)

	a := agg.AddNode("gpu01")
	require.True(t, a.Apply(&frame.Frame{
		Seq:    1,
		CPUs:   []frame.CPUCore{{Index: 0, UsagePercent: 10}},
		Memory: frame.MemoryLoad{UsedBytes: 1 << 30, TotalBytes: 16 << 30},
	}))

	// gpu02 reported once, then its stream ended. Its last frame stays
	// visible in the per-node view but must not skew the cluster sums.
	b := agg.AddNode("gpu02")
	require.True(t, b.Apply(&frame.Frame{
		Seq:    1,
		CPUs:   []frame.CPUCore{{Index: 0, UsagePercent: 90}},
		Memory: frame.MemoryLoad{UsedBytes: 3 << 30, TotalBytes: 16 << 30},
		GPUs:   []frame.GPURecord{{Index: 0, Name: "A100", UsagePercent: 80}},
		Processes: []frame.ProcessRecord{
			{PID: 300, Name: "zombie", CPUPercent: 500, MemoryBytes: 2 << 30},
		},
	}))
	b.MarkDisconnected()

	s := Summarize(agg.Snapshot(), 10)

	assert.Equal(t, 2, s.Nodes)
	assert.Equal(t, 1, s.Reporting)
	assert.InDelta(t, 10.0, s.MeanCPU, 0.001)
	assert.Equal(t, uint64(1<<30), s.MemoryUsed)
	assert.Equal(t, uint64(16<<30), s.MemoryTotal)
	assert.Zero(t, s.GPUs)
	assert.Empty(t, s.TopProcesses)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 10)

	assert.Zero(t, s.Nodes)
	assert.Zero(t, s.MeanCPU)
	assert.Zero(t, s.MemoryPercent())
	assert.Empty(t, s.TopProcesses)
}
