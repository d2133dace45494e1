package sampler

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/jobscope/jobscope/internal/frame"
)

// DemoConfig shapes the synthetic node a demo sampler pretends to be.
type DemoConfig struct {
	Hostname string
	Cores    int
	GPUs     int
}

// demoSampler synthesizes plausible utilization waveforms so the TUI and
// export paths can be exercised without a cluster or a GPU.
type demoSampler struct {
	cfg   DemoConfig
	rng   *rand.Rand
	ticks int
}

// NewDemo creates a sampler that fabricates data for one synthetic node.
func NewDemo(cfg DemoConfig) Sampler {
	if cfg.Hostname == "" {
		cfg.Hostname = "demo-00"
	}
	if cfg.Cores <= 0 {
		cfg.Cores = 4
	}
	return &demoSampler{
		cfg: cfg,
		// Seeded from the hostname so multi-node demos don't move in
		// lockstep.
		rng: rand.New(rand.NewSource(hostSeed(cfg.Hostname))),
	}
}

func hostSeed(hostname string) int64 {
	var seed int64
	for _, b := range []byte(hostname) {
		seed = seed*31 + int64(b)
	}
	return seed*7919 + 1
}

func (d *demoSampler) Sample(_ context.Context) (*Snapshot, error) {
	d.ticks++

	snap := &Snapshot{Hostname: d.cfg.Hostname}

	// Each core rides its own sine wave plus jitter.
	for i := 0; i < d.cfg.Cores; i++ {
		base := 50 + 40*math.Sin(float64(d.ticks)/10+float64(i))
		usage := base + d.rng.Float64()*10 - 5
		snap.CPUs = append(snap.CPUs, frame.CPUCore{
			Index:        i,
			UsagePercent: frame.ClampPercent(usage),
		})
	}

	const totalMem = 256 << 30
	used := uint64(float64(totalMem) * (0.3 + 0.2*math.Sin(float64(d.ticks)/20)))
	snap.Memory = frame.MemoryLoad{UsedBytes: used, TotalBytes: totalMem}

	for i := 0; i < d.cfg.GPUs; i++ {
		const totalVRAM = 32 << 30
		snap.GPUs = append(snap.GPUs, frame.GPURecord{
			Index:        i,
			Name:         "Tesla V100-SXM2-32GB",
			UsagePercent: frame.ClampPercent(d.rng.Float64() * 100),
			Memory: frame.MemoryLoad{
				UsedBytes:  uint64(d.rng.Float64() * totalVRAM),
				TotalBytes: totalVRAM,
			},
		})
	}

	n := 5 + d.rng.Intn(10)
	for i := 0; i < n; i++ {
		snap.Processes = append(snap.Processes, frame.ProcessRecord{
			PID:         1000 + d.rng.Intn(99000),
			Name:        fmt.Sprintf("python_proc_%d", i),
			CPUPercent:  d.rng.Float64() * 400, // multicore processes exceed 100
			MemoryBytes: uint64(100+d.rng.Intn(10000)) << 20,
		})
	}
	frame.SortProcesses(snap.Processes)

	return snap, nil
}

func (d *demoSampler) Close() {}
