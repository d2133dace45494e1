package sampler

import (
	"github.com/mindprince/gonvml"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/logger"
)

// nvmlSource reads GPU utilization through NVML. Nodes without an NVIDIA
// driver simply report no devices: the GPU field is a capability, and its
// absence never fails a frame.
type nvmlSource struct {
	log       logger.Logger
	available bool
	count     int
}

// newNVMLSource probes NVML once. When initialization fails (no driver, no
// GPU) the source stays unavailable and read returns nil forever.
func newNVMLSource(log logger.Logger) *nvmlSource {
	src := &nvmlSource{log: log}

	if err := gonvml.Initialize(); err != nil {
		log.Debug("NVML unavailable, GPU metrics disabled: %v", err)
		return src
	}

	count, err := gonvml.DeviceCount()
	if err != nil || count == 0 {
		if err != nil {
			log.Warn("NVML DeviceCount failed: %v", err)
		}
		gonvml.Shutdown()
		return src
	}

	src.available = true
	src.count = int(count)
	log.Debug("NVML initialized with %d device(s)", count)
	return src
}

// read returns one record per device, nil when GPUs are unavailable.
// A single device failing to answer is skipped, not fatal.
func (g *nvmlSource) read() []frame.GPURecord {
	if !g.available {
		return nil
	}

	records := make([]frame.GPURecord, 0, g.count)
	for i := 0; i < g.count; i++ {
		dev, err := gonvml.DeviceHandleByIndex(uint(i))
		if err != nil {
			g.log.Debug("DeviceHandleByIndex(%d): %v", i, err)
			continue
		}

		rec := frame.GPURecord{Index: i}

		if name, err := dev.Name(); err == nil {
			rec.Name = name
		}
		if util, _, err := dev.UtilizationRates(); err == nil {
			rec.UsagePercent = frame.ClampPercent(float64(util))
		}
		if total, used, err := dev.MemoryInfo(); err == nil {
			rec.Memory = frame.MemoryLoad{UsedBytes: used, TotalBytes: total}
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil
	}
	return records
}

// close shuts NVML down if it was initialized.
func (g *nvmlSource) close() {
	if g.available {
		gonvml.Shutdown()
		g.available = false
	}
}
