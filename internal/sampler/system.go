package sampler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/logger"
)

// MemTotalEnv overrides the reported memory total, in MB. Cluster launches
// set it so memory percentages reflect the job's allocation rather than the
// whole node.
const MemTotalEnv = "JOBSCOPE_MEM_TOTAL_MB"

// DefaultTopProcesses is how many processes a frame carries.
const DefaultTopProcesses = 15

// coreJiffies stores one core's jiffies for delta calculation.
type coreJiffies struct {
	total int64
	idle  int64
}

// systemSampler reads /proc for CPU and memory, ps for the process table,
// and NVML for GPUs.
type systemSampler struct {
	log      logger.Logger
	procRoot string
	topK     int

	hostname    string
	prevJiffies map[int]coreJiffies // per-core, for delta CPU usage
	memOverride uint64              // bytes, 0 when unset

	gpu *nvmlSource
}

// NewSystem creates a sampler for the local machine. GPU support is probed
// once at construction; when NVML is unavailable the GPUs field is simply
// omitted from every snapshot.
func NewSystem(log logger.Logger) Sampler {
	if log == nil {
		log = logger.Noop()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	s := &systemSampler{
		log:         log,
		procRoot:    "/proc",
		topK:        DefaultTopProcesses,
		hostname:    hostname,
		prevJiffies: make(map[int]coreJiffies),
		gpu:         newNVMLSource(log),
	}

	if mb := os.Getenv(MemTotalEnv); mb != "" {
		if v, err := strconv.ParseUint(mb, 10, 64); err == nil && v > 0 {
			s.memOverride = v * 1024 * 1024
		} else {
			log.Warn("ignoring invalid %s=%q", MemTotalEnv, mb)
		}
	}

	return s
}

// Sample reads the counters once.
func (s *systemSampler) Sample(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Hostname: s.hostname}

	stat, err := os.ReadFile(s.procRoot + "/stat")
	if err != nil {
		return nil, fmt.Errorf("reading cpu counters: %w", err)
	}
	snap.CPUs = s.parseCPUsWithDelta(string(stat))

	meminfo, err := os.ReadFile(s.procRoot + "/meminfo")
	if err != nil {
		return nil, fmt.Errorf("reading memory counters: %w", err)
	}
	mem, err := parseMeminfo(string(meminfo))
	if err != nil {
		return nil, err
	}
	if s.memOverride > 0 && s.memOverride < mem.TotalBytes {
		mem.TotalBytes = s.memOverride
		if mem.UsedBytes > mem.TotalBytes {
			mem.UsedBytes = mem.TotalBytes
		}
	}
	snap.Memory = mem

	// Processes and GPUs are capabilities: failures drop the field, never
	// the frame.
	procs, err := s.readProcesses(ctx)
	if err != nil {
		s.log.Debug("process table unavailable: %v", err)
	} else {
		snap.Processes = procs
	}

	snap.GPUs = s.gpu.read()

	return snap, nil
}

// Close shuts down NVML if it was initialized.
func (s *systemSampler) Close() {
	s.gpu.close()
}

// parseCPUsWithDelta parses per-core lines from /proc/stat and computes
// utilization from the delta against the previous read. The first read of
// each core reports 0 and primes the counters.
func (s *systemSampler) parseCPUsWithDelta(procStat string) []frame.CPUCore {
	var cores []frame.CPUCore

	scanner := bufio.NewScanner(strings.NewReader(procStat))
	for scanner.Scan() {
		line := scanner.Text()

		// Per-core lines look like "cpu3 1234 0 567 ...". The aggregate
		// "cpu " line is skipped; the view sums cores itself.
		if !strings.HasPrefix(line, "cpu") || len(line) <= 3 || line[3] < '0' || line[3] > '9' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		index, err := strconv.Atoi(strings.TrimPrefix(fields[0], "cpu"))
		if err != nil {
			continue
		}

		var total, idle int64
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				total = 0
				break
			}
			total += val
			// idle is field 4, iowait is field 5
			if i == 4 || i == 5 {
				idle += val
			}
		}
		if total == 0 {
			continue
		}

		prev, hasPrev := s.prevJiffies[index]
		s.prevJiffies[index] = coreJiffies{total: total, idle: idle}

		var percent float64
		if hasPrev && total > prev.total {
			totalDelta := total - prev.total
			idleDelta := idle - prev.idle
			percent = float64(totalDelta-idleDelta) / float64(totalDelta) * 100
		}

		cores = append(cores, frame.CPUCore{
			Index:        index,
			UsagePercent: frame.ClampPercent(percent),
		})
	}

	return cores
}

// parseMeminfo parses /proc/meminfo into a memory load.
// Used = MemTotal - MemFree - Buffers - Cached.
func parseMeminfo(procMeminfo string) (frame.MemoryLoad, error) {
	var memTotal, memFree, buffers, cached int64
	foundFields := 0

	scanner := bufio.NewScanner(strings.NewReader(procMeminfo))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		key := strings.TrimSuffix(parts[0], ":")
		val, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}

		valBytes := val * 1024

		switch key {
		case "MemTotal":
			memTotal = valBytes
			foundFields++
		case "MemFree":
			memFree = valBytes
			foundFields++
		case "Buffers":
			buffers = valBytes
			foundFields++
		case "Cached":
			cached = valBytes
			foundFields++
		}
	}

	if foundFields < 2 {
		return frame.MemoryLoad{}, fmt.Errorf("insufficient fields in /proc/meminfo")
	}

	used := memTotal - memFree - buffers - cached
	if used < 0 {
		used = 0
	}

	return frame.MemoryLoad{
		UsedBytes:  uint64(used),
		TotalBytes: uint64(memTotal),
	}, nil
}

// readProcesses shells out to ps for the process table, sorted by CPU.
func (s *systemSampler) readProcesses(ctx context.Context) ([]frame.ProcessRecord, error) {
	// --sort is GNU ps; plain ps aux still parses, just unsorted, and
	// SortProcesses fixes the order either way.
	out, err := exec.CommandContext(ctx, "ps", "aux", "--sort=-%cpu").Output()
	if err != nil {
		out, err = exec.CommandContext(ctx, "ps", "aux").Output()
		if err != nil {
			return nil, err
		}
	}

	procs := parseProcesses(string(out))
	frame.SortProcesses(procs)
	if len(procs) > s.topK {
		procs = procs[:s.topK]
	}
	return procs, nil
}

// parseProcesses parses ps aux output into process records.
// ps aux columns: USER PID %CPU %MEM VSZ RSS TTY STAT START TIME COMMAND
func parseProcesses(output string) []frame.ProcessRecord {
	var procs []frame.ProcessRecord
	scanner := bufio.NewScanner(strings.NewReader(output))

	// Skip header line (USER PID %CPU %MEM ...)
	scanner.Scan()

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 11 {
			continue
		}

		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}

		cpu, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			cpu = 0
		}

		// RSS is reported in KB
		rss, err := strconv.ParseInt(fields[5], 10, 64)
		if err != nil || rss < 0 {
			rss = 0
		}

		name := strings.Join(fields[10:], " ")
		if len(name) > 50 {
			name = name[:47] + "..."
		}

		procs = append(procs, frame.ProcessRecord{
			PID:         pid,
			Name:        name,
			CPUPercent:  cpu,
			MemoryBytes: uint64(rss) * 1024,
		})
	}

	return procs
}
