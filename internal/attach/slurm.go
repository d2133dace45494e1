package attach

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/jobscope/jobscope/internal/errors"
)

// JobState is the coarse scheduler state the attach loop cares about.
type JobState int

const (
	// StatePending covers every state that may still become running.
	StatePending JobState = iota

	// StateRunning means the job has nodes and is executing.
	StateRunning

	// StateTerminal means the job finished, failed, or was cancelled.
	StateTerminal
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Querier answers questions about a scheduler job.
type Querier interface {
	// JobState returns the job's coarse state.
	JobState(ctx context.Context, jobID string) (JobState, error)

	// JobNodes returns the expanded hostnames allocated to the job.
	JobNodes(ctx context.Context, jobID string) ([]string, error)

	// JobMemoryMB returns the per-node memory budget in MB, or ok=false
	// when the scheduler doesn't report one.
	JobMemoryMB(ctx context.Context, jobID string) (int, bool)
}

// runner abstracts command execution so the querier is testable.
type runner interface {
	output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SlurmQuerier shells out to squeue and scontrol.
type SlurmQuerier struct {
	run runner
}

// NewSlurmQuerier returns a querier backed by the Slurm CLI tools.
func NewSlurmQuerier() *SlurmQuerier {
	return &SlurmQuerier{run: execRunner{}}
}

func (q *SlurmQuerier) JobState(ctx context.Context, jobID string) (JobState, error) {
	out, err := q.run.output(ctx, "squeue", "--job", jobID, "--noheader", "--format=%t")
	if err != nil {
		// squeue exits non-zero for unknown job ids, which means the job
		// already left the queue.
		if _, ok := err.(*exec.ExitError); ok {
			return StateTerminal, nil
		}
		return StateTerminal, errors.WrapWithCode(err, errors.ErrJob,
			"Couldn't query the job state",
			"Make sure squeue is in PATH and Slurm is reachable.")
	}

	return parseJobState(string(out)), nil
}

// parseJobState maps squeue %t codes to the coarse state. An empty
// response means the job has left the queue.
func parseJobState(out string) JobState {
	code := strings.TrimSpace(out)
	switch code {
	case "":
		return StateTerminal
	case "R":
		return StateRunning
	case "PD", "CF", "S", "RQ", "RH":
		return StatePending
	case "CG", "CD", "F", "CA", "TO", "NF", "PR", "OOM", "BF", "DL":
		return StateTerminal
	default:
		// Unknown codes are treated as still pending rather than
		// aborting a session over a scheduler quirk.
		return StatePending
	}
}

func (q *SlurmQuerier) JobNodes(ctx context.Context, jobID string) ([]string, error) {
	out, err := q.run.output(ctx, "squeue", "--job", jobID, "--noheader", "--format=%N")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrJob,
			"Couldn't query the job's node list",
			"Make sure squeue is in PATH and Slurm is reachable.")
	}

	nodelist := strings.TrimSpace(string(out))
	if nodelist == "" {
		return nil, nil
	}

	// Compressed lists like "gpu[01-04]" need scontrol to expand.
	expanded, err := q.run.output(ctx, "scontrol", "show", "hostnames", nodelist)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrJob,
			"Couldn't expand the job's node list",
			"Make sure scontrol is in PATH.")
	}

	var nodes []string
	for _, line := range strings.Split(string(expanded), "\n") {
		if host := strings.TrimSpace(line); host != "" {
			nodes = append(nodes, host)
		}
	}

	return nodes, nil
}

var (
	reqMemRe   = regexp.MustCompile(`(?:ReqMem|MinMemoryNode)=([0-9.]+)([KMGT]?)([nc]?)`)
	numCPUsRe  = regexp.MustCompile(`NumCPUs=(\d+)`)
	numNodesRe = regexp.MustCompile(`NumNodes=(\d+)`)
)

func (q *SlurmQuerier) JobMemoryMB(ctx context.Context, jobID string) (int, bool) {
	out, err := q.run.output(ctx, "scontrol", "-o", "show", "job", jobID)
	if err != nil {
		return 0, false
	}
	return parseMemoryMB(string(out))
}

// parseMemoryMB extracts the per-node memory budget from scontrol
// output. Per-cpu requests (suffix "c") are scaled by cpus per node.
func parseMemoryMB(out string) (int, bool) {
	m := reqMemRe.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}

	switch m[2] {
	case "K":
		value /= 1024
	case "G":
		value *= 1024
	case "T":
		value *= 1024 * 1024
	}

	if m[3] == "c" {
		cpus := firstInt(numCPUsRe, out)
		nodes := firstInt(numNodesRe, out)
		if cpus > 0 && nodes > 0 {
			value *= float64(cpus) / float64(nodes)
		}
	}

	mb := int(value)
	if mb <= 0 {
		return 0, false
	}
	return mb, true
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
