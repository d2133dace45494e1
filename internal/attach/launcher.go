package attach

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/internal/sampler"
)

// NodeHandle is a running collector on one node. Its Stream carries
// newline-delimited frames until the collector exits.
type NodeHandle interface {
	NodeID() string
	Stream() io.Reader

	// Stop asks the collector to exit, escalating to a forced kill when
	// ctx expires first. It also closes the stream.
	Stop(ctx context.Context) error
}

// Launcher starts a collector on a named node.
type Launcher interface {
	Launch(ctx context.Context, nodeID string) (NodeHandle, error)
}

// AgentCommand describes how to invoke the collector agent.
type AgentCommand struct {
	// Binary is the executable path. Empty means the current binary for
	// local launches and "jobscope" for remote ones.
	Binary string

	// Period is the sampling interval passed to the agent.
	Period time.Duration

	// Once makes the agent emit a single frame and exit, for snapshot
	// sessions.
	Once bool

	// MemoryMB overrides the agent's view of total memory, for
	// schedulers that cap a job below the node's physical RAM.
	MemoryMB int
}

func (a AgentCommand) args() []string {
	args := []string{"agent"}
	if a.Period > 0 {
		args = append(args, "--period", a.Period.String())
	}
	if a.Once {
		args = append(args, "--once")
	}
	return args
}

func (a AgentCommand) env() []string {
	if a.MemoryMB <= 0 {
		return nil
	}
	return []string{sampler.MemTotalEnv + "=" + strconv.Itoa(a.MemoryMB)}
}

// remoteCommand renders the invocation as a single shell command for
// srun and ssh transports.
func (a AgentCommand) remoteCommand() string {
	binary := a.Binary
	if binary == "" {
		binary = "jobscope"
	}

	cmd := binary
	for _, arg := range a.args() {
		cmd += " " + arg
	}
	for _, kv := range a.env() {
		cmd = kv + " " + cmd
	}
	return cmd
}

// procHandle wraps a local child process whose stdout is the frame
// stream. Both the local and srun launchers produce these.
//
// Stdout is relayed through a pipe the handle owns: Wait closes the
// exec pipe the moment the process exits, which would drop any bytes
// the reader hasn't consumed yet (the flush after SIGTERM, or a
// single-shot agent's only frame). The relay drains the exec pipe to
// EOF first and only then reaps the process.
type procHandle struct {
	node   string
	cmd    *exec.Cmd
	reader *io.PipeReader

	waitErr error
	done    chan struct{}
}

func newProcHandle(node string, cmd *exec.Cmd, stdout io.ReadCloser) *procHandle {
	pr, pw := io.Pipe()
	h := &procHandle{
		node:   node,
		cmd:    cmd,
		reader: pr,
		done:   make(chan struct{}),
	}
	go func() {
		_, _ = io.Copy(pw, stdout)
		h.waitErr = cmd.Wait()
		pw.Close()
		close(h.done)
	}()
	return h
}

func (h *procHandle) NodeID() string {
	return h.node
}

func (h *procHandle) Stream() io.Reader {
	return h.reader
}

func (h *procHandle) Stop(ctx context.Context) error {
	// TERM first so the collector can flush its last frame.
	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-h.done:
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		<-h.done
	}

	return h.reader.Close()
}

// LocalLauncher runs the agent as a child process on this machine.
type LocalLauncher struct {
	Agent AgentCommand
}

func (l *LocalLauncher) Launch(ctx context.Context, nodeID string) (NodeHandle, error) {
	binary := l.Agent.Binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, launchFailed(nodeID, err, "Couldn't locate the jobscope binary")
		}
		binary = self
	}

	cmd := exec.Command(binary, l.Agent.args()...)
	cmd.Env = append(os.Environ(), l.Agent.env()...)

	return startProc(nodeID, cmd)
}

// SrunLauncher starts the agent as a one-node job step inside an
// existing allocation. One step per node keeps each stream separate.
type SrunLauncher struct {
	JobID string
	Agent AgentCommand
}

func (l *SrunLauncher) Launch(ctx context.Context, nodeID string) (NodeHandle, error) {
	binary := l.Agent.Binary
	if binary == "" {
		binary = "jobscope"
	}

	args := []string{
		"--jobid", l.JobID,
		"--nodes=1",
		"--nodelist", nodeID,
		"--ntasks=1",
		"--overlap",
		"--quiet",
		"--",
		binary,
	}
	args = append(args, l.Agent.args()...)

	// srun exports the caller's environment to the step.
	cmd := exec.Command("srun", args...)
	cmd.Env = append(os.Environ(), l.Agent.env()...)

	return startProc(nodeID, cmd)
}

func startProc(nodeID string, cmd *exec.Cmd) (NodeHandle, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, launchFailed(nodeID, err, "Couldn't open a pipe to the collector")
	}

	if err := cmd.Start(); err != nil {
		return nil, launchFailed(nodeID, err, "Couldn't start the collector process")
	}

	return newProcHandle(nodeID, cmd, stdout), nil
}

func launchFailed(nodeID string, cause error, message string) error {
	return errors.WrapWithCode(
		fmt.Errorf("%w on %s: %v", errors.ErrNodeLaunchFailed, nodeID, cause),
		errors.ErrLaunch,
		message,
		"The node stays in the dashboard as disconnected; other nodes are unaffected.")
}

// StopAll stops every handle concurrently, giving each the same grace
// period before its process is killed.
func StopAll(handles []NodeHandle, grace time.Duration) {
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h NodeHandle) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			_ = h.Stop(ctx)
		}(h)
	}
	wg.Wait()
}
