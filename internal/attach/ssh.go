package attach

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/pkg/sshutil"
)

// SSHLauncher runs the agent over SSH, for clusters reachable without
// a scheduler. The agent binary must already be installed on the node.
type SSHLauncher struct {
	Agent       AgentCommand
	DialTimeout time.Duration
}

func (l *SSHLauncher) Launch(ctx context.Context, nodeID string) (NodeHandle, error) {
	timeout := l.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := sshutil.Dial(nodeID, timeout)
	if err != nil {
		return nil, launchFailed(nodeID, err, "Couldn't reach the node over SSH")
	}

	stream, err := client.StartStream(l.Agent.remoteCommand())
	if err != nil {
		client.Close()
		return nil, launchFailed(nodeID, err, "Couldn't start the collector over SSH")
	}

	return &sshHandle{node: nodeID, stream: stream}, nil
}

type sshHandle struct {
	node   string
	stream *sshutil.Stream
}

func (h *sshHandle) NodeID() string {
	return h.node
}

func (h *sshHandle) Stream() io.Reader {
	return h.stream.Stdout()
}

func (h *sshHandle) Stop(ctx context.Context) error {
	_ = h.stream.Signal()

	done := make(chan error, 1)
	go func() { done <- h.stream.Wait() }()

	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := h.stream.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't close the SSH session to %s", h.node), "")
	}
	return nil
}
