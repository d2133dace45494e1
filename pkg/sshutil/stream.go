package sshutil

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/jobscope/jobscope/internal/errors"
)

// Stream is a long-running remote command whose stdout is consumed
// incrementally.
type Stream struct {
	client  *Client
	session *ssh.Session
	stdout  io.Reader
	done    chan error
}

// StartStream runs cmd on the remote host and returns a handle whose
// Stdout delivers the command's output as it is produced. Stderr is
// discarded; the command is expected to report through its own stream.
func (c *Client) StartStream(cmd string) (*Stream, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to open stdout pipe", "")
	}

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to start remote command: %s", cmd),
			"Check that the agent binary is installed on the node.")
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	return &Stream{
		client:  c,
		session: session,
		stdout:  stdout,
		done:    done,
	}, nil
}

// Stdout returns the remote command's output stream.
func (s *Stream) Stdout() io.Reader {
	return s.stdout
}

// Signal asks the remote command to stop. Not every sshd delivers
// signals, so callers should follow up with Close after a grace period.
func (s *Stream) Signal() error {
	return s.session.Signal(ssh.SIGTERM)
}

// Wait blocks until the remote command exits.
func (s *Stream) Wait() error {
	return <-s.done
}

// Close tears down the session and the underlying connection.
func (s *Stream) Close() error {
	s.session.Close()
	return s.client.Close()
}
