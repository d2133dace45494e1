package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jobscope/jobscope/internal/attach"
	"github.com/jobscope/jobscope/internal/collector"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/sampler"
)

// launchDemo starts in-process collectors with simulated samplers, one
// per fake node. The rest of the session can't tell the difference
// from real node streams.
func launchDemo(nodes int, period time.Duration, once bool) (*attach.Result, error) {
	result := &attach.Result{}

	for i := 0; i < nodes; i++ {
		name := fmt.Sprintf("demo-%02d", i)
		result.Handles = append(result.Handles, newDemoHandle(name, period, once))
	}

	return result, nil
}

type demoHandle struct {
	node   string
	reader *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
}

func newDemoHandle(node string, period time.Duration, once bool) *demoHandle {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	h := &demoHandle{
		node:   node,
		reader: pr,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c := collector.New(
		sampler.NewDemo(sampler.DemoConfig{Hostname: node, Cores: 8, GPUs: 1}),
		pw,
		collector.Options{Period: period, Once: once, Logger: logger.Noop()},
	)

	go func() {
		defer close(h.done)
		_ = c.Run(ctx)
		pw.Close()
	}()

	return h
}

func (h *demoHandle) NodeID() string {
	return h.node
}

func (h *demoHandle) Stream() io.Reader {
	return h.reader
}

func (h *demoHandle) Stop(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.done:
	case <-ctx.Done():
	}
	return h.reader.Close()
}
