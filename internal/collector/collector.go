// Package collector runs a sampler on a fixed period and emits one frame
// per tick onto an output stream. One collector runs per node, in-process
// for local mode and wrapped by the agent command everywhere else.
package collector

import (
	"context"
	"io"
	"time"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/sampler"
)

// Options configure a collector.
type Options struct {
	// Period is the sampling interval.
	Period time.Duration

	// Once emits a single frame and returns instead of looping.
	Once bool

	Logger logger.Logger
}

// Collector periodically samples local resource counters and writes frames
// to its sink.
type Collector struct {
	sampler sampler.Sampler
	enc     *frame.Encoder
	period  time.Duration
	once    bool
	log     logger.Logger

	seq uint64
}

// New creates a collector emitting frames from s onto sink.
func New(s sampler.Sampler, sink io.Writer, opts Options) *Collector {
	if opts.Period <= 0 {
		opts.Period = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Collector{
		sampler: s,
		enc:     frame.NewEncoder(sink),
		period:  opts.Period,
		once:    opts.Once,
		log:     opts.Logger,
	}
}

// Run samples and emits frames until ctx is cancelled. The in-flight frame
// is finished before returning; a frame already being written is never cut
// off mid-record.
//
// The tick schedule is drift-compensated: each deadline advances by exactly
// one period from the previous deadline, and the loop sleeps only the
// remainder after sampling cost, so emission does not slip as sampling gets
// slower.
func (c *Collector) Run(ctx context.Context) error {
	// Prime delta-based counters so the first emitted frame has real CPU
	// numbers.
	if _, err := c.sampler.Sample(ctx); err != nil {
		c.log.Warn("priming sample failed: %v", err)
	}

	if c.once {
		// Short settle so the delta window isn't empty.
		if !sleepCtx(ctx, 200*time.Millisecond) {
			return ctx.Err()
		}
		return c.emit(ctx)
	}

	deadline := time.Now().Add(c.period)
	for {
		if !sleepUntil(ctx, deadline) {
			return ctx.Err()
		}
		deadline = deadline.Add(c.period)

		if err := c.emit(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A closed sink means whoever was reading us is gone.
			return err
		}
	}
}

// emit takes one snapshot, stamps it, and writes it to the sink.
func (c *Collector) emit(ctx context.Context) error {
	snap, err := c.sampler.Sample(ctx)
	if err != nil {
		// A failed snapshot skips the tick; the monitor side tracks the
		// gap via staleness, not via broken frames.
		c.log.Warn("sample failed: %v", err)
		return nil
	}

	c.seq++
	f := &frame.Frame{
		Seq:       c.seq,
		Timestamp: time.Now().Unix(),
		Hostname:  snap.Hostname,
		CPUs:      snap.CPUs,
		Memory:    snap.Memory,
		GPUs:      snap.GPUs,
		Processes: snap.Processes,
	}

	return c.enc.Encode(f)
}

// sleepUntil blocks until the deadline or context cancellation.
// Returns false when cancelled.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	return sleepCtx(ctx, time.Until(deadline))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
