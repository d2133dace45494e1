// Package ingest drains per-node frame streams into the shared
// aggregate. One goroutine per stream plus a staleness sweeper, all
// managed by a single errgroup.
package ingest

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/state"
)

// Source pairs a node id with its frame stream.
type Source struct {
	NodeID string
	Reader io.Reader
}

// Options tunes ingestion behavior.
type Options struct {
	// StaleAfter is how long a live node may go silent before it is
	// marked stale. Defaults to three times the default collector period.
	StaleAfter time.Duration

	// SweepEvery is the staleness check interval. Defaults to one
	// second.
	SweepEvery time.Duration

	Logger logger.Logger
}

// Ingestor reads frames from every node and applies them to the
// aggregate.
type Ingestor struct {
	agg        *state.Aggregated
	staleAfter time.Duration
	sweepEvery time.Duration
	log        logger.Logger
}

// New creates an ingestor over the given aggregate.
func New(agg *state.Aggregated, opts Options) *Ingestor {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 6 * time.Second
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Ingestor{
		agg:        agg,
		staleAfter: opts.StaleAfter,
		sweepEvery: opts.SweepEvery,
		log:        opts.Logger,
	}
}

// Run drains every source until its stream ends, and sweeps for stale
// nodes until ctx is cancelled. A single node's failure never stops
// the others. Readers block on their stream, so the caller must close
// the underlying streams at shutdown to unblock them.
func (i *Ingestor) Run(ctx context.Context, sources []Source) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, src := range sources {
		g.Go(func() error {
			i.drain(src)
			return nil
		})
	}

	g.Go(func() error {
		i.sweep(ctx)
		return nil
	})

	return g.Wait()
}

// drain reads one node's stream to completion. Malformed frames are
// dropped and counted; any stream-level failure marks the node
// disconnected and ends the reader.
func (i *Ingestor) drain(src Source) {
	node := i.agg.AddNode(src.NodeID)
	dec := frame.NewDecoder(src.Reader)

	for {
		f, err := dec.Next()
		if err != nil {
			if errors.IsCode(err, errors.ErrFrame) {
				node.RecordDrop()
				i.log.Warn("node %s: dropped malformed frame: %v", src.NodeID, err)
				continue
			}

			if stderrors.Is(err, io.EOF) {
				i.log.Debug("node %s: stream closed", src.NodeID)
			} else {
				i.log.Warn("node %s: stream failed: %v", src.NodeID, err)
			}
			node.MarkDisconnected()
			return
		}

		if !node.Apply(f) {
			i.log.Debug("node %s: dropped out-of-order frame seq=%d", src.NodeID, f.Seq)
		}
	}
}

// sweep periodically demotes silent live nodes to stale.
func (i *Ingestor) sweep(ctx context.Context) {
	ticker := time.NewTicker(i.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, node := range i.agg.Nodes() {
				silent, ok := node.SilentFor()
				if ok && silent > i.staleAfter && node.MarkStale() {
					i.log.Info("node %s: no frames for %s, marking stale", node.ID(), silent.Round(time.Second))
				}
			}
		}
	}
}
