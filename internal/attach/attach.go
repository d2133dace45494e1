// Package attach waits for a scheduler job to run, resolves its nodes,
// and launches one collector per node.
package attach

import (
	"context"
	"fmt"
	"time"

	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/internal/logger"
)

// Phase is where the attach sequence currently stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseResolving
	PhaseLaunching
	PhaseAttached
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting for job"
	case PhaseResolving:
		return "resolving nodes"
	case PhaseLaunching:
		return "launching collectors"
	case PhaseAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Options tunes the attach sequence.
type Options struct {
	// PollInterval is how often the job state is re-queried while
	// pending. Defaults to 2 seconds.
	PollInterval time.Duration

	// WaitTimeout bounds the pending wait. Zero means wait as long as
	// the job stays queued.
	WaitTimeout time.Duration

	// OnPhase, when set, is called on every phase change so the UI can
	// show progress.
	OnPhase func(Phase)

	Logger logger.Logger
}

// Result is a successful attach: one handle per reachable node, plus
// the nodes whose collector could not be started.
type Result struct {
	Handles  []NodeHandle
	Failed   []string
	MemoryMB int
}

// Attacher drives the job-wait sequence against a scheduler.
type Attacher struct {
	querier  Querier
	launcher Launcher
	poll     time.Duration
	timeout  time.Duration
	onPhase  func(Phase)
	log      logger.Logger
}

// New creates an attacher over the given querier and launcher.
func New(querier Querier, launcher Launcher, opts Options) *Attacher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Attacher{
		querier:  querier,
		launcher: launcher,
		poll:     opts.PollInterval,
		timeout:  opts.WaitTimeout,
		onPhase:  opts.OnPhase,
		log:      opts.Logger,
	}
}

func (a *Attacher) setPhase(p Phase) {
	a.log.Debug("attach phase: %s", p)
	if a.onPhase != nil {
		a.onPhase(p)
	}
}

// Attach waits for the job to run, then launches a collector on every
// allocated node. A job that ends while pending, or that runs with no
// nodes, is a fatal error. A node whose launch fails is recorded in
// Result.Failed and does not fail the attach.
func (a *Attacher) Attach(ctx context.Context, jobID string) (*Result, error) {
	if err := a.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	a.setPhase(PhaseResolving)
	nodes, err := a.querier.JobNodes(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errors.WrapWithCode(
			fmt.Errorf("%w: job %s", errors.ErrNoNodesAllocated, jobID),
			errors.ErrJob,
			fmt.Sprintf("Job %s is running but reports no nodes", jobID),
			"Check the allocation: scontrol show job "+jobID)
	}

	memMB, hasMem := a.querier.JobMemoryMB(ctx, jobID)
	if hasMem {
		a.log.Debug("job %s memory budget: %d MB per node", jobID, memMB)
	}

	a.setPhase(PhaseLaunching)
	result := &Result{MemoryMB: memMB}
	for _, node := range nodes {
		handle, err := a.launcher.Launch(ctx, node)
		if err != nil {
			a.log.Warn("node %s: %v", node, err)
			result.Failed = append(result.Failed, node)
			continue
		}
		result.Handles = append(result.Handles, handle)
	}

	a.setPhase(PhaseAttached)
	a.log.Info("attached to job %s: %d node(s), %d failed", jobID, len(result.Handles), len(result.Failed))

	return result, nil
}

// AttachLocal skips the scheduler entirely and launches a single
// collector for the given node label.
func (a *Attacher) AttachLocal(ctx context.Context, nodeID string) (*Result, error) {
	a.setPhase(PhaseLaunching)

	handle, err := a.launcher.Launch(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	a.setPhase(PhaseAttached)
	return &Result{Handles: []NodeHandle{handle}}, nil
}

// waitForJob polls the scheduler until the job runs, ends, or the wait
// times out.
func (a *Attacher) waitForJob(ctx context.Context, jobID string) error {
	a.setPhase(PhaseWaiting)

	var deadline <-chan time.Time
	if a.timeout > 0 {
		timer := time.NewTimer(a.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	logged := false
	for {
		st, err := a.querier.JobState(ctx, jobID)
		if err != nil {
			return err
		}

		switch st {
		case StateRunning:
			return nil
		case StateTerminal:
			return jobNeverStarted(jobID, "reached a terminal state before it ran")
		case StatePending:
			if !logged {
				a.log.Info("job %s is pending, waiting for it to start", jobID)
				logged = true
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return jobNeverStarted(jobID, fmt.Sprintf("was still pending after %s", a.timeout))
		case <-ticker.C:
		}
	}
}

func jobNeverStarted(jobID, detail string) error {
	return errors.WrapWithCode(
		fmt.Errorf("%w: job %s %s", errors.ErrJobNeverStarted, jobID, detail),
		errors.ErrJob,
		fmt.Sprintf("Job %s never started", jobID),
		"Check what happened to it: sacct -j "+jobID)
}
