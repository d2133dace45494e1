// Package session wires a monitoring run together: attach to the job,
// ingest frames from every node, drive the dashboard or a one-shot
// snapshot, and export history at shutdown.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jobscope/jobscope/internal/attach"
	"github.com/jobscope/jobscope/internal/config"
	"github.com/jobscope/jobscope/internal/errors"
	"github.com/jobscope/jobscope/internal/export"
	"github.com/jobscope/jobscope/internal/ingest"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/monitor"
	"github.com/jobscope/jobscope/internal/state"
)

// Options selects what this session monitors and how it ends.
type Options struct {
	// JobID is the scheduler job to attach to. Required for the srun
	// launcher, ignored by ssh and local.
	JobID string

	// Once collects a single snapshot, prints it, and exits instead of
	// starting the dashboard.
	Once bool

	// ExportPath overrides the config export path. Empty falls back to
	// the config; both empty disables export.
	ExportPath string

	// DemoNodes runs that many simulated nodes instead of attaching to
	// anything real. Zero disables demo mode.
	DemoNodes int

	// Out receives run-once output. Defaults to stdout.
	Out io.Writer

	Logger logger.Logger
}

// Run executes a full monitoring session and blocks until it ends.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	log := opts.Logger

	label := opts.JobID
	if opts.DemoNodes > 0 {
		label = "demo"
	}
	agg := state.New(label, cfg.Retention)

	result, err := attachNodes(ctx, cfg, opts)
	if err != nil {
		return err
	}
	if len(result.Handles) == 0 {
		return errors.New(errors.ErrLaunch,
			"No node collector could be started",
			"Every launch failed. Check the log output above for per-node errors.")
	}

	// Failed nodes still appear in the dashboard, as disconnected.
	for _, node := range result.Failed {
		agg.AddNode(node).MarkDisconnected()
	}

	sources := make([]ingest.Source, 0, len(result.Handles))
	for _, h := range result.Handles {
		agg.AddNode(h.NodeID())
		sources = append(sources, ingest.Source{NodeID: h.NodeID(), Reader: h.Stream()})
	}

	ingCtx, stopIngest := context.WithCancel(context.Background())
	ing := ingest.New(agg, ingest.Options{
		StaleAfter: cfg.StaleAfter(),
		SweepEvery: cfg.Period / 2,
		Logger:     log,
	})
	ingestDone := make(chan error, 1)
	go func() { ingestDone <- ing.Run(ingCtx, sources) }()

	var runErr error
	if opts.Once {
		runErr = runOnce(ctx, cfg, opts, agg)
	} else {
		runErr = monitor.Run(agg, monitor.Options{
			Refresh:      cfg.Refresh,
			TopProcesses: cfg.TopProcesses,
		})
	}

	// Shutdown: stop collectors first so streams end cleanly, then the
	// readers, then write the export.
	attach.StopAll(result.Handles, cfg.StopTimeout)
	stopIngest()
	select {
	case <-ingestDone:
	case <-time.After(cfg.StopTimeout):
		log.Warn("ingest readers did not stop in time")
	}

	if path := exportPath(cfg, opts); path != "" {
		if err := export.WriteFile(path, agg); err != nil {
			// Export failure is reported but never changes how the
			// session ended.
			fmt.Fprintln(os.Stderr, err)
		} else {
			log.Info("session history exported to %s", path)
		}
	}

	return runErr
}

// runOnce waits until every launched node has reported (or a bounded
// settle passes) and prints one snapshot.
func runOnce(ctx context.Context, cfg *config.Config, opts Options, agg *state.Aggregated) error {
	deadline := time.After(2*cfg.Period + 2*time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			break wait
		case <-ticker.C:
			if allReported(agg) {
				break wait
			}
		}
	}

	return monitor.RenderOnce(opts.Out, agg, cfg.TopProcesses)
}

// allReported is true when every node that could still report has. A
// disconnected node counts as reported if it delivered a frame first,
// which is how single-shot agents end up.
func allReported(agg *state.Aggregated) bool {
	reported := false
	for _, snap := range agg.Snapshot() {
		switch snap.Status {
		case state.StatusConnecting:
			return false
		case state.StatusDisconnected:
			if snap.Latest != nil {
				reported = true
			}
		default:
			reported = true
		}
	}
	return reported
}

func exportPath(cfg *config.Config, opts Options) string {
	if opts.ExportPath != "" {
		return opts.ExportPath
	}
	return cfg.Export
}

// attachNodes builds the right launcher for the config and attaches.
func attachNodes(ctx context.Context, cfg *config.Config, opts Options) (*attach.Result, error) {
	if opts.DemoNodes > 0 {
		return launchDemo(opts.DemoNodes, cfg.Period, opts.Once)
	}

	// Snapshot sessions run the agents in single-shot mode, so a fast
	// node can't slip extra frames in while slower nodes still launch.
	agent := attach.AgentCommand{
		Binary: cfg.AgentBinary,
		Period: cfg.Period,
		Once:   opts.Once,
	}

	switch cfg.Launcher {
	case config.LauncherLocal:
		attacher := attach.New(nil, &attach.LocalLauncher{Agent: agent}, attach.Options{
			Logger: opts.Logger,
		})
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}
		return attacher.AttachLocal(ctx, hostname)

	case config.LauncherSSH:
		return attachSSH(ctx, cfg, agent, opts.Logger)

	default:
		if opts.JobID == "" {
			return nil, errors.New(errors.ErrConfig,
				"No job id given",
				"Pass one: jobscope --jobid <id>, or use --demo / launcher: local.")
		}
		querier := attach.NewSlurmQuerier()
		if memMB, ok := querier.JobMemoryMB(ctx, opts.JobID); ok {
			agent.MemoryMB = memMB
		}
		attacher := attach.New(querier, &attach.SrunLauncher{JobID: opts.JobID, Agent: agent}, attach.Options{
			PollInterval: cfg.PollInterval,
			WaitTimeout:  cfg.WaitTimeout,
			Logger:       opts.Logger,
		})
		return attacher.Attach(ctx, opts.JobID)
	}
}

// attachSSH launches the agent on every configured host. There is no
// scheduler to wait on, so this is launch-only.
func attachSSH(ctx context.Context, cfg *config.Config, agent attach.AgentCommand, log logger.Logger) (*attach.Result, error) {
	launcher := &attach.SSHLauncher{Agent: agent}

	result := &attach.Result{}
	for _, host := range cfg.Hosts {
		handle, err := launcher.Launch(ctx, host)
		if err != nil {
			log.Warn("node %s: %v", host, err)
			result.Failed = append(result.Failed, host)
			continue
		}
		result.Handles = append(result.Handles, handle)
	}

	return result, nil
}
