// Package cli defines the jobscope command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobscope/jobscope/internal/config"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/session"
)

// Root command flags
var (
	cfgFileFlag  string
	jobIDFlag    string
	onceFlag     bool
	exportFlag   string
	demoFlag     int
	periodFlag   time.Duration
	intervalFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "jobscope",
	Short: "Live resource dashboard for multi-node cluster jobs",
	Long: `jobscope attaches to a running (or pending) cluster job, starts a
lightweight collector on every allocated node, and shows a live
dashboard of CPU, memory, GPU, and process activity across the nodes.

Examples:
  jobscope --jobid 4242
  jobscope --jobid 4242 --once
  jobscope --jobid 4242 --export run.jsonl
  jobscope --demo 4`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFileFlag, "config", "", "config file (default: .jobscope.yaml)")
	rootCmd.Flags().StringVar(&jobIDFlag, "jobid", "", "scheduler job id to attach to")
	rootCmd.Flags().BoolVar(&onceFlag, "once", false, "print one snapshot and exit")
	rootCmd.Flags().StringVar(&exportFlag, "export", "", "write session history to this JSONL file at shutdown")
	rootCmd.Flags().IntVar(&demoFlag, "demo", 0, "run with N simulated nodes instead of attaching")
	rootCmd.Flags().DurationVar(&periodFlag, "period", 0, "sampling period (default from config, 2s)")
	rootCmd.Flags().DurationVar(&intervalFlag, "interval", 0, "dashboard refresh interval (default from config, 1s)")
}

// monitorCommand runs a full monitoring session.
func monitorCommand() error {
	cfg, err := config.LoadOrDefault(cfgFileFlag)
	if err != nil {
		return err
	}
	if periodFlag > 0 {
		cfg.Period = periodFlag
	}
	if intervalFlag > 0 {
		cfg.Refresh = intervalFlag
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return session.Run(ctx, cfg, session.Options{
		JobID:      jobIDFlag,
		Once:       onceFlag,
		ExportPath: exportFlag,
		DemoNodes:  demoFlag,
		Logger:     logger.Default(),
	})
}

// Execute runs the root command, printing structured errors on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
