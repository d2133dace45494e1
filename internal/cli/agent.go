package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobscope/jobscope/internal/collector"
	"github.com/jobscope/jobscope/internal/logger"
	"github.com/jobscope/jobscope/internal/sampler"
)

var (
	agentPeriodFlag time.Duration
	agentOnceFlag   bool
)

// agentCmd is the per-node collector. The monitor launches it on every
// node (via srun or ssh) and reads frames from its stdout; it can also
// be run by hand for debugging.
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Sample this node and stream frames to stdout",
	Long: `Run the collector loop on the current node, writing one JSON frame
per line to stdout. This is what the monitor starts on every node of a
job; running it directly is mostly useful for debugging:

  jobscope agent --once | jq .`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentCommand()
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().DurationVar(&agentPeriodFlag, "period", 2*time.Second, "sampling period")
	agentCmd.Flags().BoolVar(&agentOnceFlag, "once", false, "emit a single frame and exit")
}

func agentCommand() error {
	log := logger.Default()

	s := sampler.NewSystem(log)
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := collector.New(s, os.Stdout, collector.Options{
		Period: agentPeriodFlag,
		Once:   agentOnceFlag,
		Logger: log,
	})

	return c.Run(ctx)
}
