// Package config loads and validates .jobscope.yaml.
package config

import "time"

// Launcher kinds
const (
	LauncherSrun  = "srun"
	LauncherSSH   = "ssh"
	LauncherLocal = "local"
)

// Config holds every tunable for a monitoring session.
type Config struct {
	// Period is the sampling interval on each node.
	Period time.Duration `mapstructure:"period"`

	// Refresh is the dashboard repaint interval.
	Refresh time.Duration `mapstructure:"refresh"`

	// PollInterval is how often the scheduler is queried while the job
	// is pending.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// WaitTimeout bounds the pending wait. Zero waits indefinitely.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`

	// StalePeriods is how many missed sampling periods flip a live node
	// to stale.
	StalePeriods int `mapstructure:"stale_periods"`

	// Retention is how many frames each node keeps for export.
	Retention int `mapstructure:"retention"`

	// StopTimeout is the shutdown grace before collectors are killed.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// TopProcesses is how many processes the global view lists.
	TopProcesses int `mapstructure:"top_processes"`

	// Launcher selects how collectors are started: srun, ssh, or local.
	Launcher string `mapstructure:"launcher"`

	// Hosts is the node list for the ssh launcher, which has no
	// scheduler to ask.
	Hosts []string `mapstructure:"hosts"`

	// AgentBinary is the collector executable path on the nodes. Empty
	// uses "jobscope" from PATH (remote) or the current binary (local).
	AgentBinary string `mapstructure:"agent_binary"`

	// Export is a default path for the session JSONL export. Empty
	// disables exporting unless --export is passed.
	Export string `mapstructure:"export"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Period:       2 * time.Second,
		Refresh:      time.Second,
		PollInterval: 2 * time.Second,
		StalePeriods: 3,
		Retention:    600,
		StopTimeout:  5 * time.Second,
		TopProcesses: 10,
		Launcher:     LauncherSrun,
	}
}

// StaleAfter is how long a node may go silent before it is stale.
func (c *Config) StaleAfter() time.Duration {
	periods := c.StalePeriods
	if periods < 1 {
		periods = 1
	}
	return time.Duration(periods) * c.Period
}
