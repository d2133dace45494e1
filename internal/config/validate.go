package config

import (
	"fmt"
	"time"

	"github.com/jobscope/jobscope/internal/errors"
)

// Validate checks a config for values that would break a session.
func Validate(cfg *Config) error {
	if cfg.Period < 100*time.Millisecond {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Sampling period %s is too short", cfg.Period),
			"Use at least 100ms; the default is 2s.")
	}

	if cfg.StalePeriods < 1 {
		return errors.New(errors.ErrConfig,
			"stale_periods must be at least 1",
			"The default is 3: a node is stale after three silent periods.")
	}

	if cfg.Retention < 1 {
		return errors.New(errors.ErrConfig,
			"retention must be at least 1 frame",
			"The default is 600 frames per node.")
	}

	switch cfg.Launcher {
	case LauncherSrun, LauncherSSH, LauncherLocal:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown launcher %q", cfg.Launcher),
			"Valid launchers: srun, ssh, local.")
	}

	if cfg.Launcher == LauncherSSH && len(cfg.Hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"The ssh launcher needs a hosts list",
			"Add hosts to .jobscope.yaml:\n  hosts:\n    - gpu-node-01\n    - gpu-node-02")
	}

	return nil
}
