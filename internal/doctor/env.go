package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jobscope/jobscope/internal/config"
)

// DefaultChecks builds the check list for the given config. The
// scheduler checks only matter for the srun launcher, and the SSH
// checks only for the ssh launcher, so each is downgraded to a warning
// when the config points elsewhere.
func DefaultChecks(cfg *config.Config) []Check {
	return []Check{
		&toolCheck{tool: "squeue", required: cfg.Launcher == config.LauncherSrun},
		&toolCheck{tool: "scontrol", required: cfg.Launcher == config.LauncherSrun},
		&toolCheck{tool: "srun", required: cfg.Launcher == config.LauncherSrun},
		&sshKeyCheck{required: cfg.Launcher == config.LauncherSSH},
		&nvmlCheck{},
		&configCheck{cfg: cfg},
	}
}

// toolCheck verifies a scheduler binary is in PATH.
type toolCheck struct {
	tool     string
	required bool
}

func (c *toolCheck) Name() string     { return c.tool }
func (c *toolCheck) Category() string { return "SCHEDULER" }

func (c *toolCheck) Run() CheckResult {
	if _, err := exec.LookPath(c.tool); err != nil {
		status := StatusWarn
		suggestion := "Only needed for the srun launcher."
		if c.required {
			status = StatusFail
			suggestion = "Install Slurm client tools or run jobscope on a login node."
		}
		return CheckResult{
			Name:       c.tool,
			Status:     status,
			Message:    c.tool + " not found in PATH",
			Suggestion: suggestion,
		}
	}
	return CheckResult{Name: c.tool, Status: StatusPass, Message: c.tool + " found"}
}

// sshKeyCheck verifies some SSH auth source exists.
type sshKeyCheck struct {
	required bool
}

func (c *sshKeyCheck) Name() string     { return "ssh-auth" }
func (c *sshKeyCheck) Category() string { return "SSH" }

func (c *sshKeyCheck) Run() CheckResult {
	if os.Getenv("SSH_AUTH_SOCK") != "" {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "SSH agent is running"}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, key := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
			if _, err := os.Stat(filepath.Join(home, ".ssh", key)); err == nil {
				return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Found ~/.ssh/" + key}
			}
		}
	}

	status := StatusWarn
	if c.required {
		status = StatusFail
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     status,
		Message:    "No SSH agent or key files found",
		Suggestion: "Generate a key (ssh-keygen -t ed25519) or start an agent. Only needed for the ssh launcher.",
	}
}

// nvmlPaths are the usual locations of the NVIDIA management library.
var nvmlPaths = []string{
	"/usr/lib/x86_64-linux-gnu/libnvidia-ml.so.1",
	"/usr/lib64/libnvidia-ml.so.1",
	"/usr/lib/libnvidia-ml.so.1",
}

// nvmlCheck reports whether GPU sampling will work on this machine.
// A miss is never a failure: nodes without GPUs simply omit the GPU
// section of their frames.
type nvmlCheck struct{}

func (c *nvmlCheck) Name() string     { return "nvml" }
func (c *nvmlCheck) Category() string { return "GPU" }

func (c *nvmlCheck) Run() CheckResult {
	for _, path := range nvmlPaths {
		if _, err := os.Stat(path); err == nil {
			return CheckResult{Name: c.Name(), Status: StatusPass, Message: "NVML library found at " + path}
		}
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "NVML library not found",
		Suggestion: "GPU metrics will be omitted on this machine. Fine on CPU-only nodes.",
	}
}

// configCheck validates the effective config.
type configCheck struct {
	cfg *config.Config
}

func (c *configCheck) Name() string     { return "config" }
func (c *configCheck) Category() string { return "CONFIG" }

func (c *configCheck) Run() CheckResult {
	if err := config.Validate(c.cfg); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Config validation failed",
			Suggestion: err.Error(),
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config OK (launcher %s, period %s)", c.cfg.Launcher, c.cfg.Period),
	}
}
