package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jobscope/jobscope/internal/config"
	"github.com/jobscope/jobscope/internal/errors"
)

var initForceFlag bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .jobscope.yaml configuration",
	Long: `Create a .jobscope.yaml in the current directory, walking through the
launcher choice and node setup with interactive prompts.

Examples:
  jobscope init
  jobscope init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initForceFlag)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForceFlag, "force", false, "overwrite an existing config")
}

// initFile is the YAML shape written by init. Kept separate from
// config.Config so the generated file only contains what the user
// chose.
type initFile struct {
	Period   string   `yaml:"period"`
	Launcher string   `yaml:"launcher"`
	Hosts    []string `yaml:"hosts,omitempty"`
	Export   string   `yaml:"export,omitempty"`
}

func initCommand(force bool) error {
	configPath := filepath.Join(".", config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", config.ConfigFileName)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	launcher := config.LauncherSrun
	period := "2s"
	hostsInput := ""
	exportPath := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should collectors be started?").
				Options(
					huh.NewOption("srun (inside a Slurm allocation)", config.LauncherSrun),
					huh.NewOption("ssh (direct to a host list)", config.LauncherSSH),
					huh.NewOption("local (this machine only)", config.LauncherLocal),
				).
				Value(&launcher),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Sampling period").
				Description("How often each node samples (e.g. 2s, 500ms)").
				Value(&period).
				Validate(validatePeriod),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Hosts (ssh launcher only)").
				Description("Comma-separated node list, e.g. gpu01,gpu02").
				Value(&hostsInput),
		).WithHideFunc(func() bool { return launcher != config.LauncherSSH }),
		huh.NewGroup(
			huh.NewInput().
				Title("Default export path (optional)").
				Description("JSONL file written at the end of every session").
				Placeholder("leave empty to disable").
				Value(&exportPath),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Edit "+config.ConfigFileName+" by hand instead.")
	}

	out := initFile{
		Period:   period,
		Launcher: launcher,
		Hosts:    splitHosts(hostsInput),
		Export:   strings.TrimSpace(exportPath),
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't render the config file", "")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+configPath,
			"Check the directory is writable.")
	}

	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func validatePeriod(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("period is required")
	}
	cfg := config.DefaultConfig()
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("not a duration (try 2s or 500ms)")
	}
	cfg.Period = d
	return config.Validate(cfg)
}

func splitHosts(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		if host := strings.TrimSpace(part); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}
