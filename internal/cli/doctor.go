package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jobscope/jobscope/internal/config"
	"github.com/jobscope/jobscope/internal/doctor"
	"github.com/jobscope/jobscope/internal/errors"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment for scheduler tools, SSH setup, and GPU libraries",
	Long: `Doctor inspects the local environment and reports whether jobscope
can monitor jobs from here: Slurm client tools in PATH, SSH keys or a
running agent, the NVML library for GPU metrics, and the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand()
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput is the JSON shape of a doctor run.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput groups check results under a category name.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput totals the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func doctorCommand() error {
	cfg, err := config.LoadOrDefault(cfgFileFlag)
	if err != nil {
		// A broken config file is itself a finding, not a reason to
		// abort the other checks.
		cfg = config.DefaultConfig()
		fmt.Fprintln(os.Stderr, err)
	}

	checks := doctor.DefaultChecks(cfg)
	results := doctor.RunAllParallel(checks)

	if doctorJSON {
		if err := outputDoctorJSON(checks, results); err != nil {
			return err
		}
	} else {
		outputDoctorText(checks, results)
	}

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig,
			"Environment checks failed",
			"Fix the issues above and run jobscope doctor again.")
	}
	return nil
}

func outputDoctorJSON(checks []doctor.Check, results []doctor.CheckResult) error {
	grouped := make(map[string][]doctor.CheckResult)
	var order []string

	for i, check := range checks {
		cat := check.Category()
		if _, seen := grouped[cat]; !seen {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], results[i])
	}

	output := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasFailures(results),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputDoctorText(checks []doctor.Check, results []doctor.CheckResult) {
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Println()
	fmt.Println(headerStyle.Render("jobscope environment report"))
	fmt.Println()

	grouped := make(map[string][]int)
	var order []string
	for i, check := range checks {
		cat := check.Category()
		if _, seen := grouped[cat]; !seen {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], i)
	}

	for _, cat := range order {
		fmt.Println(headerStyle.Render(cat))
		for _, idx := range grouped[cat] {
			result := results[idx]

			var symbol string
			var style lipgloss.Style
			switch result.Status {
			case doctor.StatusPass:
				symbol = "✓"
				style = successStyle
			case doctor.StatusWarn:
				symbol = "!"
				style = warnStyle
			default:
				symbol = "✗"
				style = errorStyle
			}

			fmt.Printf("  %s %s\n", style.Render(symbol), result.Message)
			if result.Suggestion != "" && result.Status != doctor.StatusPass {
				for _, line := range strings.Split(result.Suggestion, "\n") {
					fmt.Printf("    %s\n", mutedStyle.Render(line))
				}
			}
		}
		fmt.Println()
	}

	counts := doctor.CountByStatus(results)
	if !doctor.HasFailures(results) && counts[doctor.StatusWarn] == 0 {
		fmt.Printf("%s Everything looks good\n", successStyle.Render("✓"))
	} else {
		total := counts[doctor.StatusFail] + counts[doctor.StatusWarn]
		fmt.Printf("%d issue%s found (%d fail, %d warn)\n",
			total, pluralSuffix(total),
			counts[doctor.StatusFail], counts[doctor.StatusWarn])
	}
	fmt.Println()
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
