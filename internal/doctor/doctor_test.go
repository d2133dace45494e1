package doctor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscope/jobscope/internal/config"
)

type stubCheck struct {
	name   string
	status CheckStatus
	slow   bool
}

func (c *stubCheck) Name() string     { return c.name }
func (c *stubCheck) Category() string { return "TEST" }

func (c *stubCheck) Run() CheckResult {
	if c.slow {
		time.Sleep(20 * time.Millisecond)
	}
	return CheckResult{Name: c.name, Status: c.status, Message: c.name}
}

func TestRunAllPreservesOrder(t *testing.T) {
	checks := []Check{
		&stubCheck{name: "a", status: StatusPass},
		&stubCheck{name: "b", status: StatusWarn},
		&stubCheck{name: "c", status: StatusFail},
	}

	results := RunAll(checks)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	assert.Equal(t, "c", results[2].Name)
}

func TestRunAllParallelPreservesOrder(t *testing.T) {
	checks := []Check{
		&stubCheck{name: "slow", status: StatusPass, slow: true},
		&stubCheck{name: "fast", status: StatusPass},
	}

	results := RunAllParallel(checks)
	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "fast", results[1].Name)
}

func TestCountByStatus(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	counts := CountByStatus(results)
	assert.Equal(t, 2, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 1, counts[StatusFail])
}

func TestHasFailures(t *testing.T) {
	assert.False(t, HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.True(t, HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusFail}}))
	assert.False(t, HasFailures(nil))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fail", StatusFail.String())
	assert.Equal(t, "unknown", CheckStatus(99).String())
}

func TestToolCheckMissingRequired(t *testing.T) {
	check := &toolCheck{tool: "definitely-not-a-real-binary-xyz", required: true}
	result := check.Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "not found")
}

func TestToolCheckMissingOptional(t *testing.T) {
	check := &toolCheck{tool: "definitely-not-a-real-binary-xyz", required: false}
	result := check.Run()
	assert.Equal(t, StatusWarn, result.Status)
}

func TestConfigCheckValid(t *testing.T) {
	check := &configCheck{cfg: config.DefaultConfig()}
	result := check.Run()
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "srun")
}

func TestConfigCheckInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Period = time.Millisecond
	check := &configCheck{cfg: cfg}
	result := check.Run()
	assert.Equal(t, StatusFail, result.Status)
	assert.NotEmpty(t, result.Suggestion)
}

func TestDefaultChecksCoverCategories(t *testing.T) {
	checks := DefaultChecks(config.DefaultConfig())
	categories := make(map[string]bool)
	for _, c := range checks {
		categories[c.Category()] = true
	}
	assert.True(t, categories["SCHEDULER"])
	assert.True(t, categories["SSH"])
	assert.True(t, categories["GPU"])
	assert.True(t, categories["CONFIG"])
}
