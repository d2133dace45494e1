package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscope/jobscope/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "launcher: local\n")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, LauncherLocal, cfg.Launcher)
	assert.Equal(t, 2*time.Second, cfg.Period)
	assert.Equal(t, 3, cfg.StalePeriods)
	assert.Equal(t, 600, cfg.Retention)
	assert.Equal(t, 5*time.Second, cfg.StopTimeout)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
period: 1s
refresh: 500ms
poll_interval: 5s
wait_timeout: 10m
stale_periods: 5
retention: 1200
stop_timeout: 10s
top_processes: 20
launcher: ssh
hosts:
  - gpu-node-01
  - gpu-node-02
agent_binary: /opt/jobscope/bin/jobscope
export: /tmp/session.jsonl
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Period)
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.WaitTimeout)
	assert.Equal(t, 5, cfg.StalePeriods)
	assert.Equal(t, 1200, cfg.Retention)
	assert.Equal(t, []string{"gpu-node-01", "gpu-node-02"}, cfg.Hosts)
	assert.Equal(t, "/opt/jobscope/bin/jobscope", cfg.AgentBinary)
	assert.Equal(t, 5*time.Second, cfg.StaleAfter())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "period: [broken\n")

	_, err := Load(path)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"period too short", func(c *Config) { c.Period = 10 * time.Millisecond }, true},
		{"zero stale periods", func(c *Config) { c.StalePeriods = 0 }, true},
		{"zero retention", func(c *Config) { c.Retention = 0 }, true},
		{"unknown launcher", func(c *Config) { c.Launcher = "mpirun" }, true},
		{"ssh without hosts", func(c *Config) { c.Launcher = LauncherSSH }, true},
		{"ssh with hosts", func(c *Config) {
			c.Launcher = LauncherSSH
			c.Hosts = []string{"gpu-node-01"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaleAfterClampsPeriods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StalePeriods = 0

	assert.Equal(t, cfg.Period, cfg.StaleAfter())
}

func TestFindExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOrDefault("")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Period, cfg.Period)
}
