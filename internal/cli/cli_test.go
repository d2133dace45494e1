package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dev", "dev"},
		{"", ""},
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in))
	}
}

func TestSplitHosts(t *testing.T) {
	assert.Equal(t, []string{"gpu01", "gpu02"}, splitHosts("gpu01, gpu02"))
	assert.Equal(t, []string{"gpu01"}, splitHosts("gpu01,"))
	assert.Nil(t, splitHosts(""))
	assert.Nil(t, splitHosts(" , "))
}

func TestValidatePeriod(t *testing.T) {
	assert.NoError(t, validatePeriod("2s"))
	assert.NoError(t, validatePeriod("500ms"))
	assert.Error(t, validatePeriod(""))
	assert.Error(t, validatePeriod("fast"))
	assert.Error(t, validatePeriod("10ms"), "below the minimum period")
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"agent", "doctor", "init", "version"} {
		require.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootFlags(t *testing.T) {
	for _, flag := range []string{"jobid", "once", "export", "demo", "period"} {
		assert.NotNil(t, rootCmd.Flags().Lookup(flag), "missing flag --%s", flag)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
