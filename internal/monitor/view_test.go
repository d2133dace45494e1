package monitor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/state"
)

func TestViewGlobalListsEveryNode(t *testing.T) {
	agg := buildAggregate(t)
	m := NewModel(agg, Options{})

	out := m.View()

	assert.Contains(t, out, "jobscope")
	assert.Contains(t, out, "job 4242")
	assert.Contains(t, out, "gpu01")
	assert.Contains(t, out, "gpu02")
	assert.Contains(t, out, "gpu03")
	assert.Contains(t, out, "connecting", "silent node shows its status")
}

func TestViewPerNodeShowsDetail(t *testing.T) {
	agg := buildAggregate(t)
	agg.ToggleView()
	m := NewModel(agg, Options{})

	out := m.View()

	assert.Contains(t, out, "gpu01")
	assert.Contains(t, out, "cores (2)")
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "A100")
	assert.Contains(t, out, "python")
}

func TestViewHelpOverlay(t *testing.T) {
	m := NewModel(state.New("1", 10), Options{})
	m.showHelp = true

	out := m.View()

	assert.Contains(t, out, "Keyboard shortcuts")
	assert.Contains(t, out, "toggle global / per-node view")
}

func TestRenderCoreGridWraps(t *testing.T) {
	cores := make([]frame.CPUCore, 20)
	for i := range cores {
		cores[i] = frame.CPUCore{Index: i, UsagePercent: 50}
	}

	grid := renderCoreGrid(cores, 8)

	lines := strings.Split(grid, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, 8, strings.Count(lines[0], CoreGlyph))
	assert.Equal(t, 4, strings.Count(lines[2], CoreGlyph))
}

func TestCoreColorBands(t *testing.T) {
	assert.Equal(t, ColorHealthy, CoreColor(0))
	assert.Equal(t, ColorHealthy, CoreColor(29.9))
	assert.Equal(t, ColorWarning, CoreColor(30))
	assert.Equal(t, ColorWarning, CoreColor(80))
	assert.Equal(t, ColorCritical, CoreColor(80.1))
	assert.Equal(t, ColorCritical, CoreColor(100))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{16 << 30, "16.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.bytes))
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "45s", formatUptime(45*time.Second))
	assert.Equal(t, "2m05s", formatUptime(125*time.Second))
	assert.Equal(t, "1h30m", formatUptime(90*time.Minute))
}

func TestRenderOnce(t *testing.T) {
	agg := buildAggregate(t)

	var buf bytes.Buffer
	require.NoError(t, RenderOnce(&buf, agg, 10))

	out := buf.String()
	assert.Contains(t, out, "jobscope")
	assert.Contains(t, out, "gpu01")
	assert.Contains(t, out, "gpu02")
	assert.Contains(t, out, "python")
	// gpu03 never reported, so it has no detail section
	assert.NotContains(t, out, "cores (0)")
}

func TestRenderOnceCountsFinishedAgents(t *testing.T) {
	agg := buildAggregate(t)

	// Single-shot agents have exited by render time; their frames must
	// still show up in the snapshot.
	for _, node := range agg.Nodes() {
		node.MarkDisconnected()
	}

	var buf bytes.Buffer
	require.NoError(t, RenderOnce(&buf, agg, 10))

	out := buf.String()
	assert.Contains(t, out, "gpu01")
	assert.Contains(t, out, "trainer")
	assert.NotContains(t, out, "Waiting for the first frames")
}
