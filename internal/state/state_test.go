package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscope/jobscope/internal/frame"
)

func testFrame(seq uint64) *frame.Frame {
	return &frame.Frame{
		Seq:       seq,
		Timestamp: time.Now().Unix(),
		CPUs:      []frame.CPUCore{{Index: 0, UsagePercent: 50}},
		Memory:    frame.MemoryLoad{UsedBytes: 1 << 30, TotalBytes: 4 << 30},
	}
}

func TestAddNodeStartsConnecting(t *testing.T) {
	agg := New("123", 10)

	n := agg.AddNode("node-a")

	assert.Equal(t, StatusConnecting, n.Status())
	assert.Equal(t, "node-a", n.ID())
}

func TestAddNodeIsIdempotent(t *testing.T) {
	agg := New("123", 10)

	first := agg.AddNode("node-a")
	first.Apply(testFrame(1))
	second := agg.AddNode("node-a")

	assert.Same(t, first, second)
	assert.Equal(t, StatusLive, second.Status())
	assert.Len(t, agg.Nodes(), 1)
}

func TestApplyAdvancesToLive(t *testing.T) {
	agg := New("123", 10)
	n := agg.AddNode("node-a")

	require.True(t, n.Apply(testFrame(1)))

	assert.Equal(t, StatusLive, n.Status())
	snap := n.Snapshot()
	require.NotNil(t, snap.Latest)
	assert.Equal(t, uint64(1), snap.Latest.Seq)
}

func TestApplyDropsStaleSequence(t *testing.T) {
	agg := New("123", 10)
	n := agg.AddNode("node-a")

	require.True(t, n.Apply(testFrame(5)))
	assert.False(t, n.Apply(testFrame(5)), "duplicate seq should drop")
	assert.False(t, n.Apply(testFrame(3)), "older seq should drop")
	assert.True(t, n.Apply(testFrame(6)))

	snap := n.Snapshot()
	assert.Equal(t, uint64(6), snap.Latest.Seq)
	assert.Equal(t, 2, snap.Dropped)
	assert.Equal(t, 2, snap.Frames, "dropped frames must not enter history")
}

func TestMarkStaleOnlyFromLive(t *testing.T) {
	agg := New("123", 10)
	n := agg.AddNode("node-a")

	assert.False(t, n.MarkStale(), "connecting node must not go stale")

	n.Apply(testFrame(1))
	assert.True(t, n.MarkStale())
	assert.Equal(t, StatusStale, n.Status())

	n.MarkDisconnected()
	assert.False(t, n.MarkStale(), "disconnected is terminal")
	assert.Equal(t, StatusDisconnected, n.Status())
}

func TestStaleRecoversOnNextFrame(t *testing.T) {
	agg := New("123", 10)
	n := agg.AddNode("node-a")

	n.Apply(testFrame(1))
	n.MarkStale()
	require.True(t, n.Apply(testFrame(2)))

	assert.Equal(t, StatusLive, n.Status())
}

func TestHistoryEvictsOldest(t *testing.T) {
	agg := New("123", 3)
	n := agg.AddNode("node-a")

	for seq := uint64(1); seq <= 5; seq++ {
		require.True(t, n.Apply(testFrame(seq)))
	}

	history := n.History()
	require.Len(t, history, 3)
	assert.Equal(t, uint64(3), history[0].Seq)
	assert.Equal(t, uint64(5), history[2].Seq)
}

func TestHistoryEmptyForConnectingNode(t *testing.T) {
	agg := New("123", 10)
	n := agg.AddNode("node-a")

	assert.Empty(t, n.History())

	_, ok := n.SilentFor()
	assert.False(t, ok, "no frame yet means no silence measurement")
}

func TestSnapshotPreservesRegistrationOrder(t *testing.T) {
	agg := New("123", 10)
	agg.AddNode("node-c")
	agg.AddNode("node-a")
	agg.AddNode("node-b")

	snaps := agg.Snapshot()

	require.Len(t, snaps, 3)
	assert.Equal(t, "node-c", snaps[0].ID)
	assert.Equal(t, "node-a", snaps[1].ID)
	assert.Equal(t, "node-b", snaps[2].ID)
}

func TestToggleView(t *testing.T) {
	agg := New("123", 10)

	assert.Equal(t, ViewGlobal, agg.ViewMode())
	assert.Equal(t, ViewPerNode, agg.ToggleView())
	assert.Equal(t, ViewGlobal, agg.ToggleView())
}

func TestNodeStatusString(t *testing.T) {
	tests := []struct {
		status NodeStatus
		want   string
	}{
		{StatusConnecting, "connecting"},
		{StatusLive, "live"},
		{StatusStale, "stale"},
		{StatusDisconnected, "disconnected"},
		{NodeStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}
