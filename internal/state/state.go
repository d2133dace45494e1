// Package state holds the aggregated view of every monitored node.
// Reader goroutines apply frames as they arrive; the renderer and the
// exporter take consistent snapshots without blocking ingestion.
package state

import (
	"sync"
	"time"

	"github.com/jobscope/jobscope/internal/frame"
)

// NodeStatus tracks the lifecycle of a single node's stream.
type NodeStatus int

const (
	// StatusConnecting means the node was resolved but no frame has
	// arrived yet.
	StatusConnecting NodeStatus = iota

	// StatusLive means frames are arriving within the expected cadence.
	StatusLive

	// StatusStale means the node went quiet but its stream is still open.
	StatusStale

	// StatusDisconnected means the stream ended or the launch failed.
	StatusDisconnected
)

func (s NodeStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusLive:
		return "live"
	case StatusStale:
		return "stale"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ViewMode selects which dashboard layout the renderer draws.
type ViewMode int

const (
	// ViewGlobal shows aggregates across every node.
	ViewGlobal ViewMode = iota

	// ViewPerNode shows one node's full detail.
	ViewPerNode
)

// DefaultRetention is how many frames each node keeps for export.
const DefaultRetention = 600

// NodeState is the per-node slice of the aggregate. All methods are
// safe for concurrent use.
type NodeState struct {
	id string

	mu         sync.RWMutex
	status     NodeStatus
	latest     *frame.Frame
	lastSeq    uint64
	lastUpdate time.Time
	history    *ring
	dropped    int
}

// ID returns the node's stable identifier.
func (n *NodeState) ID() string {
	return n.id
}

// Apply records a new frame. Frames whose sequence number does not
// advance past the newest applied frame are dropped, so a delayed
// duplicate can never roll the display backwards. Returns false when
// the frame was dropped.
func (n *NodeState) Apply(f *frame.Frame) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.latest != nil && f.Seq <= n.lastSeq {
		n.dropped++
		return false
	}

	n.latest = f
	n.lastSeq = f.Seq
	n.lastUpdate = time.Now()
	n.status = StatusLive
	n.history.push(f)

	return true
}

// MarkStale flips a live node to stale. Nodes in any other status keep
// their status, so a disconnect is never downgraded by the sweeper.
func (n *NodeState) MarkStale() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusLive {
		return false
	}

	n.status = StatusStale
	return true
}

// MarkDisconnected is terminal for display purposes, though history is
// retained for export.
func (n *NodeState) MarkDisconnected() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusDisconnected
}

// RecordDrop counts a malformed frame against the node without
// touching its status.
func (n *NodeState) RecordDrop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropped++
}

// Status returns the node's current status.
func (n *NodeState) Status() NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// SilentFor reports how long the node has gone without a frame. Nodes
// that never produced a frame report the zero duration as false.
func (n *NodeState) SilentFor() (time.Duration, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.lastUpdate.IsZero() {
		return 0, false
	}
	return time.Since(n.lastUpdate), true
}

// Snapshot returns a consistent read of the node for rendering.
func (n *NodeState) Snapshot() NodeSnapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return NodeSnapshot{
		ID:         n.id,
		Status:     n.status,
		Latest:     n.latest,
		LastUpdate: n.lastUpdate,
		Frames:     n.history.len(),
		Dropped:    n.dropped,
	}
}

// History returns the retained frames in arrival order.
func (n *NodeState) History() []*frame.Frame {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.history.all()
}

// NodeSnapshot is an immutable copy of a node's display state. Latest
// points at an applied frame, which is never mutated after apply.
type NodeSnapshot struct {
	ID         string
	Status     NodeStatus
	Latest     *frame.Frame
	LastUpdate time.Time
	Frames     int
	Dropped    int
}

// Aggregated is the shared state for a monitoring session: every node
// keyed by id, plus the view mode the renderer toggles.
type Aggregated struct {
	job       string
	start     time.Time
	retention int

	mu     sync.RWMutex
	order  []string
	byNode map[string]*NodeState
	view   ViewMode
}

// New creates an empty aggregate for the given job label. A retention
// of zero or less uses DefaultRetention.
func New(job string, retention int) *Aggregated {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Aggregated{
		job:       job,
		start:     time.Now(),
		byNode:    make(map[string]*NodeState),
		retention: retention,
	}
}

// Job returns the job label the session is attached to.
func (a *Aggregated) Job() string {
	return a.job
}

// Started returns when the aggregate was created.
func (a *Aggregated) Started() time.Time {
	return a.start
}

// AddNode registers a node in Connecting status. Adding an existing id
// returns the existing state unchanged.
func (a *Aggregated) AddNode(id string) *NodeState {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n, ok := a.byNode[id]; ok {
		return n
	}

	n := &NodeState{
		id:      id,
		status:  StatusConnecting,
		history: newRing(a.retention),
	}
	a.byNode[id] = n
	a.order = append(a.order, id)

	return n
}

// Node looks up a node by id.
func (a *Aggregated) Node(id string) (*NodeState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.byNode[id]
	return n, ok
}

// Nodes returns every node in registration order.
func (a *Aggregated) Nodes() []*NodeState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*NodeState, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byNode[id])
	}
	return out
}

// Snapshot copies every node's display state in registration order.
func (a *Aggregated) Snapshot() []NodeSnapshot {
	nodes := a.Nodes()

	out := make([]NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Snapshot())
	}
	return out
}

// ViewMode returns the current dashboard layout.
func (a *Aggregated) ViewMode() ViewMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// ToggleView flips between the global and per-node layouts and returns
// the new mode.
func (a *Aggregated) ToggleView() ViewMode {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.view == ViewGlobal {
		a.view = ViewPerNode
	} else {
		a.view = ViewGlobal
	}
	return a.view
}
