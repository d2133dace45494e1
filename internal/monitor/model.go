// Package monitor renders the live dashboard over the shared node
// aggregate. The UI refreshes on its own timer and only ever takes
// snapshot reads, so a slow or dead node never blocks a repaint.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jobscope/jobscope/internal/state"
)

// DefaultRefresh is the UI repaint interval. It is deliberately
// decoupled from the collector period: frames arrive when they arrive,
// the dashboard repaints on its own clock.
const DefaultRefresh = time.Second

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	agg     *state.Aggregated
	refresh time.Duration
	topK    int

	// snaps is the snapshot taken on the last tick; View renders only
	// from this copy.
	snaps    []state.NodeSnapshot
	selected int

	width  int
	height int

	quitting bool
	showHelp bool

	detailViewport viewport.Model
	viewportReady  bool
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// Options tunes the dashboard.
type Options struct {
	// Refresh is the repaint interval. Defaults to DefaultRefresh.
	Refresh time.Duration

	// TopProcesses is how many processes the global view lists.
	// Defaults to 10.
	TopProcesses int
}

// NewModel creates a dashboard over the given aggregate.
func NewModel(agg *state.Aggregated, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.TopProcesses <= 0 {
		opts.TopProcesses = 10
	}
	return Model{
		agg:     agg,
		refresh: opts.Refresh,
		topK:    opts.TopProcesses,
		snaps:   agg.Snapshot(),
	}
}

// Init starts the refresh timer.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tickMsg:
		m.snaps = m.agg.Snapshot()
		if m.selected >= len(m.snaps) && len(m.snaps) > 0 {
			m.selected = len(m.snaps) - 1
		}
		if m.agg.ViewMode() == state.ViewPerNode {
			m.updateViewportContent()
		}
		return m, m.tickCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// SelectedNode returns the snapshot of the currently selected node.
func (m Model) SelectedNode() (state.NodeSnapshot, bool) {
	if m.selected >= 0 && m.selected < len(m.snaps) {
		return m.snaps[m.selected], true
	}
	return state.NodeSnapshot{}, false
}

func (m *Model) resizeViewport() {
	headerHeight := 3
	footerHeight := 2
	viewportHeight := m.height - headerHeight - footerHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.viewportReady {
		m.detailViewport = viewport.New(m.width, viewportHeight)
		m.detailViewport.YPosition = headerHeight
		m.viewportReady = true
	} else {
		m.detailViewport.Width = m.width
		m.detailViewport.Height = viewportHeight
	}

	if m.agg.ViewMode() == state.ViewPerNode {
		m.updateViewportContent()
	}
}

func (m *Model) updateViewportContent() {
	if !m.viewportReady {
		return
	}
	if snap, ok := m.SelectedNode(); ok {
		m.detailViewport.SetContent(m.renderNodeDetail(snap))
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(agg *state.Aggregated, opts Options) error {
	p := tea.NewProgram(NewModel(agg, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
