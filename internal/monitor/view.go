package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jobscope/jobscope/internal/frame"
	"github.com/jobscope/jobscope/internal/state"
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.showHelp {
		b.WriteString(m.renderHelp())
	} else if m.agg.ViewMode() == state.ViewPerNode {
		b.WriteString(m.renderPerNodeView())
	} else {
		b.WriteString(m.renderGlobalView())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the dashboard header with summary stats.
func (m Model) renderHeader() string {
	summary := Summarize(m.snaps, m.topK)

	title := TitleStyle.Render("jobscope")

	job := ""
	if m.agg.Job() != "" {
		job = " | job " + m.agg.Job()
	}

	stats := LabelStyle.Render(fmt.Sprintf(
		"%s | %d node(s) | %d live | up %s",
		job, summary.Nodes, summary.Live, formatUptime(time.Since(m.agg.Started()))))

	return HeaderStyle.Render(title + stats)
}

// renderGlobalView renders the cluster-wide aggregate plus one summary
// row per node.
func (m Model) renderGlobalView() string {
	summary := Summarize(m.snaps, m.topK)

	var b strings.Builder

	if summary.Reporting == 0 {
		b.WriteString(LabelStyle.Render("Waiting for the first frames to arrive..."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.renderGlobalSummary(summary))
		b.WriteString("\n")
	}

	for i, snap := range m.snaps {
		b.WriteString(m.renderNodeRow(snap, i == m.selected))
		b.WriteString("\n")
	}

	if len(summary.TopProcesses) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderTopProcesses(summary.TopProcesses))
	}

	return b.String()
}

func (m Model) renderGlobalSummary(s GlobalSummary) string {
	barWidth := 20

	var b strings.Builder
	b.WriteString(LabelStyle.Render("cpu  "))
	b.WriteString(RenderBar(s.MeanCPU, barWidth))
	b.WriteString(ValueStyle.Render(fmt.Sprintf(" %5.1f%%", s.MeanCPU)))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  mean of %d node(s)", s.Reporting)))
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render("mem  "))
	b.WriteString(RenderBar(s.MemoryPercent(), barWidth))
	b.WriteString(ValueStyle.Render(fmt.Sprintf(" %5.1f%%", s.MemoryPercent())))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  %s / %s", formatBytes(s.MemoryUsed), formatBytes(s.MemoryTotal))))
	b.WriteString("\n")

	if s.GPUs > 0 {
		b.WriteString(LabelStyle.Render("gpu  "))
		b.WriteString(RenderBar(s.MeanGPU, barWidth))
		b.WriteString(ValueStyle.Render(fmt.Sprintf(" %5.1f%%", s.MeanGPU)))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  %d device(s)", s.GPUs)))
		b.WriteString("\n")
	}

	return PanelStyle.Render(b.String())
}

// renderNodeRow renders one node's summary line for the global view.
func (m Model) renderNodeRow(snap state.NodeSnapshot, selected bool) string {
	glyph := statusGlyph(snap.Status)

	nameStyle := NodeNameStyle
	prefix := "  "
	if selected {
		nameStyle = NodeSelectedStyle
		prefix = "> "
	}

	name := nameStyle.Render(fmt.Sprintf("%-16s", snap.ID))

	if snap.Latest == nil {
		return prefix + glyph + " " + name + MutedStyle.Render(" "+snap.Status.String())
	}

	cpu := snap.Latest.AverageCPU()
	mem := snap.Latest.Memory.UsagePercent()

	line := fmt.Sprintf("%s%s %s cpu %s %5.1f%%  mem %s %5.1f%%",
		prefix, glyph, name,
		RenderBar(cpu, 10), cpu,
		RenderBar(mem, 10), mem)

	if len(snap.Latest.GPUs) > 0 {
		var gpuSum float64
		for _, g := range snap.Latest.GPUs {
			gpuSum += g.UsagePercent
		}
		mean := gpuSum / float64(len(snap.Latest.GPUs))
		line += fmt.Sprintf("  gpu %s %5.1f%%", RenderBar(mean, 10), mean)
	}

	if snap.Status != state.StatusLive {
		line += MutedStyle.Render("  (" + snap.Status.String() + ")")
	}

	return line
}

// renderPerNodeView renders the selected node's full detail inside the
// scrollable viewport.
func (m Model) renderPerNodeView() string {
	snap, ok := m.SelectedNode()
	if !ok {
		return LabelStyle.Render("No nodes yet")
	}

	if !m.viewportReady {
		return m.renderNodeDetail(snap)
	}

	return m.detailViewport.View()
}

// renderNodeDetail renders a node's cores, memory, GPUs, and process
// table.
func (m Model) renderNodeDetail(snap state.NodeSnapshot) string {
	var b strings.Builder

	glyph := statusGlyph(snap.Status)
	b.WriteString(glyph + " " + NodeNameStyle.Render(snap.ID))
	b.WriteString(MutedStyle.Render("  " + snap.Status.String()))
	if !snap.LastUpdate.IsZero() {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  last frame %ds ago", int(time.Since(snap.LastUpdate).Seconds()))))
	}
	b.WriteString("\n\n")

	if snap.Latest == nil {
		b.WriteString(LabelStyle.Render("No frames from this node yet"))
		return b.String()
	}

	f := snap.Latest

	b.WriteString(LabelStyle.Render(fmt.Sprintf("cores (%d)", len(f.CPUs))))
	b.WriteString("\n")
	b.WriteString(renderCoreGrid(f.CPUs, m.coreGridWidth()))
	b.WriteString("\n\n")

	mem := f.Memory.UsagePercent()
	b.WriteString(LabelStyle.Render("memory  "))
	b.WriteString(RenderBar(mem, 30))
	b.WriteString(ValueStyle.Render(fmt.Sprintf(" %5.1f%%  %s / %s",
		mem, formatBytes(f.Memory.UsedBytes), formatBytes(f.Memory.TotalBytes))))
	b.WriteString("\n")

	for _, gpu := range f.GPUs {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render(fmt.Sprintf("gpu %d   ", gpu.Index)))
		b.WriteString(RenderBar(gpu.UsagePercent, 30))
		b.WriteString(ValueStyle.Render(fmt.Sprintf(" %5.1f%%  %s  vram %s / %s",
			gpu.UsagePercent, gpu.Name,
			formatBytes(gpu.Memory.UsedBytes), formatBytes(gpu.Memory.TotalBytes))))
	}

	if len(f.Processes) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderProcessTable(f.Processes))
	}

	return b.String()
}

// coreGridWidth is how many core squares fit per row.
func (m Model) coreGridWidth() int {
	if m.width >= 120 {
		return 32
	}
	if m.width >= 80 {
		return 16
	}
	return 8
}

// renderCoreGrid renders one colored square per core.
func renderCoreGrid(cores []frame.CPUCore, perRow int) string {
	if perRow < 1 {
		perRow = 8
	}

	var rows []string
	var row strings.Builder
	for i, core := range cores {
		style := lipgloss.NewStyle().Foreground(CoreColor(core.UsagePercent))
		row.WriteString(style.Render(CoreGlyph))
		row.WriteString(" ")
		if (i+1)%perRow == 0 {
			rows = append(rows, row.String())
			row.Reset()
		}
	}
	if row.Len() > 0 {
		rows = append(rows, row.String())
	}

	return strings.Join(rows, "\n")
}

func renderProcessTable(procs []frame.ProcessRecord) string {
	var b strings.Builder
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%7s  %5s  %10s  %s", "PID", "CPU%", "MEM", "NAME")))
	b.WriteString("\n")
	for _, p := range procs {
		b.WriteString(fmt.Sprintf("%7d  %5.1f  %10s  %s\n",
			p.PID, p.CPUPercent, formatBytes(p.MemoryBytes), p.Name))
	}
	return b.String()
}

func (m Model) renderTopProcesses(procs []NodeProcess) string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render("top processes"))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%-16s %7s  %5s  %10s  %s", "NODE", "PID", "CPU%", "MEM", "NAME")))
	b.WriteString("\n")
	for _, p := range procs {
		b.WriteString(fmt.Sprintf("%-16s %7d  %5.1f  %10s  %s\n",
			p.Node, p.PID, p.CPUPercent, formatBytes(p.MemoryBytes), p.Name))
	}
	return b.String()
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{
		"q quit",
		"tab view",
		"↑↓ select",
		"? help",
	}
	return FooterStyle.Render(strings.Join(hints, " | "))
}

func (m Model) renderHelp() string {
	lines := []string{
		TitleStyle.Render("Keyboard shortcuts"),
		"",
		"  q, ctrl+c   quit",
		"  tab, v      toggle global / per-node view",
		"  ↑/k ↓/j     select node",
		"  home, end   first / last node",
		"  esc         back to global view",
		"  ?           toggle this help",
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}

func statusGlyph(s state.NodeStatus) string {
	switch s {
	case state.StatusLive:
		return StatusLiveStyle.Render(GlyphLive)
	case state.StatusStale:
		return StatusStaleStyle.Render(GlyphStale)
	case state.StatusDisconnected:
		return StatusDisconnectedStyle.Render(GlyphDisconnected)
	default:
		return StatusConnectingStyle.Render(GlyphConnecting)
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
