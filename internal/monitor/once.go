package monitor

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jobscope/jobscope/internal/state"
)

// RenderOnce writes a single snapshot of the aggregate to w and
// returns. Used by run-once mode, where the dashboard never starts.
// When w is not a terminal the output is plain text, so it can be
// piped or captured from a batch script.
func RenderOnce(w io.Writer, agg *state.Aggregated, topK int) error {
	width := 80
	isTTY := false
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isTTY = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}

	if !isTTY {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	// Single-shot agents exit right after delivering their frame. For a
	// snapshot that is a completed report, so it still counts toward
	// the cluster sums; nodes that died without a frame stay excluded.
	snaps := agg.Snapshot()
	for i := range snaps {
		if snaps[i].Status == state.StatusDisconnected && snaps[i].Latest != nil {
			snaps[i].Status = state.StatusLive
		}
	}

	m := Model{
		agg:   agg,
		topK:  topK,
		width: width,
		snaps: snaps,
	}

	var out string
	out += m.renderHeader() + "\n\n"
	out += m.renderGlobalView() + "\n"
	for _, snap := range m.snaps {
		if snap.Latest == nil {
			continue
		}
		out += "\n" + m.renderNodeDetail(snap) + "\n"
	}

	_, err := fmt.Fprint(w, out)
	return err
}
