// Package tui renders analysis reports and read progress in the terminal.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/logflow/pmdash/pkg/mining"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	barStyle     = lipgloss.NewStyle().Foreground(accent)
)

const (
	barWidth = 30
	rule     = "  ─────────────────────────────────────"
)

// RenderReport writes every section of r to w.
func RenderReport(w io.Writer, r *mining.Report) {
	renderOverview(w, r.Overview)
	renderBottlenecks(w, r.Bottlenecks)
	renderLoops(w, r.Loops)
	renderVariants(w, r.Variants)
	renderCompliance(w, r.Compliance)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n\n", mutedStyle.Render("analyzed in "+formatDuration(r.Elapsed)))
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render("▸ "+strings.ToUpper(title)))
}

func field(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(label+":"), titleStyle.Render(fmt.Sprint(value)))
}

func renderOverview(w io.Writer, ov mining.Overview) {
	section(w, "Data overview")
	field(w, "Rows", ov.Rows)
	field(w, "Columns", ov.Columns)
	field(w, "Cases", ov.Cases)
	field(w, "Activities", ov.Activities)
	if ov.Rows == 0 {
		return
	}

	field(w, "Time range", fmt.Sprintf("%s → %s (%s)",
		ov.TimeRange.Start.Format("2006-01-02 15:04"),
		ov.TimeRange.End.Format("2006-01-02 15:04"),
		formatDuration(ov.TimeRange.Duration)))
	field(w, "Events/case", fmt.Sprintf("min %d, max %d, avg %.1f",
		ov.CaseStats.MinEventsPerCase, ov.CaseStats.MaxEventsPerCase, ov.CaseStats.AvgEventsPerCase))

	fmt.Fprintln(w, mutedStyle.Render(rule))
	for _, e := range ov.Sample {
		fmt.Fprintf(w, "  %-12s %-16s %s\n", e.CaseID, e.Activity, mutedStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05")))
	}
}

func renderBottlenecks(w io.Writer, metrics []mining.BottleneckMetric) {
	section(w, "Process bottlenecks (avg minutes before activity)")
	if len(metrics) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  No transitions."))
		return
	}

	// metrics are ranked, so the first is the widest bar
	top := metrics[0].AvgMinutes
	for _, m := range metrics {
		n := 0
		if top > 0 {
			n = int(m.AvgMinutes / top * barWidth)
		}
		fmt.Fprintf(w, "  %-16s %s %s\n",
			m.Activity,
			barStyle.Render(strings.Repeat("█", n)+strings.Repeat("░", barWidth-n)),
			titleStyle.Render(fmt.Sprintf("%.1f", m.AvgMinutes)))
	}
}

func renderLoops(w io.Writer, loops []mining.CaseLoop) {
	section(w, "Process loops")
	if len(loops) == 0 {
		fmt.Fprintln(w, successStyle.Render("  ✓ No loops detected."))
		return
	}
	for _, l := range loops {
		fmt.Fprintf(w, "  %s %s\n", titleStyle.Render(l.CaseID+":"), strings.Join(l.Activities, ", "))
	}
}

func renderVariants(w io.Writer, variants []mining.Variant) {
	section(w, "Process variants")
	if len(variants) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  No cases."))
		return
	}
	for _, v := range variants {
		fmt.Fprintf(w, "  %s %s %s\n",
			accentStyle.Render(fmt.Sprintf("#%d", v.Rank)),
			v.Activities.String(),
			mutedStyle.Render(fmt.Sprintf("(%d cases, %.1f%%)", v.Count, v.Percent)))
	}
}

func renderCompliance(w io.Writer, c mining.ComplianceResult) {
	section(w, "Compliance")
	field(w, "Expected", c.Expected.String())
	if c.NonCompliantCases == 0 {
		fmt.Fprintln(w, successStyle.Render("  ✓ All cases follow the expected sequence."))
		return
	}

	fmt.Fprintf(w, "  %s\n", accentStyle.Render(fmt.Sprintf("✗ %d non-compliant cases", c.NonCompliantCases)))
	for _, d := range c.Deviations {
		fmt.Fprintf(w, "  %s %s\n", d.Sequence.String(), mutedStyle.Render(fmt.Sprintf("(%d cases)", len(d.Cases))))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
