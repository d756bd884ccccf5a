package searchclient

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

// Presentation is how an answer was drawn
type Presentation string

const (
	PresentText     Presentation = "text"
	PresentMarkdown Presentation = "markdown"
	PresentTable    Presentation = "table"
	PresentGraph    Presentation = "graph"
)

const (
	siteWidth    = 30
	maxSites     = 3
	summaryWidth = 80
	barWidth     = 40
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	bulletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// RenderAnswer draws a contextual answer. The presentation is chosen from
// the type tag alone, and unknown tags are drawn as text.
func RenderAnswer(w io.Writer, a *Answer) Presentation {
	switch a.Type {
	case TypeMarkdown:
		renderMarkdown(w, a.Content)
		return PresentMarkdown
	case TypeTable:
		if len(a.Headers) > 0 {
			renderTable(w, a)
			return PresentTable
		}
	case TypeGraph:
		if a.Data != nil && len(a.Data.Labels) > 0 && len(a.Data.Datasets) > 0 {
			renderGraph(w, a)
			return PresentGraph
		}
	}
	fmt.Fprintln(w, a.Content)
	return PresentText
}

func renderMarkdown(w io.Writer, content string) {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			fmt.Fprintln(w, headingStyle.Render(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			fmt.Fprintln(w, bulletStyle.Render("•")+" "+strings.ReplaceAll(trimmed[2:], "**", ""))
		default:
			fmt.Fprintln(w, strings.ReplaceAll(line, "**", ""))
		}
	}
}

func renderTable(w io.Writer, a *Answer) {
	if a.Content != "" {
		fmt.Fprintln(w, a.Content)
	}
	table := tablewriter.NewWriter(w)
	table.Header(toAny(a.Headers)...)
	for _, row := range a.Rows {
		cells := make([]string, len(a.Headers))
		copy(cells, row)
		table.Append(toAny(cells)...)
	}
	table.Render()
}

func renderGraph(w io.Writer, a *Answer) {
	if a.Content != "" {
		fmt.Fprintln(w, headingStyle.Render(a.Content))
	}

	if a.GraphType == "pie" {
		renderShares(w, a.Data)
		return
	}

	labelWidth := 0
	for _, l := range a.Data.Labels {
		labelWidth = max(labelWidth, len([]rune(l)))
	}
	peak := 0.0
	for _, ds := range a.Data.Datasets {
		for _, v := range ds.Data {
			if abs := math.Abs(v); !math.IsNaN(abs) && !math.IsInf(abs, 0) {
				peak = math.Max(peak, abs)
			}
		}
	}

	for _, ds := range a.Data.Datasets {
		if len(a.Data.Datasets) > 1 || ds.Label != "" {
			fmt.Fprintln(w, dimStyle.Render(ds.Label))
		}
		for i, label := range a.Data.Labels {
			var v float64
			if i < len(ds.Data) {
				v = ds.Data[i]
			}
			length := 0.0
			if peak > 0 {
				length = math.Abs(v) / peak * barWidth
			}
			fmt.Fprintf(w, "%s %s %s\n",
				labelStyle.Render(padRight(label, labelWidth)),
				barStyle.Render(bar(length)),
				formatNumber(v))
		}
	}
}

// renderShares draws the first dataset as percentages of its total. Only
// positive values count towards the total and get a bar.
func renderShares(w io.Writer, data *GraphData) {
	ds := data.Datasets[0]
	total := 0.0
	for _, v := range ds.Data {
		if v > 0 {
			total += v
		}
	}
	labelWidth := 0
	for _, l := range data.Labels {
		labelWidth = max(labelWidth, len([]rune(l)))
	}
	for i, label := range data.Labels {
		var v float64
		if i < len(ds.Data) {
			v = ds.Data[i]
		}
		share := 0.0
		if total > 0 {
			share = v / total * 100
		}
		fmt.Fprintf(w, "%s %s %5.1f%%\n",
			labelStyle.Render(padRight(label, labelWidth)),
			barStyle.Render(bar(share/100*barWidth)),
			share)
	}
}

// bar draws length cells, clamped to the chart width
func bar(length float64) string {
	if !(length > 0) {
		return ""
	}
	return strings.Repeat("█", int(math.Round(math.Min(length, barWidth))))
}

// RenderResults draws the stored results table
func RenderResults(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Query", "Sites", "Summary", "Date")
	for _, r := range results {
		summary := r.Summary
		if summary == "" {
			summary = "No summary"
		}
		table.Append(
			r.ID,
			r.Query,
			FormatSites(r.Sites),
			Truncate(summary, summaryWidth),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	table.Render()
}

// RenderEntries draws one line per active search
func RenderEntries(w io.Writer, entries []Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No active searches"))
		return
	}
	for _, e := range entries {
		style := labelStyle
		switch e.State {
		case EntryCompleted:
			style = doneStyle
		case EntryFailed:
			style = errorStyle
		case EntryCancelling:
			style = dimStyle
		}
		fmt.Fprintf(w, "%s  %s\n", headingStyle.Render(e.Query), style.Render(e.Label()))
	}
}

// FormatSites shows at most three sites, each cut to thirty characters
func FormatSites(sites []string) string {
	shown := sites
	if len(shown) > maxSites {
		shown = shown[:maxSites]
	}
	parts := make([]string, 0, len(shown)+1)
	for _, s := range shown {
		parts = append(parts, Truncate(s, siteWidth))
	}
	if extra := len(sites) - len(shown); extra > 0 {
		parts = append(parts, fmt.Sprintf("+%d more", extra))
	}
	return strings.Join(parts, "\n")
}

// Truncate cuts s to n runes and appends "..." when anything was removed
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func padRight(s string, n int) string {
	if pad := n - len([]rune(s)); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
