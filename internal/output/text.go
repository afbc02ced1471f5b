package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/critic/internal/review"
)

// TextWriter outputs a human-readable text report. Colors are used only
// when the destination is a color-capable terminal.
type TextWriter struct{}

type textStyles struct {
	title    lipgloss.Style
	file     lipgloss.Style
	muted    lipgloss.Style
	severity map[review.Severity]lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title: r.NewStyle().Bold(true),
		file:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		muted: r.NewStyle().Foreground(lipgloss.Color("245")),
		severity: map[review.Severity]lipgloss.Style{
			review.SeverityCritical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("201")),
			review.SeverityHigh:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			review.SeverityMedium:   r.NewStyle().Foreground(lipgloss.Color("208")),
			review.SeverityLow:      r.NewStyle().Foreground(lipgloss.Color("220")),
			review.SeverityInfo:     r.NewStyle().Foreground(lipgloss.Color("245")),
		},
	}
}

func (t *TextWriter) Write(w io.Writer, item review.HistoryItem) error {
	ew := &errWriter{w: w}
	st := newTextStyles(w)
	summary := review.ComputeSummary(item.Review)
	total := summary.Counts.Total()

	header := "Critic Code Review"
	if item.Model != "" {
		header += " (" + item.Model + ")"
	}
	ew.println(st.title.Render(header))
	if item.Timestamp != "" {
		ew.println(st.muted.Render(fmt.Sprintf("Review %s at %s", item.ID, item.Timestamp)))
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Files: %d | Findings: %d total", summary.Files, total)
	if total > 0 {
		ew.printf(" (%d critical, %d high, %d medium, %d low, %d info)",
			summary.Counts.Critical,
			summary.Counts.High,
			summary.Counts.Medium,
			summary.Counts.Low,
			summary.Counts.Info,
		)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if item.Review.OverallSummary != "" {
		ew.println("")
		for _, line := range wrapText(item.Review.OverallSummary, 76) {
			ew.println(line)
		}
	}

	for _, e := range entries(item) {
		ew.printf("\n%s %s\n", st.file.Render(e.Name), st.muted.Render("("+review.LanguageLabel(e.Language)+")"))
		ew.println(strings.Repeat("─", 40))
		for _, line := range wrapText(e.Review.OverallSummary, 76) {
			ew.printf("  %s\n", line)
		}
		if len(e.Review.Feedback) == 0 {
			ew.println("\n  No issues found. Looks good!")
			continue
		}
		for _, f := range e.Review.Feedback {
			label := fmt.Sprintf("%s %s", severityIcon(f.Severity), strings.ToUpper(string(f.Severity)))
			ew.printf("\n  %s  %s  %s\n",
				st.severity[f.Severity].Render(label),
				location(e.Name, f.Line),
				st.muted.Render(string(f.Category)))
			for _, line := range wrapText(f.Description, 70) {
				ew.printf("    %s\n", line)
			}
			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!!]"
	case review.SeverityHigh:
		return "[!!]"
	case review.SeverityMedium:
		return "[!]"
	case review.SeverityLow:
		return "[-]"
	case review.SeverityInfo:
		return "[i]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
