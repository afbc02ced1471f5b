package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/critic/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, item review.HistoryItem) error {
	ew := &errWriter{w: w}
	summary := review.ComputeSummary(item.Review)
	c := summary.Counts

	ew.printf("## Critic Code Review\n\n")
	if item.Model != "" {
		ew.printf("*Model: %s*\n\n", item.Model)
	}
	if item.Review.OverallSummary != "" {
		ew.printf("%s\n\n", item.Review.OverallSummary)
	}

	ew.printf("| Severity | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| Critical | %d    |\n", c.Critical)
	ew.printf("| High     | %d    |\n", c.High)
	ew.printf("| Medium   | %d    |\n", c.Medium)
	ew.printf("| Low      | %d    |\n", c.Low)
	ew.printf("| Info     | %d    |\n", c.Info)
	ew.printf("| **Total** | **%d** |\n\n", c.Total())

	for _, e := range entries(item) {
		ew.printf("<details>\n<summary><code>%s</code> (%d)</summary>\n\n", e.Name, len(e.Review.Feedback))
		if e.Review.OverallSummary != "" {
			ew.printf("%s\n\n", e.Review.OverallSummary)
		}
		if len(e.Review.Feedback) == 0 {
			ew.printf("No issues found. :white_check_mark:\n\n")
		}
		for _, f := range e.Review.Feedback {
			ew.printf("%s **%s** | %s | **`%s`**\n\n",
				mdSeverityIcon(f.Severity), f.Severity, f.Category, location(e.Name, f.Line))
			ew.printf("%s\n\n", f.Description)

			if f.Suggestion != "" {
				ew.printf("**Suggestion:**\n\n")
				if looksLikeCode(f.Suggestion) {
					ew.printf("```%s\n%s\n```\n\n", e.Language, f.Suggestion)
				} else {
					ew.printf("> %s\n\n", strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
				}
			}
			ew.printf("---\n\n")
		}
		ew.printf("</details>\n\n")
	}

	if item.Timestamp != "" {
		ew.printf("*Reviewed at %s*\n", item.Timestamp)
	}
	return ew.err
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":rotating_light:"
	case review.SeverityHigh:
		return ":red_circle:"
	case review.SeverityMedium:
		return ":orange_circle:"
	case review.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}
