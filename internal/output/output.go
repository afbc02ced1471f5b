package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dshills/critic/internal/review"
)

// ToolVersion is reported in machine-readable formats.
var ToolVersion = "dev"

// Writer writes a review in a specific format.
type Writer interface {
	Write(w io.Writer, item review.HistoryItem) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the review to the specified output (file path or stdout).
func WriteReport(item review.HistoryItem, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, item)
}

// fileEntry is one file's review in display order.
type fileEntry struct {
	Name     string
	Language string
	Review   review.CodeReview
}

// entries returns the item's file reviews in submission order with
// feedback sorted most severe first, then by line.
func entries(item review.HistoryItem) []fileEntry {
	langs := make(map[string]string, len(item.Files))
	for _, f := range item.Files {
		langs[f.Name] = f.Language
	}
	var out []fileEntry
	for _, name := range review.SortedFileNames(item.Files, item.Review) {
		r := item.Review.FileReviews[name].Clone()
		sort.SliceStable(r.Feedback, func(i, j int) bool {
			a, b := r.Feedback[i], r.Feedback[j]
			if ra, rb := review.SeverityRank(a.Severity), review.SeverityRank(b.Severity); ra != rb {
				return ra > rb
			}
			return a.Line < b.Line
		})
		out = append(out, fileEntry{Name: name, Language: langs[name], Review: r})
	}
	return out
}

func location(name string, line int) string {
	if line <= 0 {
		return name
	}
	return fmt.Sprintf("%s:%d", name, line)
}
