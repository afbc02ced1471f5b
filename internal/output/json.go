package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/critic/internal/review"
)

// JSONWriter outputs the full review with a severity summary as JSON.
type JSONWriter struct{}

type jsonReport struct {
	review.HistoryItem
	Summary review.Summary `json:"summary"`
}

func (j *JSONWriter) Write(w io.Writer, item review.HistoryItem) error {
	data, err := json.MarshalIndent(jsonReport{HistoryItem: item, Summary: review.ComputeSummary(item.Review)}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
