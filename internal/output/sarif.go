package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/critic/internal/review"
)

// SARIFWriter outputs feedback in SARIF v2.1.0 format. Each category is one
// rule.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, item review.HistoryItem) error {
	sarif := buildSARIF(item)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
	Fixes     []sarifFix      `json:"fixes,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

func buildSARIF(item review.HistoryItem) sarifLog {
	var rules []sarifRule
	seen := make(map[review.Category]bool)
	results := []sarifResult{}

	for _, e := range entries(item) {
		for _, f := range e.Review.Feedback {
			if !seen[f.Category] {
				seen[f.Category] = true
				rules = append(rules, sarifRule{
					ID:               ruleID(f.Category),
					Name:             string(f.Category),
					ShortDescription: sarifMessage{Text: string(f.Category) + " feedback"},
				})
			}

			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: e.Name},
				},
			}
			if f.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line}
			}

			result := sarifResult{
				RuleID:    ruleID(f.Category),
				Level:     severityToLevel(f.Severity),
				Message:   sarifMessage{Text: f.Description},
				Locations: []sarifLocation{loc},
			}
			if f.Suggestion != "" {
				result.Fixes = append(result.Fixes, sarifFix{
					Description: sarifMessage{Text: f.Suggestion},
				})
			}
			results = append(results, result)
		}
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "critic",
						Version:        ToolVersion,
						InformationURI: "https://github.com/dshills/critic",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}
}

// severityToLevel maps feedback severity to SARIF level.
func severityToLevel(s review.Severity) string {
	switch s {
	case review.SeverityCritical, review.SeverityHigh:
		return "error"
	case review.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

// ruleID derives a stable rule ID from a category.
func ruleID(c review.Category) string {
	return "critic/" + strings.ReplaceAll(strings.ToLower(string(c)), " ", "-")
}
