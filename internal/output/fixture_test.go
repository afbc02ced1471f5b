package output

import "github.com/dshills/critic/internal/review"

func sampleItem() review.HistoryItem {
	return review.HistoryItem{
		ID:        "1760700000000",
		Timestamp: "2025-10-17T12:00:00.000Z",
		Model:     "gemini",
		Files: []review.CodeFile{
			{Name: "db/query.go", Language: "go", Content: "package db\n"},
			{Name: "ui/app.ts", Language: "typescript", Content: "export {}\n"},
		},
		Review: review.BatchCodeReview{
			OverallSummary: "Two files reviewed. One injection risk.",
			FileReviews: map[string]review.CodeReview{
				"db/query.go": {
					OverallSummary: "Query building is unsafe.",
					Feedback: []review.ReviewFeedback{
						{Category: review.CategoryStyle, Severity: review.SeverityLow, Line: 3, Description: "Name is unclear"},
						{Category: review.CategorySecurity, Severity: review.SeverityCritical, Line: 42, Description: "User input is not sanitized", Suggestion: "Use parameterized queries"},
					},
				},
				"ui/app.ts": {
					OverallSummary: "Nothing to report.",
					Feedback:       []review.ReviewFeedback{},
				},
			},
		},
	}
}

func emptyItem() review.HistoryItem {
	return review.HistoryItem{
		ID:        "1",
		Timestamp: "2025-10-17T12:00:00.000Z",
		Files:     []review.CodeFile{{Name: "a.py", Language: "python", Content: "x = 1\n"}},
		Review: review.BatchCodeReview{
			OverallSummary: "Clean.",
			FileReviews:    map[string]review.CodeReview{"a.py": {OverallSummary: "Fine.", Feedback: []review.ReviewFeedback{}}},
		},
	}
}
