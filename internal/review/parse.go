package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a backend response that does not fit the expected shape.
var ErrMalformed = errors.New("malformed review response")

// rawFeedback is the JSON structure returned by the model.
type rawFeedback struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Line        *int   `json:"line"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

type rawReview struct {
	OverallSummary *string       `json:"overallSummary"`
	Feedback       []rawFeedback `json:"feedback"`
}

// ParseCodeReview decodes a model response into a CodeReview. Markdown code
// fences are stripped first. Any deviation from the expected shape rejects
// the whole response with an error wrapping ErrMalformed.
func ParseCodeReview(content string) (CodeReview, error) {
	content = StripCodeFence(content)

	var raw rawReview
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return CodeReview{}, fmt.Errorf("%w: invalid JSON object: %v", ErrMalformed, err)
	}
	if raw.OverallSummary == nil {
		return CodeReview{}, fmt.Errorf("%w: missing overallSummary", ErrMalformed)
	}

	out := CodeReview{
		OverallSummary: strings.TrimSpace(*raw.OverallSummary),
		Feedback:       make([]ReviewFeedback, 0, len(raw.Feedback)),
	}
	for i, r := range raw.Feedback {
		cat, ok := ParseCategory(r.Category)
		if !ok {
			return CodeReview{}, fmt.Errorf("%w: feedback %d: unknown category %q", ErrMalformed, i, r.Category)
		}
		sev, ok := ParseSeverity(r.Severity)
		if !ok {
			return CodeReview{}, fmt.Errorf("%w: feedback %d: unknown severity %q", ErrMalformed, i, r.Severity)
		}
		if r.Line == nil || *r.Line < 0 {
			return CodeReview{}, fmt.Errorf("%w: feedback %d: line must be a non-negative integer", ErrMalformed, i)
		}
		if strings.TrimSpace(r.Description) == "" {
			return CodeReview{}, fmt.Errorf("%w: feedback %d: empty description", ErrMalformed, i)
		}
		out.Feedback = append(out.Feedback, ReviewFeedback{
			Category:    cat,
			Severity:    sev,
			Line:        *r.Line,
			Description: strings.TrimSpace(r.Description),
			Suggestion:  strings.TrimSpace(r.Suggestion),
		})
	}
	return out, nil
}

// StripCodeFence removes a surrounding markdown code fence, if present.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
