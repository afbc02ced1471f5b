package review

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity represents the severity level of a feedback item.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a case-insensitive severity name onto a Severity.
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range Severities {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	t, ok := ParseSeverity(threshold)
	if !ok {
		return false
	}
	return SeverityRank(s) >= SeverityRank(t)
}

// Category represents the type of feedback.
type Category string

const (
	CategoryBug             Category = "Bug"
	CategoryPerformance     Category = "Performance"
	CategoryStyle           Category = "Style"
	CategoryBestPractice    Category = "Best Practice"
	CategorySecurity        Category = "Security"
	CategoryMaintainability Category = "Maintainability"
)

// Categories lists every feedback category.
var Categories = []Category{
	CategoryBug, CategoryPerformance, CategoryStyle,
	CategoryBestPractice, CategorySecurity, CategoryMaintainability,
}

// ParseCategory maps a category name onto a Category, ignoring case and
// treating spaces, underscores, and hyphens as equivalent.
func ParseCategory(s string) (Category, bool) {
	norm := categoryKey(s)
	for _, c := range Categories {
		if categoryKey(string(c)) == norm {
			return c, true
		}
	}
	return "", false
}

func categoryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// CodeFile is one unit of review input. Name is unique within a batch.
type CodeFile struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ReviewFeedback is a single observation about a file. Line 0 means the
// feedback applies to the whole file.
type ReviewFeedback struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Line        int      `json:"line"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// CodeReview is the review of a single file.
type CodeReview struct {
	OverallSummary string           `json:"overallSummary"`
	Feedback       []ReviewFeedback `json:"feedback"`
}

// Clone returns a deep copy of r.
func (r CodeReview) Clone() CodeReview {
	out := CodeReview{OverallSummary: r.OverallSummary}
	if r.Feedback != nil {
		out.Feedback = make([]ReviewFeedback, len(r.Feedback))
		copy(out.Feedback, r.Feedback)
	}
	return out
}

// BatchCodeReview aggregates the per-file reviews of a batch, keyed by file
// name, with one overall summary.
type BatchCodeReview struct {
	OverallSummary string                `json:"overallSummary"`
	FileReviews    map[string]CodeReview `json:"fileReviews"`
}

// Clone returns a deep copy of b.
func (b BatchCodeReview) Clone() BatchCodeReview {
	out := BatchCodeReview{OverallSummary: b.OverallSummary}
	if b.FileReviews != nil {
		out.FileReviews = make(map[string]CodeReview, len(b.FileReviews))
		for name, r := range b.FileReviews {
			out.FileReviews[name] = r.Clone()
		}
	}
	return out
}

// TimestampLayout is the ISO-8601 layout used for history timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// HistoryItem is one persisted batch review together with its inputs.
type HistoryItem struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Model     string          `json:"model,omitempty"`
	Files     []CodeFile      `json:"files"`
	Review    BatchCodeReview `json:"review"`
}

// Clone returns a deep copy of h.
func (h HistoryItem) Clone() HistoryItem {
	out := h
	out.Files = CloneFiles(h.Files)
	out.Review = h.Review.Clone()
	return out
}

// Time parses the item's timestamp.
func (h HistoryItem) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, h.Timestamp)
}

// Validate checks that a decoded history item has the expected shape.
func (h HistoryItem) Validate() error {
	if h.ID == "" {
		return errors.New("history item: missing id")
	}
	if _, err := h.Time(); err != nil {
		return fmt.Errorf("history item %s: bad timestamp: %w", h.ID, err)
	}
	if len(h.Files) == 0 {
		return fmt.Errorf("history item %s: no files", h.ID)
	}
	if h.Review.FileReviews == nil {
		return fmt.Errorf("history item %s: missing file reviews", h.ID)
	}
	names := make(map[string]bool, len(h.Files))
	for _, f := range h.Files {
		names[f.Name] = true
	}
	for name, r := range h.Review.FileReviews {
		if !names[name] {
			return fmt.Errorf("history item %s: review for unknown file %q", h.ID, name)
		}
		for i, fb := range r.Feedback {
			if _, ok := ParseCategory(string(fb.Category)); !ok {
				return fmt.Errorf("history item %s: %s feedback %d: unknown category %q", h.ID, name, i, fb.Category)
			}
			if _, ok := ParseSeverity(string(fb.Severity)); !ok {
				return fmt.Errorf("history item %s: %s feedback %d: unknown severity %q", h.ID, name, i, fb.Severity)
			}
			if fb.Line < 0 {
				return fmt.Errorf("history item %s: %s feedback %d: negative line", h.ID, name, i)
			}
		}
	}
	return nil
}

// CloneFiles returns a copy of files.
func CloneFiles(files []CodeFile) []CodeFile {
	if files == nil {
		return nil
	}
	out := make([]CodeFile, len(files))
	copy(out, files)
	return out
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one entry of a chat transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the number of counted feedback items.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Summary provides an overview of a batch's feedback.
type Summary struct {
	Files           int            `json:"files"`
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
}

// ComputeSummary calculates the summary over every file review in a batch.
func ComputeSummary(b BatchCodeReview) Summary {
	s := Summary{Files: len(b.FileReviews)}
	for _, r := range b.FileReviews {
		for _, f := range r.Feedback {
			switch f.Severity {
			case SeverityCritical:
				s.Counts.Critical++
			case SeverityHigh:
				s.Counts.High++
			case SeverityMedium:
				s.Counts.Medium++
			case SeverityLow:
				s.Counts.Low++
			case SeverityInfo:
				s.Counts.Info++
			}
			if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
				s.HighestSeverity = f.Severity
			}
		}
	}
	return s
}
