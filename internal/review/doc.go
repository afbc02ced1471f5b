// Package review contains the core data model for AI code review.
//
// It defines CodeFile, ReviewFeedback, CodeReview, BatchCodeReview and
// HistoryItem together with the Severity and Category enumerations, and the
// deep-copy helpers used when a batch result is handed to both the history
// store and the chat manager.
//
// ParseCodeReview turns a model response into a CodeReview. Responses are
// never partially trusted: an unknown category, a missing summary, or a
// negative line number rejects the whole response with ErrMalformed.
//
// The prompt builders (prompt.go) are shared by every backend. Guidelines
// packs (guidelines.go) let callers declare focus areas and required checks
// that are appended to every review prompt.
package review
