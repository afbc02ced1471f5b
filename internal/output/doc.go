// Package output formats reviews for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output (default), styled with lipgloss
//     when the destination supports color
//   - json: the full review with a severity summary
//   - markdown: PR-comment-friendly with a collapsible section per file
//   - sarif: SARIF v2.1.0 for CI code-scanning upload
//
// Use [GetWriter] to obtain a [Writer] for a given format string, or
// [WriteReport] to write to a file path or stdout.
package output
