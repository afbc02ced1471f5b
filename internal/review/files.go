package review

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoFiles is returned when a batch is submitted without any files.
var ErrNoFiles = errors.New("no files to review")

// DuplicateFileError reports two files in one batch sharing a name.
type DuplicateFileError struct {
	Name string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("duplicate file name in batch: %s", e.Name)
}

// ValidateFiles checks that a batch is non-empty and that file names are
// unique, since results are keyed by name.
func ValidateFiles(files []CodeFile) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if f.Name == "" {
			return errors.New("file with empty name in batch")
		}
		if seen[f.Name] {
			return &DuplicateFileError{Name: f.Name}
		}
		seen[f.Name] = true
	}
	return nil
}

// Language is a selectable language with its display label.
type Language struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SupportedLanguages lists the languages a file may be tagged with.
var SupportedLanguages = []Language{
	{Value: "javascript", Label: "JavaScript"},
	{Value: "typescript", Label: "TypeScript"},
	{Value: "python", Label: "Python"},
	{Value: "java", Label: "Java"},
	{Value: "csharp", Label: "C#"},
	{Value: "go", Label: "Go"},
	{Value: "rust", Label: "Rust"},
	{Value: "ruby", Label: "Ruby"},
	{Value: "html", Label: "HTML"},
	{Value: "css", Label: "CSS"},
	{Value: "shell", Label: "Shell"},
	{Value: "sql", Label: "SQL"},
	{Value: "json", Label: "JSON"},
	{Value: "markdown", Label: "Markdown"},
	{Value: "plaintext", Label: "Plain Text"},
}

// IsSupportedLanguage reports whether value names a supported language.
func IsSupportedLanguage(value string) bool {
	for _, l := range SupportedLanguages {
		if l.Value == value {
			return true
		}
	}
	return false
}

// LanguageLabel returns the display label for a language value, or the value
// itself when unknown.
func LanguageLabel(value string) string {
	for _, l := range SupportedLanguages {
		if l.Value == value {
			return l.Label
		}
	}
	return value
}

// SortedFileNames returns the keys of a batch's file reviews in the order of
// files, followed by any names not present in files in lexical order.
func SortedFileNames(files []CodeFile, b BatchCodeReview) []string {
	names := make([]string, 0, len(b.FileReviews))
	seen := make(map[string]bool, len(b.FileReviews))
	for _, f := range files {
		if _, ok := b.FileReviews[f.Name]; ok && !seen[f.Name] {
			names = append(names, f.Name)
			seen[f.Name] = true
		}
	}
	var rest []string
	for name := range b.FileReviews {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
