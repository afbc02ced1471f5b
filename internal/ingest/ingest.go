package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/review"
	"github.com/dshills/critic/internal/sanitize"
)

// MaxFileBytes is the default per-file size limit.
const MaxFileBytes = 1 << 20

// maxNameLength caps pasted buffer names, in runes.
const maxNameLength = 255

// Extensions maps accepted file extensions to language values.
var Extensions = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".py":   "python",
	".java": "java",
	".cs":   "csharp",
	".go":   "go",
	".rs":   "rust",
	".rb":   "ruby",
	".html": "html",
	".css":  "css",
	".sh":   "shell",
	".sql":  "sql",
	".json": "json",
	".md":   "markdown",
	".txt":  "plaintext",
}

// skipDirs are never descended into during expansion.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// UnsupportedFileError rejects a file whose extension is not accepted.
type UnsupportedFileError struct {
	Name string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Name)
}

// FileTooLargeError rejects a file over the size limit.
type FileTooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %s is too large (%d bytes, limit %d)", e.Name, e.Size, e.Limit)
}

// LanguageFor returns the language for a file name by extension.
func LanguageFor(name string) (string, bool) {
	lang, ok := Extensions[strings.ToLower(filepath.Ext(name))]
	return lang, ok
}

// IsSupported reports whether name has an accepted extension.
func IsSupported(name string) bool {
	_, ok := LanguageFor(name)
	return ok
}

// Options controls how files are gathered.
type Options struct {
	MaxFileBytes  int64
	Include       []string
	Exclude       []string
	RedactSecrets bool
	RedactPaths   []string
	Logger        *log.Logger
}

// Loader reads files for review.
type Loader struct {
	opts Options
}

// NewLoader creates a Loader. A zero MaxFileBytes means MaxFileBytes.
func NewLoader(opts Options) *Loader {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = MaxFileBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Loader{opts: opts}
}

// Load reads every path in order. Files are validated strictly; directories
// are expanded and filtered. Duplicate names are dropped after the first.
func (l *Loader) Load(paths []string) ([]review.CodeFile, error) {
	var files []review.CodeFile
	seen := make(map[string]bool)
	add := func(f review.CodeFile) {
		if seen[f.Name] {
			return
		}
		seen[f.Name] = true
		files = append(files, f)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			f, err := l.ReadFile(p)
			if err != nil {
				return nil, err
			}
			add(f)
			continue
		}

		expanded, err := l.expand(p)
		if err != nil {
			return nil, err
		}
		for _, f := range expanded {
			add(f)
		}
	}
	if len(files) == 0 {
		return nil, review.ErrNoFiles
	}
	return files, nil
}

// ReadFile reads a single file, rejecting unsupported types and files over
// the size limit.
func (l *Loader) ReadFile(p string) (review.CodeFile, error) {
	name := displayName(p)
	lang, ok := LanguageFor(name)
	if !ok {
		return review.CodeFile{}, &UnsupportedFileError{Name: name}
	}
	info, err := os.Stat(p)
	if err != nil {
		return review.CodeFile{}, fmt.Errorf("reading %s: %w", name, err)
	}
	if info.Size() > l.opts.MaxFileBytes {
		return review.CodeFile{}, &FileTooLargeError{Name: name, Size: info.Size(), Limit: l.opts.MaxFileBytes}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return review.CodeFile{}, fmt.Errorf("reading %s: %w", name, err)
	}
	return review.CodeFile{Name: name, Language: lang, Content: l.redact(string(data), name)}, nil
}

// Paste wraps an in-memory buffer such as stdin. The name is sanitized, and
// an empty language is inferred from it, falling back to plain text.
func (l *Loader) Paste(name, content, language string) (review.CodeFile, error) {
	name = strings.TrimSpace(sanitize.Text(name, maxNameLength))
	if name == "" {
		name = "snippet"
	}
	if size := int64(len(content)); size > l.opts.MaxFileBytes {
		return review.CodeFile{}, &FileTooLargeError{Name: name, Size: size, Limit: l.opts.MaxFileBytes}
	}
	if strings.TrimSpace(content) == "" {
		return review.CodeFile{}, fmt.Errorf("%s: no content to review", name)
	}
	if language == "" {
		if lang, ok := LanguageFor(name); ok {
			language = lang
		} else {
			language = "plaintext"
		}
	}
	if !review.IsSupportedLanguage(language) {
		return review.CodeFile{}, fmt.Errorf("unsupported language: %s", language)
	}
	return review.CodeFile{Name: name, Language: language, Content: l.redact(content, name)}, nil
}

func (l *Loader) expand(root string) ([]review.CodeFile, error) {
	var files []review.CodeFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		name := displayName(p)
		if !IsSupported(name) || !l.selected(name) {
			return nil
		}
		f, err := l.ReadFile(p)
		var tooLarge *FileTooLargeError
		if errors.As(err, &tooLarge) {
			l.opts.Logger.Warn("skipping large file", "file", name, "bytes", tooLarge.Size)
			return nil
		}
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (l *Loader) selected(name string) bool {
	if len(l.opts.Include) > 0 && !MatchesAny(name, l.opts.Include) {
		return false
	}
	return !MatchesAny(name, l.opts.Exclude)
}

func (l *Loader) redact(content, name string) string {
	if !l.opts.RedactSecrets {
		return content
	}
	return sanitize.Content(content, name, l.opts.RedactPaths)
}

// MatchesAny returns true if the path matches any of the given glob
// patterns. Patterns without a slash also match the base name.
func MatchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, path.Base(name)); ok {
				return true
			}
		}
	}
	return false
}

func displayName(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
