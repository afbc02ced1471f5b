package backend

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// chromaLanguages maps chroma lexer names onto supported language values.
var chromaLanguages = map[string]string{
	"go":         "go",
	"python":     "python",
	"python 2":   "python",
	"javascript": "javascript",
	"typescript": "typescript",
	"java":       "java",
	"c#":         "csharp",
	"rust":       "rust",
	"ruby":       "ruby",
	"html":       "html",
	"css":        "css",
	"bash":       "shell",
	"sql":        "sql",
	"json":       "json",
	"markdown":   "markdown",
}

// detectWithLexer guesses a language from chroma's content analysers. It
// needs no network call, so backends that are slow to answer use it.
func detectWithLexer(code string) (string, bool) {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return "", false
	}
	lang, ok := chromaLanguages[strings.ToLower(lexer.Config().Name)]
	return lang, ok
}
