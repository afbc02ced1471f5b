package sanitize

import "regexp"

// DefaultMaxLength is the rune budget applied when Text is given no limit.
const DefaultMaxLength = 10000

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Text removes control characters from input and truncates the result to
// maxLen runes. A non-positive maxLen means DefaultMaxLength.
func Text(input string, maxLen int) string {
	if input == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	clean := controlChars.ReplaceAllString(input, "")
	n := 0
	for i := range clean {
		if n == maxLen {
			return clean[:i]
		}
		n++
	}
	return clean
}
