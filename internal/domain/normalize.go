package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unicodeEscapeRe matches a literal backslash-u escape with four hex digits.
var unicodeEscapeRe = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// NormalizeUnicode replaces literal \uXXXX sequences with the characters they
// encode, e.g. `LJ Be\u017eigrad` -> "LJ Bežigrad". Strings without escapes
// are returned unchanged. If any sequence does not encode a valid character
// the input is returned as it was.
func NormalizeUnicode(s string) string {
	out, _ := DecodeUnicodeEscapes(s)
	return out
}

// DecodeUnicodeEscapes is NormalizeUnicode that also reports whether every
// escape in s decoded. Callers holding a logger use it to warn on bad input.
func DecodeUnicodeEscapes(s string) (string, bool) {
	if s == "" || !strings.Contains(s, `\u`) {
		return s, true
	}

	ok := true
	out := unicodeEscapeRe.ReplaceAllStringFunc(s, func(seq string) string {
		code, err := strconv.ParseUint(seq[2:], 16, 32)
		if err != nil {
			ok = false
			return seq
		}
		r := rune(code)
		// A decoded backslash would form new escapes and break idempotence.
		if r == '\\' || !utf8.ValidRune(r) {
			ok = false
			return seq
		}
		return string(r)
	})
	if !ok {
		return s, false
	}
	return out, true
}
