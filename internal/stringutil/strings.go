// Package stringutil provides common string manipulation utilities.
package stringutil

import "strings"

// IsNumeric checks if a string contains only digits.
// Returns false for empty strings.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// invisible lists runes spreadsheet exports tend to carry that should never
// be part of a name or code.
var invisible = strings.NewReplacer(
	"\ufeff", "", // byte order mark
	"\u200b", "", // zero width space
	"\u200c", "",
	"\u200d", "",
	"\u00a0", " ", // no-break space
	"\u3000", " ", // ideographic space
)

// CleanCell strips invisible characters and surrounding whitespace from a
// spreadsheet cell.
func CleanCell(s string) string {
	return strings.TrimSpace(invisible.Replace(s))
}

// CleanCode normalizes a division code cell. Spreadsheet tools often turn
// "1001" into "1001.0" or prefix it with an apostrophe to force text; both
// are undone. Anything that is not a plain number is returned cleaned but
// otherwise untouched.
//
// Example:
//
//	CleanCode(" 1001.0 ") returns "1001"
//	CleanCode("'3007") returns "3007"
//	CleanCode("A12") returns "A12"
func CleanCode(s string) string {
	s = strings.TrimPrefix(CleanCell(s), "'")
	if whole, frac, ok := strings.Cut(s, "."); ok && IsNumeric(whole) && strings.Trim(frac, "0") == "" {
		return whole
	}
	return s
}
