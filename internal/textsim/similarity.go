package textsim

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a closeness score in [0, 1] for two names.
//
// Strategy, first applicable wins:
//  1. Either side empty, raw or after Normalize: 0
//  2. Identical: 1
//  3. Identical after Normalize: 1
//  4. One normalized form contains the other. Prefix containment is the
//     strongest fuzzy signal (a short colloquial name is usually a prefix of
//     the gazetted one), so it scores above general containment. Fragments
//     shorter than two runes only get a proportional score.
//  5. Levenshtein similarity of the normalized forms.
func Similarity(a, b string) float64 {
	return similarity(a, b, Normalize)
}

func similarity(a, b string, normalize func(string) string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b && strings.TrimSpace(a) != "" {
		return 1
	}

	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	shorter, longer := na, nb
	minLen, maxLen := la, lb
	if la > lb {
		shorter, longer = nb, na
		minLen, maxLen = lb, la
	}

	if strings.Contains(longer, shorter) {
		ratio := float64(minLen) / float64(maxLen)
		switch {
		case minLen >= 2 && strings.HasPrefix(longer, shorter):
			return min(0.95, ratio*0.95+0.1)
		case minLen >= 2:
			return min(0.9, ratio*0.9+0.05)
		default:
			return ratio * 0.8
		}
	}

	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(maxLen)
}
