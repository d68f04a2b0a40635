// Package textsim provides name normalization and similarity scoring for
// Chinese administrative division names.
//
// Names from two independently maintained catalogs usually differ only by an
// administrative suffix ("福建" vs "福建省") or by a shortened colloquial form
// ("恩施" vs "恩施土家族苗族自治州"). Normalize removes that suffix noise so the
// two spellings compare equal, and Similarity scores what remains.
package textsim

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// minStemRunes is the shortest stem a suffix may be stripped down to.
// "和县" stays "和县" rather than collapsing to a single character.
const minStemRunes = 2

// ethnicGroups lists ethnic designations that precede 自治州/自治县/自治区.
// Most carry 族; a few (哈萨克, 维吾尔, 柯尔克孜) are written without it.
var ethnicGroups = []string{
	"土家族", "朝鲜族", "哈尼族", "景颇族", "傈僳族", "布依族", "蒙古族", "仫佬族",
	"毛南族", "仡佬族", "纳西族", "拉祜族", "撒拉族", "东乡族", "保安族", "裕固族",
	"达斡尔族", "鄂温克族", "鄂伦春族", "锡伯族", "塔吉克族",
	"苗族", "藏族", "羌族", "彝族", "壮族", "回族", "傣族", "白族", "侗族", "黎族",
	"瑶族", "满族", "畲族", "水族", "佤族", "土族",
	"哈萨克", "维吾尔", "柯尔克孜",
}

// suffixRule removes one administrative suffix from the tail of a name.
type suffixRule struct {
	pattern *regexp.Regexp
	literal string
}

func (r suffixRule) strip(s string) (string, bool) {
	if r.pattern != nil {
		loc := r.pattern.FindStringIndex(s)
		if loc == nil {
			return s, false
		}
		return s[:loc[0]], true
	}
	if strings.HasSuffix(s, r.literal) {
		return strings.TrimSuffix(s, r.literal), true
	}
	return s, false
}

// suffixRules is ordered most specific first so that compound suffixes are
// removed whole: "延边朝鲜族自治州" becomes "延边", never "延边朝鲜族自治".
var suffixRules = []suffixRule{
	{pattern: regexp.MustCompile(`(?:` + strings.Join(ethnicGroups, "|") + `)*自治(?:州|县|旗)$`)},
	{pattern: regexp.MustCompile(`(?:` + strings.Join(ethnicGroups, "|") + `)*自治区$`)},
	{literal: "特别行政区"},
	{literal: "地区"},
	{literal: "省"},
	{literal: "市"},
	{literal: "区"},
	{literal: "县"},
	{literal: "镇"},
}

// Normalize strips administrative suffixes from name.
//
// Full-width ASCII is folded to half-width first, then suffixes are removed
// repeatedly until none applies without leaving a stem shorter than two runes.
// Stripping to a fixed point keeps Normalize idempotent.
func Normalize(name string) string {
	s := strings.TrimSpace(width.Fold.String(name))
	for {
		stripped, ok := stripOnce(s)
		if !ok {
			return s
		}
		s = stripped
	}
}

func stripOnce(s string) (string, bool) {
	for _, rule := range suffixRules {
		stem, ok := rule.strip(s)
		if !ok {
			continue
		}
		stem = strings.TrimSpace(stem)
		if utf8.RuneCountInString(stem) < minStemRunes {
			continue
		}
		return stem, true
	}
	return s, false
}

// defaultMaxEntries bounds the memo so that a stream of unique garbage names
// cannot grow it without limit. Real batches reuse a few thousand names.
const defaultMaxEntries = 200_000

// Normalizer memoizes Normalize. It is safe for concurrent use and meant to
// be shared for the process lifetime.
type Normalizer struct {
	mu         sync.RWMutex
	cache      map[string]string
	maxEntries int
}

// NewNormalizer creates an empty memoizing normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		cache:      make(map[string]string),
		maxEntries: defaultMaxEntries,
	}
}

// Normalize returns the cached normalized form of name, computing it on first use.
func (n *Normalizer) Normalize(name string) string {
	if name == "" {
		return ""
	}

	n.mu.RLock()
	v, ok := n.cache[name]
	n.mu.RUnlock()
	if ok {
		return v
	}

	v = Normalize(name)

	n.mu.Lock()
	if len(n.cache) < n.maxEntries {
		n.cache[name] = v
	}
	n.mu.Unlock()
	return v
}

// Similarity scores a and b using the memoized normalization.
func (n *Normalizer) Similarity(a, b string) float64 {
	return similarity(a, b, n.Normalize)
}

// Len returns the number of memoized names.
func (n *Normalizer) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.cache)
}
