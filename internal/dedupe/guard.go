// Package dedupe decides whether a content candidate already exists on the
// target site, by matching normalized keywords and titles against sitemap URLs.
//
// The heuristic relies on SEO-driven sites embedding the slugified title or
// keyword in the URL. It is advisory: the engine fails open when no snapshot
// is available, preferring an occasional duplicate over blocked generation.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pressflow/internal/domain"
)

const (
	// Title tokens must be longer than this to count toward similarity.
	minTokenLen = 4
	// Share of qualifying title tokens that must appear in one URL.
	similarityThreshold = 0.7
)

type Verdict struct {
	IsDuplicate bool
	MatchedURL  string
	Reason      string
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Check reports whether the candidate title/keyword is already covered by a
// URL in the snapshot. An empty snapshot never matches.
func Check(title, keyword string, snap domain.SitemapSnapshot) Verdict {
	normKeyword := Normalize(keyword)
	tokens := qualifyingTokens(Normalize(title))

	for _, entry := range snap.Entries {
		normURL := Normalize(entry.URL)
		if normURL == "" {
			continue
		}
		if normKeyword != "" && strings.Contains(normURL, normKeyword) {
			return Verdict{IsDuplicate: true, MatchedURL: entry.URL, Reason: "keyword in URL"}
		}
		if len(tokens) == 0 {
			continue
		}
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(normURL, tok) {
				matched++
			}
		}
		if float64(matched)/float64(len(tokens)) >= similarityThreshold {
			return Verdict{IsDuplicate: true, MatchedURL: entry.URL, Reason: "similar URL"}
		}
	}
	return Verdict{}
}

// Normalize lowercases, strips diacritics, drops everything outside
// [a-z0-9 -] and collapses whitespace/hyphen runs into single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func qualifyingTokens(normTitle string) []string {
	var tokens []string
	for _, w := range strings.Fields(normTitle) {
		if len(w) > minTokenLen {
			tokens = append(tokens, w)
		}
	}
	return tokens
}
