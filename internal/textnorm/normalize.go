// Package textnorm canonicalizes titles and keywords so that matching is robust
// to typographic variation across bibliographic sources.
//
// Normalize keeps hyphens; MatchKey additionally folds hyphens into spaces, so
// "Boundary–layer", "boundary-layer" and "boundary layer" compare equal. Both
// sides of every comparison go through the same function.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// dashReplacer maps Unicode dash and hyphen variants to an ASCII hyphen.
var dashReplacer = strings.NewReplacer(
	"\u2010", "-", // hyphen
	"\u2011", "-", // non-breaking hyphen
	"\u2012", "-", // figure dash
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
	"\u2015", "-", // horizontal bar
	"\u2212", "-", // minus sign
	"\u2043", "-", // hyphen bullet
	"\uFE58", "-", // small em dash
	"\uFE63", "-", // small hyphen-minus
	"\uFF0D", "-", // fullwidth hyphen-minus
	"\u00AD", "", // soft hyphen
	"_", " ",
	"/", " ",
)

// Normalize lower-cases s, unifies dashes and strips punctuation that carries no
// meaning for matching. Digit-dot-digit runs such as "pm2.5" survive.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = dashReplacer.Replace(s)

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		case r == '.' && i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return out
}

// MatchKey is the comparison form of s: Normalize with hyphens treated as spaces.
func MatchKey(s string) string {
	n := Normalize(s)
	if !strings.Contains(n, "-") {
		return n
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(n, "-", " ")), " ")
}

// ContainsKeyword reports whether keyword occurs in haystack after both are
// reduced to their match keys. An empty keyword never matches.
func ContainsKeyword(haystack, keyword string) bool {
	return ContainsKey(MatchKey(haystack), MatchKey(keyword))
}

// ContainsKey is ContainsKeyword for callers holding precomputed match keys.
func ContainsKey(haystackKey, keywordKey string) bool {
	if keywordKey == "" {
		return false
	}
	return strings.Contains(haystackKey, keywordKey)
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI returns the bare, lower-cased DOI.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(d, prefix) {
			d = strings.TrimSpace(strings.TrimPrefix(d, prefix))
			break
		}
	}
	return d
}

// StripMarkup removes inline HTML (e.g. <i>, <sub>) that metadata services
// embed in titles. Plain text is returned unchanged apart from trimming.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
