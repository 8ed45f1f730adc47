package unify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldText lower-cases s, strips diacritics and turns every run of
// punctuation or whitespace into one space.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// NormalizeCity returns the comparison key of a city name: the part before
// the first comma, accents and punctuation removed, whitespace collapsed and
// lower-cased. "Bogotá D.C., Cundinamarca" becomes "bogota dc".
func NormalizeCity(city string) string {
	if i := strings.IndexByte(city, ','); i >= 0 {
		city = city[:i]
	}
	// Dots inside abbreviations join the letters ("D.C." is "dc").
	city = strings.ReplaceAll(city, ".", "")
	return foldText(city)
}

// SameCity reports whether two city names refer to the same place.
func SameCity(a, b string) bool {
	na, nb := NormalizeCity(a), NormalizeCity(b)
	return na != "" && na == nb
}

// normalizeCarrier returns the comparison key of a carrier name.
func normalizeCarrier(name string) string {
	return foldText(name)
}

// digits returns only the ASCII digits of s.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTracking upper-cases a tracking number and drops spaces and
// dashes. It is the lookup key for tracking numbers everywhere.
func NormalizeTracking(tn string) string {
	tn = strings.ToUpper(strings.TrimSpace(tn))
	return strings.NewReplacer(" ", "", "-", "").Replace(tn)
}
