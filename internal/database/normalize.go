package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Nguyễn" -> "Nguyen").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	// đ/Đ are distinct letters, not a base letter plus a combining mark.
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(result)
}

// NormalizeName normalizes a person name for search (lowercase, no diacritics, single spaces).
func NormalizeName(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeToken normalizes an enum value arriving at the boundary
// ("On-Time", " on time ", "ON_TIME" all become "on_time").
func NormalizeToken(s string) string {
	s = strings.ToLower(RemoveDiacritics(strings.TrimSpace(s)))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s
}
