package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold removes combining marks and lowercases s, so "Giải thích" and
// "giai thich" compare equal. Vietnamese đ is folded to d as well. Kana
// voicing marks are combining too, so Fold is meant for Latin text.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
	return strings.ToLower(out)
}

var structureDrop = strings.NewReplacer(
	"~", "", "～", "", "〜", "",
	"(", "", ")", "", "（", "", "）", "",
)

// StructureKey is the form used to detect duplicate structures: NFKC,
// without tildes, parentheses or whitespace, lowercased.
func StructureKey(s string) string {
	s = structureDrop.Replace(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(s)
}
