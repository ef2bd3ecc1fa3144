// Package textmatch decides whether typed answers match a grammar structure.
package textmatch

import (
	"math/rand"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC compatibility folding, trims and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

var alternateRe = regexp.MustCompile(`(.+?)\s*[(（]([^）)]*)`)

var tildeReplacer = strings.NewReplacer("~", "", "～", "", "〜", "")

// ValidAnswers returns the accepted normalized answers for structure. A
// trailing parenthetical such as "A（B）" adds both A and B, with tilde
// markers removed from B.
func ValidAnswers(structure string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(Normalize(structure))
	if m := alternateRe.FindStringSubmatch(strings.TrimSpace(structure)); m != nil {
		add(Normalize(m[1]))
		add(Normalize(tildeReplacer.Replace(m[2])))
	}
	return out
}

var spaceRe = regexp.MustCompile(`\s+`)

// StripDecoration keeps only letters, digits and single spaces.
func StripDecoration(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(sb.String(), " "))
}

// SimilarityRatio returns the longest common subsequence of a and b divided
// by the longer length. It is 0 when either string is empty.
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return float64(prev[len(rb)]) / float64(longest)
}

// Verdict is the outcome of checking one answer.
type Verdict struct {
	Accepted   bool    `json:"accepted"`
	Similarity float64 `json:"similarity"`
}

// Match checks input against structure. Similarity is informational only.
func Match(input, structure string) Verdict {
	in := Normalize(input)
	answers := ValidAnswers(structure)
	for _, a := range answers {
		if in == a {
			return Verdict{Accepted: true, Similarity: 1}
		}
	}

	v := Verdict{}
	for _, a := range answers {
		if s := SimilarityRatio(in, a); s > v.Similarity {
			v.Similarity = s
		}
	}
	stripped := StripDecoration(in)
	if stripped == "" {
		return v
	}
	for _, a := range answers {
		if stripped == StripDecoration(a) {
			v.Accepted = true
			break
		}
	}
	return v
}

// Hint appends one character of answer that input does not contain yet,
// picked at random. Input is returned unchanged when nothing is missing.
func Hint(input, answer string, rnd *rand.Rand) string {
	var missing []rune
	for _, r := range answer {
		if !strings.ContainsRune(input, r) {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return input
	}
	return input + string(missing[rnd.Intn(len(missing))])
}
