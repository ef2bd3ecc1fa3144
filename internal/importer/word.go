package importer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
	"golang.org/x/text/unicode/norm"
)

type section int

const (
	sectionNone section = iota
	sectionStructure
	sectionMeaning
	sectionExplanation
	sectionExamples
	sectionNote
)

var sectionLabels = map[section]string{
	sectionMeaning:     "Ý nghĩa:",
	sectionExplanation: "Giải thích:",
	sectionExamples:    "Ví dụ:",
	sectionNote:        "Chú ý:",
}

// Header patterns run against the folded line, so "Giải thích", "Giai thich"
// and "GIẢI THÍCH" all match. English headers are accepted too. Text may
// follow a header on the same line only after a colon.
var headerPatterns = []struct {
	sec section
	re  *regexp.Regexp
}{
	{sectionStructure, regexp.MustCompile(`^(cau\s*truc|structure)\s*(?:[:：]\s*|$)`)},
	{sectionMeaning, regexp.MustCompile(`^(y\s*nghia|meaning)\s*(?:[:：]\s*|$)`)},
	{sectionExplanation, regexp.MustCompile(`^(giai\s*thich|explanation)\s*(?:[:：]\s*|$)`)},
	{sectionExamples, regexp.MustCompile(`^(vi\s*(du|vu)|examples?)\s*(?:[:：]\s*|$)`)},
	{sectionNote, regexp.MustCompile(`^(chu\s*y|notes?)\s*(?:[:：]\s*|$)`)},
}

// matchHeader reports the section a line opens and the text following the
// header on the same line.
func matchHeader(line string) (section, string) {
	orig := []rune(norm.NFC.String(line))
	folded := make([]rune, len(orig))
	for i, r := range orig {
		f := []rune(textmatch.Fold(string(r)))
		if len(f) == 0 {
			folded[i] = r
			continue
		}
		folded[i] = f[0]
	}
	fs := string(folded)
	for _, p := range headerPatterns {
		loc := p.re.FindStringIndex(fs)
		if loc == nil {
			continue
		}
		end := utf8.RuneCountInString(fs[:loc[1]])
		return p.sec, strings.TrimSpace(string(orig[end:]))
	}
	return sectionNone, ""
}

var (
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	blockSepRe  = regexp.MustCompile(`=+\n?`)
	titleRe     = regexp.MustCompile(`^\d+[.．]?\s*[～〜~]?(.*?)[～〜~]?\s*[:：]\s*(.*)$`)
)

// normalizeHeaders drops "Cấu trúc:" prefixes and rewrites section headers
// to their canonical spelling.
func normalizeHeaders(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		sec, rest := matchHeader(strings.TrimSpace(line))
		switch sec {
		case sectionNone:
			continue
		case sectionStructure:
			lines[i] = rest
		default:
			lines[i] = strings.TrimSpace(sectionLabels[sec] + " " + rest)
		}
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRunsRe.ReplaceAllString(text, "\n\n"))
}

// ParseWordText reads grammar blocks separated by lines of "=". Each block
// opens with a numbered title "1. ～ことにする：meaning" followed by
// optional explanation, example and note sections. Lines before the first
// section header belong to the explanation.
func ParseWordText(text string) ([]models.GrammarEntry, []Warning) {
	entries := []models.GrammarEntry{}
	warnings := []Warning{}

	blocks := blockSepRe.Split(normalizeHeaders(text), -1)
	index := 0
	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		index++
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}

		m := titleRe.FindStringSubmatch(lines[0])
		if m == nil || strings.TrimFunc(m[1], isTitleTrim) == "" || strings.TrimSpace(m[2]) == "" {
			warnings = append(warnings, Warning{Block: index, Line: lines[0], Reason: "unrecognised title"})
			continue
		}

		entry := models.GrammarEntry{
			ID:        strconv.Itoa(index),
			Structure: strings.TrimFunc(m[1], isTitleTrim),
			Meaning:   strings.TrimSpace(m[2]),
			Examples:  []models.Example{},
		}

		current := sectionNone
		var buf []string
		flush := func() {
			if current == sectionNone || len(buf) == 0 {
				return
			}
			content := strings.TrimSpace(strings.Join(buf, "\n"))
			buf = nil
			switch current {
			case sectionExamples:
				entry.Examples = parseExamples(preprocessExamples(content))
			case sectionExplanation:
				entry.Explanation = content
			case sectionNote:
				entry.Note = content
			}
		}

		for _, line := range lines[1:] {
			sec, rest := matchHeader(line)
			if sec == sectionMeaning {
				// Meaning comes from the title; keep the line as explanation text.
				sec = sectionNone
			}
			if sec != sectionNone {
				flush()
				current = sec
				if rest != "" {
					buf = append(buf, rest)
				}
				continue
			}
			if current == sectionNone {
				current = sectionExplanation
			}
			buf = append(buf, line)
		}
		flush()

		entries = append(entries, entry)
	}
	return entries, warnings
}

func isTitleTrim(r rune) bool {
	return unicode.IsSpace(r) || r == '～' || r == '〜' || r == '~'
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var (
	jpThenLatinRe = regexp.MustCompile(`([一-龯ぁ-ゔァ-ヴー々〆〤。！？])\s*([A-Za-zÀ-ỹ])`)
	japaneseRe    = regexp.MustCompile(`[\x{3000}-\x{303F}\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}]`)
)

// preprocessExamples breaks "日本語。Bản dịch" onto two lines.
func preprocessExamples(text string) string {
	return jpThenLatinRe.ReplaceAllString(text, "$1\n$2")
}

// parseExamples pairs each Japanese line with the line after it. A Japanese
// line followed by another Japanese line becomes an example without a
// translation; stray non-Japanese lines are dropped.
func parseExamples(content string) []models.Example {
	out := []models.Example{}
	var pending *models.Example
	for _, line := range nonEmptyLines(content) {
		if japaneseRe.MatchString(line) {
			if pending != nil {
				out = append(out, *pending)
			}
			pending = &models.Example{JP: line}
			continue
		}
		if pending != nil {
			pending.VI = line
			out = append(out, *pending)
			pending = nil
		}
	}
	if pending != nil {
		out = append(out, *pending)
	}
	return out
}
