package segmenter

import "unicode"

func isPeriodAt(text []rune, i int) bool {
	switch text[i] {
	case '。', '．':
		return true
	case '.':
		// decimal point
		if i > 0 && i+1 < len(text) && unicode.IsDigit(text[i-1]) && unicode.IsDigit(text[i+1]) {
			return false
		}
		return true
	}
	return false
}

func isBreak(r rune) bool {
	switch r {
	case '、', '，', ',', '！', '!', '？', '?', '…', '‥':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '」', '』', '）', ')', '】', '〉', '》', '〕', '］', ']', '”', '’', '"', '\'':
		return true
	}
	return false
}

func isOpening(r rune) bool {
	switch r {
	case '「', '『', '（', '(', '【', '〈', '《', '〔', '［', '[', '“', '‘':
		return true
	}
	return false
}

func isSmallKana(r rune) bool {
	switch r {
	case 'ぁ', 'ぃ', 'ぅ', 'ぇ', 'ぉ', 'っ', 'ゃ', 'ゅ', 'ょ', 'ゎ',
		'ァ', 'ィ', 'ゥ', 'ェ', 'ォ', 'ッ', 'ャ', 'ュ', 'ョ', 'ヮ', 'ヵ', 'ヶ':
		return true
	}
	return false
}

type script int

const (
	scriptOther script = iota
	scriptHiragana
	scriptKatakana
	scriptKanji
	scriptLatin
)

func scriptOf(r rune) script {
	switch {
	case unicode.Is(unicode.Hiragana, r):
		return scriptHiragana
	case unicode.Is(unicode.Katakana, r) || r == 'ー':
		return scriptKatakana
	case unicode.Is(unicode.Han, r) || r == '々':
		return scriptKanji
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return scriptLatin
	}
	return scriptOther
}

func isHiragana(r rune) bool {
	return unicode.Is(unicode.Hiragana, r)
}
