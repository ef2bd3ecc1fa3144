package segmenter

import (
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/vytor/bunpo/internal/logger"
)

// BoundaryFinder reports rune offsets right after grammatical particles,
// where a sentence reads naturally when cut.
type BoundaryFinder interface {
	Boundaries(text []rune) []int
}

// particles is ordered longest first so longer forms win at the same offset.
var particles = [][]rune{
	[]rune("から"), []rune("まで"), []rune("より"), []rune("けど"),
	[]rune("ので"), []rune("のに"), []rune("たら"),
	[]rune("は"), []rune("が"), []rune("を"), []rune("に"), []rune("で"),
	[]rune("へ"), []rune("と"), []rune("も"), []rune("の"), []rune("や"),
}

// ParticleFinder matches a fixed particle list. Single-kana particles only
// count when they follow a non-hiragana rune, which filters most matches
// inside inflected words.
type ParticleFinder struct{}

func (ParticleFinder) Boundaries(text []rune) []int {
	var out []int
	for i := 1; i < len(text); i++ {
		for _, p := range particles {
			end := i + len(p)
			if end >= len(text) || !hasPrefixAt(text, i, p) {
				continue
			}
			if len(p) == 1 && isHiragana(text[i-1]) {
				continue
			}
			// copula です
			if p[0] == 'で' && text[end] == 'す' {
				continue
			}
			out = append(out, end)
			break
		}
	}
	return out
}

func hasPrefixAt(text []rune, i int, p []rune) bool {
	if i+len(p) > len(text) {
		return false
	}
	for k, r := range p {
		if text[i+k] != r {
			return false
		}
	}
	return true
}

// KagomeFinder cuts after particles (助詞) and conjunctions (接続詞) found by
// morphological analysis with the IPA dictionary. The dictionary is loaded
// on first use; if that fails, ParticleFinder is used instead.
type KagomeFinder struct {
	once sync.Once
	tok  *tokenizer.Tokenizer
	err  error
}

// NewKagomeFinder returns a finder whose tokenizer is built lazily.
func NewKagomeFinder() *KagomeFinder {
	return &KagomeFinder{}
}

// Warm loads the dictionary ahead of the first request.
func (f *KagomeFinder) Warm() error {
	f.once.Do(func() {
		log := logger.Default().WithPrefix("segmenter")
		log.Debug("loading kagome IPA dictionary")
		f.tok, f.err = tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
		if f.err != nil {
			log.Warn("kagome tokenizer unavailable, using particle list: %v", f.err)
		}
	})
	return f.err
}

func (f *KagomeFinder) Boundaries(text []rune) []int {
	if err := f.Warm(); err != nil {
		return ParticleFinder{}.Boundaries(text)
	}

	var out []int
	pos := 0
	for _, tk := range f.tok.Tokenize(string(text)) {
		pos += utf8.RuneCountInString(tk.Surface)
		if pos >= len(text) {
			break
		}
		features := tk.POS()
		if len(features) == 0 {
			continue
		}
		if features[0] == "助詞" || features[0] == "接続詞" {
			out = append(out, pos)
		}
	}
	return out
}

// Chain asks each finder in turn and returns the first non-empty answer.
type Chain []BoundaryFinder

func (c Chain) Boundaries(text []rune) []int {
	for _, f := range c {
		if b := f.Boundaries(text); len(b) > 0 {
			sort.Ints(b)
			return b
		}
	}
	return nil
}
