// Package segmenter splits Japanese sentences into shuffled tiles for
// sentence reconstruction exercises.
package segmenter

import (
	"math/rand"
	"strings"
	"sync"
	"unicode"
)

// Config tunes fragment sizes.
type Config struct {
	MinFragments   int
	MaxFragmentLen int
	MergeCap       int
	// The merge probability for one Segment call is drawn from
	// [MergeMin, MergeMin+MergeSpread).
	MergeMin    float64
	MergeSpread float64
}

// DefaultConfig returns the standard tile sizing.
func DefaultConfig() Config {
	return Config{
		MinFragments:   5,
		MaxFragmentLen: 10,
		MergeCap:       8,
		MergeMin:       0.2,
		MergeSpread:    0.2,
	}
}

// Segmenter splits sentences. It is safe for concurrent use.
type Segmenter struct {
	cfg    Config
	finder BoundaryFinder

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Segmenter. A nil finder uses ParticleFinder.
func New(cfg Config, finder BoundaryFinder, rnd *rand.Rand) *Segmenter {
	def := DefaultConfig()
	if cfg.MinFragments <= 0 {
		cfg.MinFragments = def.MinFragments
	}
	if cfg.MaxFragmentLen <= 1 {
		cfg.MaxFragmentLen = def.MaxFragmentLen
	}
	if cfg.MergeCap <= 0 {
		cfg.MergeCap = def.MergeCap
	}
	if finder == nil {
		finder = ParticleFinder{}
	}
	return &Segmenter{cfg: cfg, finder: finder, rnd: rnd}
}

type piece struct {
	text   []rune
	period bool
}

// Segment splits sentence into fragments in reading order. Whitespace is
// dropped; joining the fragments yields the sentence without whitespace.
func (s *Segmenter) Segment(sentence string) []string {
	text := []rune(StripSpace(sentence))
	if len(text) == 0 {
		return nil
	}

	pieces := splitPunctuation(text)
	pieces = s.merge(pieces)
	pieces = s.enforceMax(pieces)
	pieces = s.topUp(pieces)

	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = string(p.text)
	}
	return out
}

// Shuffle returns the fragments in random display order.
func (s *Segmenter) Shuffle(fragments []string) []string {
	out := append([]string(nil), fragments...)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(out) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Join concatenates fragments back into a sentence.
func Join(fragments []string) string {
	return strings.Join(fragments, "")
}

// StripSpace removes every whitespace rune from s.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func splitPunctuation(text []rune) []piece {
	var out []piece
	var cur []rune
	flush := func(period bool) {
		if len(cur) > 0 {
			out = append(out, piece{text: cur, period: period})
			cur = nil
		}
	}

	for i := 0; i < len(text); i++ {
		r := text[i]
		switch {
		case isPeriodAt(text, i):
			flush(false)
			cur = append(cur, r)
			for i+1 < len(text) && (isClosing(text[i+1]) || isPeriodAt(text, i+1)) {
				i++
				cur = append(cur, text[i])
			}
			flush(true)
		case isBreak(r):
			cur = append(cur, r)
			for i+1 < len(text) && (isBreak(text[i+1]) || isClosing(text[i+1])) {
				i++
				cur = append(cur, text[i])
			}
			flush(false)
		default:
			cur = append(cur, r)
		}
	}
	flush(false)
	return out
}

func (s *Segmenter) merge(pieces []piece) []piece {
	if len(pieces) < 2 {
		return pieces
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.cfg.MergeMin + s.rnd.Float64()*s.cfg.MergeSpread
	out := []piece{pieces[0]}
	for _, p := range pieces[1:] {
		last := &out[len(out)-1]
		if !last.period && !p.period &&
			len(last.text)+len(p.text) <= s.cfg.MergeCap &&
			s.rnd.Float64() < threshold {
			last.text = append(append([]rune(nil), last.text...), p.text...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Segmenter) enforceMax(pieces []piece) []piece {
	var out []piece
	var split func(p piece)
	split = func(p piece) {
		if p.period || len(p.text) <= s.cfg.MaxFragmentLen {
			out = append(out, p)
			return
		}
		at := s.splitPoint(p.text)
		split(piece{text: p.text[:at]})
		split(piece{text: p.text[at:]})
	}
	for _, p := range pieces {
		split(p)
	}
	return out
}

func (s *Segmenter) topUp(pieces []piece) []piece {
	for len(pieces) < s.cfg.MinFragments {
		// Pieces that can be cut outside brackets go first.
		best, bestOpen, bestScore := -1, false, -1
		for i, p := range pieces {
			if p.period || len(p.text) < 2 {
				continue
			}
			open := hasOpenSplit(p.text)
			score := len(p.text)
			if hasInternalBreak(p.text) {
				score -= 2
			}
			if (open && !bestOpen) || (open == bestOpen && score > bestScore) {
				best, bestOpen, bestScore = i, open, score
			}
		}
		if best < 0 {
			break
		}

		p := pieces[best]
		at := s.splitPoint(p.text)
		next := make([]piece, 0, len(pieces)+1)
		next = append(next, pieces[:best]...)
		next = append(next, piece{text: p.text[:at]}, piece{text: p.text[at:]})
		next = append(next, pieces[best+1:]...)
		pieces = next
	}
	return pieces
}

// splitPoint picks where to cut text: after an internal comma or a particle,
// then at a change of script, then at the middle. Cuts outside brackets and
// quotes are tried before cuts inside them. The result is always in
// (0, len(text)).
func (s *Segmenter) splitPoint(text []rune) int {
	mid := len(text) / 2
	quoted := quotedAt(text)

	var natural []int
	for i := 1; i < len(text); i++ {
		if isBreak(text[i-1]) {
			natural = append(natural, i)
		}
	}
	natural = append(natural, s.finder.Boundaries(text)...)

	var script []int
	for i := 1; i < len(text); i++ {
		a, b := scriptOf(text[i-1]), scriptOf(text[i])
		if a != b && a != scriptOther && b != scriptOther {
			script = append(script, i)
		}
	}

	all := make([]int, 0, len(text))
	for i := 1; i < len(text); i++ {
		all = append(all, i)
	}

	for _, open := range []bool{true, false} {
		for _, candidates := range [][]int{natural, script, all} {
			if at, ok := nearest(text, quoted, candidates, mid, open); ok {
				return at
			}
		}
	}
	if mid == 0 {
		return 1
	}
	return mid
}

// nearest returns the valid candidate closest to mid. With openOnly set,
// cuts inside a bracketed span are ignored.
func nearest(text []rune, quoted []bool, candidates []int, mid int, openOnly bool) (int, bool) {
	best, bestDist := 0, len(text)+1
	for _, c := range candidates {
		if c <= 0 || c >= len(text) || !validStart(text, c) {
			continue
		}
		if openOnly && quoted[c] {
			continue
		}
		d := c - mid
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist <= len(text)
}

// quotedAt reports, for each cut position, whether it falls inside an
// unclosed bracket or quotation.
func quotedAt(text []rune) []bool {
	out := make([]bool, len(text)+1)
	depth := 0
	for i, r := range text {
		switch {
		case isOpening(r):
			depth++
		case isClosing(r) && depth > 0:
			depth--
		}
		out[i+1] = depth > 0
	}
	return out
}

// hasOpenSplit reports whether text can be cut outside every bracketed span.
func hasOpenSplit(text []rune) bool {
	quoted := quotedAt(text)
	for i := 1; i < len(text); i++ {
		if !quoted[i] && validStart(text, i) {
			return true
		}
	}
	return false
}

func validStart(text []rune, i int) bool {
	r := text[i]
	if isBreak(r) || isClosing(r) || isPeriodAt(text, i) || isSmallKana(r) || r == 'ー' {
		return false
	}
	return !isOpening(text[i-1])
}

func hasInternalBreak(text []rune) bool {
	for i := 0; i < len(text)-1; i++ {
		if isBreak(text[i]) {
			return true
		}
	}
	return false
}
