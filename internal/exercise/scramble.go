package exercise

import (
	"math/rand"

	"github.com/samber/lo"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/segmenter"
)

// Scramble is a sentence reconstruction exercise: the translation is shown
// and the shuffled tiles of the Japanese sentence must be put back in order.
type Scramble struct {
	EntryID   string   `json:"entry_id"`
	Structure string   `json:"structure"`
	Prompt    string   `json:"prompt"`
	Sentence  string   `json:"sentence"`
	Tiles     []string `json:"tiles"`
	Checked   bool     `json:"checked"`
	Correct   bool     `json:"correct"`
}

// NewScramble picks a random entry with examples, then a random example of
// it, and segments the sentence with seg.
func NewScramble(entries []models.GrammarEntry, seg *segmenter.Segmenter, rnd *rand.Rand) (*Scramble, error) {
	usable := lo.Filter(entries, func(e models.GrammarEntry, _ int) bool {
		return lo.SomeBy(e.Examples, func(ex models.Example) bool { return segmenter.StripSpace(ex.JP) != "" })
	})
	if len(usable) == 0 {
		return nil, ErrNoExamples
	}
	entry := usable[rnd.Intn(len(usable))]
	examples := lo.Filter(entry.Examples, func(ex models.Example, _ int) bool { return segmenter.StripSpace(ex.JP) != "" })
	ex := examples[rnd.Intn(len(examples))]

	return &Scramble{
		EntryID:   entry.ID,
		Structure: entry.Structure,
		Prompt:    ex.VI,
		Sentence:  ex.JP,
		Tiles:     seg.Shuffle(seg.Segment(ex.JP)),
	}, nil
}

// Check compares the tiles in the given order with the sentence, ignoring
// whitespace.
func (s *Scramble) Check(order []string) bool {
	s.Checked = true
	s.Correct = segmenter.StripSpace(segmenter.Join(order)) == segmenter.StripSpace(s.Sentence)
	return s.Correct
}

// ScrambleView hides the sentence until it has been checked.
type ScrambleView struct {
	EntryID  string   `json:"entry_id"`
	Prompt   string   `json:"prompt"`
	Tiles    []string `json:"tiles"`
	Checked  bool     `json:"checked"`
	Correct  bool     `json:"correct"`
	Sentence string   `json:"sentence,omitempty"`
}

func (s *Scramble) View() ScrambleView {
	v := ScrambleView{
		EntryID: s.EntryID,
		Prompt:  s.Prompt,
		Tiles:   s.Tiles,
		Checked: s.Checked,
		Correct: s.Correct,
	}
	if s.Checked {
		v.Sentence = s.Sentence
	}
	return v
}
