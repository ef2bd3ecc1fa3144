package exercise

import (
	"math/rand"

	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

// Fill is a fill-in-the-blank item: the meaning is shown and the structure
// must be typed.
type Fill struct {
	EntryID    string  `json:"entry_id"`
	Meaning    string  `json:"meaning"`
	Structure  string  `json:"structure"`
	Input      string  `json:"input"`
	Accepted   bool    `json:"accepted"`
	Attempts   int     `json:"attempts"`
	Hints      int     `json:"hints"`
	Similarity float64 `json:"similarity"`
}

func NewFill(e models.GrammarEntry) *Fill {
	return &Fill{EntryID: e.ID, Meaning: e.Meaning, Structure: e.Structure}
}

// Submit checks input. Once accepted the item is locked and further input
// is ignored.
func (f *Fill) Submit(input string) textmatch.Verdict {
	if f.Accepted {
		return textmatch.Verdict{Accepted: true, Similarity: 1}
	}
	f.Input = input
	f.Attempts++
	v := textmatch.Match(input, f.Structure)
	f.Accepted = v.Accepted
	f.Similarity = v.Similarity
	return v
}

// Hint extends the current input by one missing character of the structure.
func (f *Fill) Hint(rnd *rand.Rand) string {
	if f.Accepted {
		return f.Input
	}
	f.Input = textmatch.Hint(f.Input, f.Structure, rnd)
	f.Hints++
	return f.Input
}

// FillView omits the structure until the answer is accepted.
type FillView struct {
	EntryID    string  `json:"entry_id"`
	Meaning    string  `json:"meaning"`
	Input      string  `json:"input"`
	Accepted   bool    `json:"accepted"`
	Similarity float64 `json:"similarity"`
	Answer     string  `json:"answer,omitempty"`
	Delays     Delays  `json:"delays"`
}

func (f *Fill) View() FillView {
	v := FillView{
		EntryID:    f.EntryID,
		Meaning:    f.Meaning,
		Input:      f.Input,
		Accepted:   f.Accepted,
		Similarity: f.Similarity,
		Delays:     ClientDelays(),
	}
	if f.Accepted {
		v.Answer = f.Structure
	}
	return v
}
