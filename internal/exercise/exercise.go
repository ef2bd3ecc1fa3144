// Package exercise holds the state of the practice activities: pair
// matching, multiple choice, fill-in-the-blank and sentence scramble. The
// types are plain data so they can be persisted as JSON between requests.
package exercise

import (
	"errors"
	"math/rand"
	"time"
)

// Delays the client applies before moving on. They are reported with the
// exercise state so the browser does not hard-code them.
const (
	MismatchDelay      = 500 * time.Millisecond
	HintDuration       = 2 * time.Second
	FillAdvanceDelay   = time.Second
	ChoiceAdvanceDelay = 1500 * time.Millisecond
)

// DefaultOptions is the number of options shown in a multiple-choice question.
const DefaultOptions = 4

var (
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrInvalidOption   = errors.New("option out of range")
	ErrInvalidTile     = errors.New("tile out of range")
	ErrBoardComplete   = errors.New("board already complete")
	ErrNoExamples      = errors.New("no entry has examples")
	ErrNoEntries       = errors.New("no entries to practise")
)

// Delays is the timing hint sent to the client.
type Delays struct {
	MismatchMS int64 `json:"mismatch_ms"`
	HintMS     int64 `json:"hint_ms"`
	FillMS     int64 `json:"fill_advance_ms"`
	ChoiceMS   int64 `json:"choice_advance_ms"`
}

// ClientDelays returns the delay constants in milliseconds.
func ClientDelays() Delays {
	return Delays{
		MismatchMS: MismatchDelay.Milliseconds(),
		HintMS:     HintDuration.Milliseconds(),
		FillMS:     FillAdvanceDelay.Milliseconds(),
		ChoiceMS:   ChoiceAdvanceDelay.Milliseconds(),
	}
}

func shuffle[T any](rnd *rand.Rand, s []T) {
	rnd.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
