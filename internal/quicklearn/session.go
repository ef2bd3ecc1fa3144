// Package quicklearn implements the four-step Quick Learn drill over a batch
// of grammar entries.
package quicklearn

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/vytor/bunpo/internal/exercise"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

// Step is a stage of the drill.
type Step int

const (
	StepDetail Step = iota
	StepMultipleChoice
	StepPairMatch
	StepFillBlank
)

// StepCount is the number of steps in a session.
const StepCount = 4

var stepNames = [...]string{"detail", "multiple_choice", "pair_match", "fill_blank"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "complete"
	}
	return stepNames[s]
}

// NewOnly reports whether the step only visits the session's new items.
func (s Step) NewOnly() bool {
	return s == StepDetail || s == StepMultipleChoice
}

// Group reports whether the step covers the whole batch at once.
func (s Step) Group() bool {
	return s == StepPairMatch
}

var (
	ErrComplete          = errors.New("session is complete")
	ErrWrongStep         = errors.New("action not available in the current step")
	ErrPairsUnsolved     = errors.New("all pairs must be matched before continuing")
	ErrAnswerRequired    = errors.New("answer or skip the current item before continuing")
	ErrAlreadySkipped    = errors.New("item was already skipped")
	ErrAlreadyAnswered   = errors.New("item was already answered")
	ErrNoEntriesForLevel = errors.New("no grammar entries for the selected level")
	ErrNothingToLearn    = errors.New("every entry in this selection has been learned")
)

// Session is the persisted state of one Quick Learn run.
type Session struct {
	ID         string                `json:"id"`
	Items      []models.GrammarEntry `json:"sessionItems"`
	NewIDs     []string              `json:"newItemIds"`
	ItemIndex  int                   `json:"currentItemIndex"`
	Step       Step                  `json:"currentStepIndex"`
	Review     bool                  `json:"isReviewSession"`
	HideSolved bool                  `json:"hideSolved"`
	StartedAt  time.Time             `json:"startedAt"`
	Completed  bool                  `json:"completed"`

	// Requeued is set after a fill-blank skip; the next Advance is allowed
	// without an answer. SkippedIDs lists items already sent to the tail once.
	Requeued   bool     `json:"requeued"`
	SkippedIDs []string `json:"skippedIds,omitempty"`

	Choice *exercise.Choice    `json:"choice,omitempty"`
	Board  *exercise.PairBoard `json:"board,omitempty"`
	Fill   *exercise.Fill      `json:"fill,omitempty"`
}

// IsNew reports whether id is one of the session's new items.
func (s *Session) IsNew(id string) bool {
	return lo.Contains(s.NewIDs, id)
}

func (s *Session) scope(step Step) int {
	switch {
	case step.Group():
		return 1
	case step.NewOnly():
		return len(s.NewIDs)
	}
	return len(s.Items)
}

// Current returns the entry at the current position.
func (s *Session) Current() (models.GrammarEntry, bool) {
	if s.Completed || s.ItemIndex < 0 || s.ItemIndex >= len(s.Items) {
		return models.GrammarEntry{}, false
	}
	return s.Items[s.ItemIndex], true
}

// Advance moves to the next item or step. The pair-match step requires a
// solved board and the fill-blank step an accepted answer or a skip.
func (s *Session) Advance(pool []models.GrammarEntry, rnd *rand.Rand) error {
	if s.Completed {
		return ErrComplete
	}
	switch s.Step {
	case StepPairMatch:
		if s.Board != nil && !s.Board.Complete() {
			return ErrPairsUnsolved
		}
	case StepFillBlank:
		if s.Fill != nil && !s.Fill.Accepted && !s.Requeued {
			return ErrAnswerRequired
		}
	}

	if s.Step == StepFillBlank && s.Requeued {
		s.Requeued = false
		// Stay put when another item slid into place; a skipped item that
		// did not move is passed like an answered one.
		if s.Fill == nil || s.ItemIndex >= len(s.Items) || s.Items[s.ItemIndex].ID == s.Fill.EntryID {
			s.ItemIndex++
		}
	} else {
		s.ItemIndex++
	}
	s.rollStep(rnd)
	s.settle(rnd)
	s.prepare(pool, rnd)
	return nil
}

func (s *Session) rollStep(rnd *rand.Rand) {
	if s.ItemIndex < s.scope(s.Step) {
		return
	}
	s.ItemIndex = 0
	s.Step++
	if s.Step == StepFillBlank {
		rnd.Shuffle(len(s.Items), func(i, j int) { s.Items[i], s.Items[j] = s.Items[j], s.Items[i] })
	}
}

// settle skips positions with nothing to show: empty steps, and old items
// in new-only steps of a review session.
func (s *Session) settle(rnd *rand.Rand) {
	for s.Step < StepCount {
		if s.scope(s.Step) == 0 {
			s.ItemIndex = s.scope(s.Step)
			s.rollStep(rnd)
			continue
		}
		if s.Review && s.Step.NewOnly() {
			if cur, ok := s.Current(); ok && !s.IsNew(cur.ID) {
				s.ItemIndex++
				s.rollStep(rnd)
				continue
			}
		}
		return
	}
	s.Completed = true
}

func (s *Session) prepare(pool []models.GrammarEntry, rnd *rand.Rand) {
	s.Choice, s.Board, s.Fill = nil, nil, nil
	if s.Completed {
		return
	}
	cur, ok := s.Current()
	if !ok {
		return
	}
	switch s.Step {
	case StepMultipleChoice:
		s.Choice = exercise.NewChoice(cur, pool, exercise.DefaultOptions, exercise.MeaningToStructure, rnd)
	case StepPairMatch:
		s.Board = exercise.NewPairBoard(s.Items, s.HideSolved, rnd)
	case StepFillBlank:
		s.Fill = exercise.NewFill(cur)
	}
}

// Choose answers the multiple-choice question of the current item.
func (s *Session) Choose(option int) (string, bool, error) {
	if s.Completed {
		return "", false, ErrComplete
	}
	if s.Step != StepMultipleChoice || s.Choice == nil {
		return "", false, ErrWrongStep
	}
	correct, err := s.Choice.Answer(option)
	if err != nil {
		return "", false, err
	}
	return s.Choice.EntryID, correct, nil
}

// Match selects a tile on the pair-match board.
func (s *Session) Match(tile int) (exercise.SelectResult, error) {
	if s.Completed {
		return exercise.SelectResult{}, ErrComplete
	}
	if s.Step != StepPairMatch || s.Board == nil {
		return exercise.SelectResult{}, ErrWrongStep
	}
	return s.Board.Select(tile)
}

// PairHint names an unsolved pair on the board.
func (s *Session) PairHint() (int, int, error) {
	if s.Step != StepPairMatch || s.Board == nil {
		return -1, -1, ErrWrongStep
	}
	a, b, ok := s.Board.Hint()
	if !ok {
		return -1, -1, exercise.ErrBoardComplete
	}
	return a, b, nil
}

// SubmitFill checks a typed answer. first is true only for the submission
// that got the item accepted.
func (s *Session) SubmitFill(input string) (verdict textmatch.Verdict, first bool, err error) {
	if s.Completed {
		return verdict, false, ErrComplete
	}
	if s.Step != StepFillBlank || s.Fill == nil {
		return verdict, false, ErrWrongStep
	}
	if s.Requeued {
		return verdict, false, ErrAlreadySkipped
	}
	was := s.Fill.Accepted
	verdict = s.Fill.Submit(input)
	return verdict, verdict.Accepted && !was, nil
}

// FillHint extends the typed answer by one character.
func (s *Session) FillHint(rnd *rand.Rand) (string, error) {
	if s.Step != StepFillBlank || s.Fill == nil {
		return "", ErrWrongStep
	}
	return s.Fill.Hint(rnd), nil
}

// Skip moves the current fill-blank item to the tail of the batch and
// returns it so its details can be shown. The next Advance continues with
// the item that took its place. An item is requeued at most once; the tail
// item and items skipped before are passed instead.
func (s *Session) Skip() (models.GrammarEntry, error) {
	if s.Completed {
		return models.GrammarEntry{}, ErrComplete
	}
	if s.Step != StepFillBlank || s.Fill == nil {
		return models.GrammarEntry{}, ErrWrongStep
	}
	if s.Requeued {
		return models.GrammarEntry{}, ErrAlreadySkipped
	}
	if s.Fill.Accepted {
		return models.GrammarEntry{}, ErrAlreadyAnswered
	}
	item := s.Items[s.ItemIndex]
	if !lo.Contains(s.SkippedIDs, item.ID) {
		s.Items = append(s.Items[:s.ItemIndex], s.Items[s.ItemIndex+1:]...)
		s.Items = append(s.Items, item)
		s.SkippedIDs = append(s.SkippedIDs, item.ID)
	}
	s.Requeued = true
	return item, nil
}

// Refresh replaces the session copy of an edited entry.
func (s *Session) Refresh(entry models.GrammarEntry) bool {
	found := false
	for i := range s.Items {
		if s.Items[i].ID == entry.ID {
			s.Items[i] = entry.Clone()
			found = true
		}
	}
	if found && s.Fill != nil && s.Fill.EntryID == entry.ID && !s.Fill.Accepted {
		s.Fill.Structure = entry.Structure
		s.Fill.Meaning = entry.Meaning
	}
	return found
}

// ItemIDs returns the ids of every item in the batch.
func (s *Session) ItemIDs() []string {
	return lo.Map(s.Items, func(e models.GrammarEntry, _ int) string { return e.ID })
}

// Progress is the share of step-item slots already passed.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

func (s *Session) Progress() Progress {
	total := len(s.Items) * StepCount
	completed := int(s.Step)*len(s.Items) + s.ItemIndex
	if s.Completed {
		completed = total
	}
	p := Progress{Completed: completed, Total: total}
	if total > 0 {
		p.Percent = (completed*100 + total/2) / total
	}
	return p
}

// CanAdvance reports whether Advance would be accepted now.
func (s *Session) CanAdvance() bool {
	if s.Completed {
		return false
	}
	switch s.Step {
	case StepPairMatch:
		return s.Board == nil || s.Board.Complete()
	case StepFillBlank:
		return s.Fill == nil || s.Fill.Accepted || s.Requeued
	}
	return true
}

// Mode selects which items a session draws.
type Mode string

const (
	ModeNewOnly      Mode = "new-only"
	ModeReviewAndNew Mode = "review-and-new"
)

// Options configure a new session.
type Options struct {
	ID         string
	Count      int
	Level      string
	Mode       Mode
	HideSolved bool
	Now        time.Time
}

// FilterLevel keeps the entries of level: "all" or empty keeps everything,
// "unclassified" keeps entries without a level, anything else matches
// case-insensitively.
func FilterLevel(entries []models.GrammarEntry, level string) []models.GrammarEntry {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", models.FilterAll:
		return entries
	case models.FilterUnclassified:
		return lo.Filter(entries, func(e models.GrammarEntry, _ int) bool { return strings.TrimSpace(e.Level) == "" })
	}
	return lo.Filter(entries, func(e models.GrammarEntry, _ int) bool {
		return e.Level != "" && strings.EqualFold(e.Level, strings.TrimSpace(level))
	})
}

// Build selects a batch and returns a session positioned on its first item.
// Items not yet learned and not learned today are eligible; entries in
// review come first, then new ones, each group shuffled, capped at Count.
// In review-and-new mode the entries learned today are appended.
func Build(entries []models.GrammarEntry, status models.StatusMap, goal models.DailyGoal, opts Options, rnd *rand.Rand) (*Session, error) {
	source := FilterLevel(entries, opts.Level)
	if len(source) == 0 {
		return nil, ErrNoEntriesForLevel
	}
	count := opts.Count
	if count <= 0 {
		count = 1
	}

	unlearned := lo.Filter(source, func(e models.GrammarEntry, _ int) bool {
		return status[e.ID] != models.StatusLearned && !goal.Has(e.ID)
	})
	review := lo.Filter(unlearned, func(e models.GrammarEntry, _ int) bool { return status[e.ID] == models.StatusReview })
	fresh := lo.Filter(unlearned, func(e models.GrammarEntry, _ int) bool { return status[e.ID] != models.StatusReview })
	rnd.Shuffle(len(review), func(i, j int) { review[i], review[j] = review[j], review[i] })
	rnd.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	newItems := append(review, fresh...)
	if len(newItems) > count {
		newItems = newItems[:count]
	}

	items := newItems
	reviewMode := opts.Mode == ModeReviewAndNew
	if reviewMode {
		byID := lo.KeyBy(source, func(e models.GrammarEntry) string { return e.ID })
		for _, id := range goal.LearnedIDs {
			if e, ok := byID[id]; ok {
				items = append(items, e)
			}
		}
		items = lo.UniqBy(items, func(e models.GrammarEntry) string { return e.ID })
	}
	if len(items) == 0 {
		return nil, ErrNothingToLearn
	}

	s := &Session{
		ID:         opts.ID,
		Items:      lo.Map(items, func(e models.GrammarEntry, _ int) models.GrammarEntry { return e.Clone() }),
		NewIDs:     lo.Map(newItems, func(e models.GrammarEntry, _ int) string { return e.ID }),
		Review:     reviewMode,
		HideSolved: opts.HideSolved,
		StartedAt:  opts.Now,
	}
	s.settle(rnd)
	s.prepare(entries, rnd)
	return s, nil
}
