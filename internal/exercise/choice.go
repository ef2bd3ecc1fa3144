package exercise

import (
	"math/rand"

	"github.com/samber/lo"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

// Direction selects which side of an entry is the prompt.
type Direction string

const (
	// StructureToMeaning shows a structure and asks for its meaning.
	StructureToMeaning Direction = "structure_to_meaning"
	// MeaningToStructure shows a meaning and asks for its structure.
	MeaningToStructure Direction = "meaning_to_structure"
)

// Choice is one multiple-choice question.
type Choice struct {
	EntryID   string    `json:"entry_id"`
	Direction Direction `json:"direction"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	Correct   int       `json:"correct"`
	Answered  bool      `json:"answered"`
	Picked    int       `json:"picked"`
}

func side(e models.GrammarEntry, d Direction) (prompt, answer string) {
	if d == MeaningToStructure {
		return e.Meaning, e.Structure
	}
	return e.Structure, e.Meaning
}

// NewChoice builds a question for target with up to n options. Distractors
// are drawn at random from pool, skipping the target and any option whose
// text repeats one already chosen.
func NewChoice(target models.GrammarEntry, pool []models.GrammarEntry, n int, d Direction, rnd *rand.Rand) *Choice {
	if n < 2 {
		n = DefaultOptions
	}
	prompt, answer := side(target, d)

	candidates := lo.Filter(pool, func(e models.GrammarEntry, _ int) bool { return e.ID != target.ID })
	shuffle(rnd, candidates)

	seen := map[string]bool{textmatch.Normalize(answer): true}
	options := []string{answer}
	for _, e := range candidates {
		if len(options) == n {
			break
		}
		_, text := side(e, d)
		key := textmatch.Normalize(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		options = append(options, text)
	}
	shuffle(rnd, options)

	return &Choice{
		EntryID:   target.ID,
		Direction: d,
		Prompt:    prompt,
		Options:   options,
		Correct:   lo.IndexOf(options, answer),
		Picked:    -1,
	}
}

// Answer records the picked option and reports whether it was correct.
func (c *Choice) Answer(option int) (bool, error) {
	if c.Answered {
		return false, ErrAlreadyAnswered
	}
	if option < 0 || option >= len(c.Options) {
		return false, ErrInvalidOption
	}
	c.Answered = true
	c.Picked = option
	return option == c.Correct, nil
}

// ChoiceView hides the answer until the question is answered.
type ChoiceView struct {
	EntryID   string    `json:"entry_id"`
	Direction Direction `json:"direction"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	Answered  bool      `json:"answered"`
	Picked    *int      `json:"picked,omitempty"`
	Correct   *int      `json:"correct,omitempty"`
}

func (c *Choice) View() ChoiceView {
	v := ChoiceView{
		EntryID:   c.EntryID,
		Direction: c.Direction,
		Prompt:    c.Prompt,
		Options:   c.Options,
		Answered:  c.Answered,
	}
	if c.Answered {
		picked, correct := c.Picked, c.Correct
		v.Picked, v.Correct = &picked, &correct
	}
	return v
}

// Quiz is a multiple-choice run over a pre-shuffled queue of entries.
type Quiz struct {
	Queue    []models.GrammarEntry `json:"queue"`
	Current  *Choice               `json:"current,omitempty"`
	Entry    *models.GrammarEntry  `json:"entry,omitempty"`
	Total    int                   `json:"total"`
	Answered int                   `json:"answered"`
	Correct  int                   `json:"correct"`
}

// NewQuiz shuffles entries into a question queue and draws the first question.
func NewQuiz(entries, pool []models.GrammarEntry, rnd *rand.Rand) (*Quiz, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	queue := make([]models.GrammarEntry, len(entries))
	copy(queue, entries)
	shuffle(rnd, queue)

	q := &Quiz{Queue: queue, Total: len(queue)}
	q.Next(pool, rnd)
	return q, nil
}

// Next pops the head of the queue into Current. It returns false once the
// queue is exhausted.
func (q *Quiz) Next(pool []models.GrammarEntry, rnd *rand.Rand) bool {
	if len(q.Queue) == 0 {
		q.Current, q.Entry = nil, nil
		return false
	}
	head := q.Queue[0]
	q.Queue = q.Queue[1:]
	q.Entry = &head
	q.Current = NewChoice(head, pool, DefaultOptions, StructureToMeaning, rnd)
	return true
}

// Answer answers the current question.
func (q *Quiz) Answer(option int) (bool, error) {
	if q.Current == nil {
		return false, ErrNoEntries
	}
	correct, err := q.Current.Answer(option)
	if err != nil {
		return false, err
	}
	q.Answered++
	if correct {
		q.Correct++
	}
	return correct, nil
}

// Skip puts the unanswered current question back at the tail and draws the
// next one.
func (q *Quiz) Skip(pool []models.GrammarEntry, rnd *rand.Rand) bool {
	if q.Current != nil && !q.Current.Answered && q.Entry != nil {
		q.Queue = append(q.Queue, *q.Entry)
	}
	return q.Next(pool, rnd)
}

// Done reports whether every question has been drawn and answered.
func (q *Quiz) Done() bool {
	return len(q.Queue) == 0 && (q.Current == nil || q.Current.Answered)
}

// Progress returns how many questions have left the queue.
func (q *Quiz) Progress() (completed, total int) {
	completed = q.Total - len(q.Queue)
	if q.Current != nil && !q.Current.Answered {
		completed--
	}
	return completed, q.Total
}

// QuizView is the client-facing state of a quiz.
type QuizView struct {
	Question  *ChoiceView `json:"question,omitempty"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Answered  int         `json:"answered"`
	Correct   int         `json:"correct"`
	Done      bool        `json:"done"`
	Delays    Delays      `json:"delays"`
}

func (q *Quiz) View() QuizView {
	completed, total := q.Progress()
	v := QuizView{
		Completed: completed,
		Total:     total,
		Answered:  q.Answered,
		Correct:   q.Correct,
		Done:      q.Done(),
		Delays:    ClientDelays(),
	}
	if q.Current != nil {
		cv := q.Current.View()
		v.Question = &cv
	}
	return v
}
