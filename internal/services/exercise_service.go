package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/exercise"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/quicklearn"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/segmenter"
)

// ExerciseService runs the standalone practice modes. Only the pair-match
// board is persisted; quizzes and scrambles live for the process.
type ExerciseService interface {
	StartPairMatch(ctx context.Context, opts PracticeOptions) (*PairMatchView, error)
	ResumePairMatch(ctx context.Context) (*PairMatchView, error)
	SelectPairTile(ctx context.Context, tile int) (*PairMatchView, error)
	PairMatchHint(ctx context.Context) (*HintView, error)

	StartQuiz(ctx context.Context, opts PracticeOptions) (*exercise.QuizView, error)
	AnswerQuiz(ctx context.Context, option int) (*QuizAnswerView, error)
	SkipQuiz(ctx context.Context) (*exercise.QuizView, error)
	NextQuiz(ctx context.Context) (*exercise.QuizView, error)

	StartScramble(ctx context.Context, opts PracticeOptions) (*exercise.ScrambleView, error)
	CheckScramble(ctx context.Context, order []string) (*exercise.ScrambleView, error)
}

// PracticeOptions selects the entries an exercise draws from. Count 0 uses
// every entry of the level.
type PracticeOptions struct {
	Level      string `json:"level"`
	Count      int    `json:"count"`
	HideSolved bool   `json:"hide_solved"`
}

// PairMatchView is the board after an action.
type PairMatchView struct {
	Board   exercise.BoardView     `json:"board"`
	Result  *exercise.SelectResult `json:"result,omitempty"`
	Demoted bool                   `json:"demoted,omitempty"`
}

// QuizAnswerView is the quiz after an answer.
type QuizAnswerView struct {
	Quiz    exercise.QuizView `json:"quiz"`
	Correct bool              `json:"correct"`
	Demoted bool              `json:"demoted,omitempty"`
}

type exerciseService struct {
	grammar GrammarService
	local   repository.LocalStore
	seg     *segmenter.Segmenter
	rnd     *rand.Rand

	mu       sync.Mutex
	quiz     *exercise.Quiz
	pool     []models.GrammarEntry
	scramble *exercise.Scramble
}

// NewExerciseService creates an ExerciseService. A nil rnd is seeded from
// the clock.
func NewExerciseService(grammar GrammarService, local repository.LocalStore, seg *segmenter.Segmenter, rnd *rand.Rand) ExerciseService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &exerciseService{grammar: grammar, local: local, seg: seg, rnd: rnd}
}

func (s *exerciseService) practiceEntries(ctx context.Context, opts PracticeOptions) ([]models.GrammarEntry, error) {
	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries := quicklearn.FilterLevel(snap.Entries, opts.Level)
	if len(entries) == 0 {
		return nil, sessionError(quicklearn.ErrNoEntriesForLevel)
	}
	if opts.Count > 0 && opts.Count < len(entries) {
		s.rnd.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		entries = entries[:opts.Count]
	}
	return entries, nil
}

func (s *exerciseService) loadBoard(ctx context.Context) (*exercise.PairBoard, error) {
	var board exercise.PairBoard
	ok, err := repository.GetJSON(ctx, s.local, repository.KeyPairMatchState, &board)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("exercise").Warn("discarding unreadable pair-match state: %v", err)
		_ = s.local.Delete(ctx, repository.KeyPairMatchState)
		ok = false
	}
	if !ok || board.Complete() {
		return nil, errors.NewNotFoundError("pair-match game", "saved")
	}
	return &board, nil
}

// saveBoard stores an unfinished board and removes a finished one.
func (s *exerciseService) saveBoard(ctx context.Context, board *exercise.PairBoard) error {
	var err error
	if board.Complete() {
		err = s.local.Delete(ctx, repository.KeyPairMatchState)
	} else {
		err = repository.PutJSON(ctx, s.local, repository.KeyPairMatchState, board)
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("exercise").Error("failed to save pair-match state: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

// StartPairMatch deals a new board and drops any saved one.
func (s *exerciseService) StartPairMatch(ctx context.Context, opts PracticeOptions) (*PairMatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.practiceEntries(ctx, opts)
	if err != nil {
		return nil, err
	}
	board := exercise.NewPairBoard(entries, opts.HideSolved, s.rnd)
	if err := s.saveBoard(ctx, board); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithPrefix("exercise").Debug("pair-match started: pairs=%d", board.Pairs)
	return &PairMatchView{Board: board.View()}, nil
}

func (s *exerciseService) ResumePairMatch(ctx context.Context) (*PairMatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, err := s.loadBoard(ctx)
	if err != nil {
		return nil, err
	}
	return &PairMatchView{Board: board.View()}, nil
}

// SelectPairTile selects a tile on the saved board. Attempts count against
// the structure tile's entry, and a miss demotes a learned entry.
func (s *exerciseService) SelectPairTile(ctx context.Context, tile int) (*PairMatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, err := s.loadBoard(ctx)
	if err != nil {
		return nil, err
	}
	res, err := board.Select(tile)
	if err != nil {
		return nil, sessionError(err)
	}

	view := &PairMatchView{Result: &res}
	if res.Outcome == exercise.OutcomeMatch || res.Outcome == exercise.OutcomeMismatch {
		out, err := s.grammar.RecordPairAttempt(ctx, res.StructureID, res.Outcome == exercise.OutcomeMatch)
		if err != nil {
			return nil, err
		}
		view.Demoted = out != nil && out.Demoted
	}
	if err := s.saveBoard(ctx, board); err != nil {
		return nil, err
	}
	view.Board = board.View()
	return view, nil
}

func (s *exerciseService) PairMatchHint(ctx context.Context) (*HintView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, err := s.loadBoard(ctx)
	if err != nil {
		return nil, err
	}
	a, b, ok := board.Hint()
	if !ok {
		return nil, sessionError(exercise.ErrBoardComplete)
	}
	return &HintView{Tiles: []int{a, b}, Duration: int(exercise.HintDuration / time.Millisecond)}, nil
}

func (s *exerciseService) StartQuiz(ctx context.Context, opts PracticeOptions) (*exercise.QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.practiceEntries(ctx, opts)
	if err != nil {
		return nil, err
	}
	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	quiz, err := exercise.NewQuiz(entries, snap.Entries, s.rnd)
	if err != nil {
		return nil, sessionError(err)
	}
	s.quiz, s.pool = quiz, snap.Entries
	v := quiz.View()
	return &v, nil
}

func (s *exerciseService) activeQuiz() (*exercise.Quiz, error) {
	if s.quiz == nil {
		return nil, errors.NewNotFoundError("quiz", "current")
	}
	return s.quiz, nil
}

func (s *exerciseService) AnswerQuiz(ctx context.Context, option int) (*QuizAnswerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, err := s.activeQuiz()
	if err != nil {
		return nil, err
	}
	if quiz.Current == nil {
		return nil, sessionError(exercise.ErrNoEntries)
	}
	id := quiz.Current.EntryID
	correct, err := quiz.Answer(option)
	if err != nil {
		return nil, sessionError(err)
	}
	out, err := s.grammar.RecordAnswer(ctx, id, correct)
	if err != nil {
		return nil, err
	}
	return &QuizAnswerView{Quiz: quiz.View(), Correct: correct, Demoted: out != nil && out.Demoted}, nil
}

// SkipQuiz sends an unanswered question to the back of the queue.
func (s *exerciseService) SkipQuiz(ctx context.Context) (*exercise.QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, err := s.activeQuiz()
	if err != nil {
		return nil, err
	}
	quiz.Skip(s.pool, s.rnd)
	v := quiz.View()
	return &v, nil
}

// NextQuiz draws the next question once the current one is answered.
func (s *exerciseService) NextQuiz(ctx context.Context) (*exercise.QuizView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, err := s.activeQuiz()
	if err != nil {
		return nil, err
	}
	if quiz.Current != nil && !quiz.Current.Answered {
		return nil, errors.NewConflictError("answer or skip the current question first")
	}
	quiz.Next(s.pool, s.rnd)
	v := quiz.View()
	return &v, nil
}

func (s *exerciseService) StartScramble(ctx context.Context, opts PracticeOptions) (*exercise.ScrambleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.practiceEntries(ctx, PracticeOptions{Level: opts.Level})
	if err != nil {
		return nil, err
	}
	sc, err := exercise.NewScramble(entries, s.seg, s.rnd)
	if err != nil {
		return nil, sessionError(err)
	}
	s.scramble = sc
	v := sc.View()
	return &v, nil
}

// CheckScramble checks an ordering of the tiles and counts the attempt.
func (s *exerciseService) CheckScramble(ctx context.Context, order []string) (*exercise.ScrambleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scramble == nil {
		return nil, errors.NewNotFoundError("scramble", "current")
	}
	if len(order) == 0 {
		return nil, errors.NewValidationError("order", "is required")
	}
	correct := s.scramble.Check(order)
	if _, err := s.grammar.RecordAnswer(ctx, s.scramble.EntryID, correct); err != nil {
		return nil, err
	}
	v := s.scramble.View()
	return &v, nil
}
