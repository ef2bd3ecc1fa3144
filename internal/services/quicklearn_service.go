package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/exercise"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/quicklearn"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/textmatch"
)

// QuickLearnService drives the persisted Quick Learn session. There is at
// most one session; it survives restarts until completed or discarded.
type QuickLearnService interface {
	Pending(ctx context.Context) (*SessionSummary, error)
	Start(ctx context.Context, opts StartOptions) (*SessionView, error)
	Resume(ctx context.Context) (*SessionView, error)
	Discard(ctx context.Context) error
	Next(ctx context.Context) (*SessionView, error)
	Choose(ctx context.Context, option int) (*SessionView, error)
	Match(ctx context.Context, tile int) (*SessionView, error)
	PairHint(ctx context.Context) (*HintView, error)
	SubmitFill(ctx context.Context, input string) (*SessionView, error)
	FillHint(ctx context.Context) (*SessionView, error)
	Skip(ctx context.Context) (*SessionView, error)
}

// StartOptions are the user's session settings.
type StartOptions struct {
	Count      int             `json:"count"`
	Level      string          `json:"level"`
	Mode       quicklearn.Mode `json:"mode"`
	HideSolved bool            `json:"hide_solved"`
}

// QuickLearnOptions configures the service.
type QuickLearnOptions struct {
	SessionSize int
	Rand        *rand.Rand
	Now         func() time.Time
}

// SessionSummary describes a pending session without its contents.
type SessionSummary struct {
	ID        string              `json:"id"`
	StartedAt time.Time           `json:"started_at"`
	Items     int                 `json:"items"`
	Step      string              `json:"step"`
	Progress  quicklearn.Progress `json:"progress"`
}

// Feedback reports the outcome of the last action.
type Feedback struct {
	Correct *bool                  `json:"correct,omitempty"`
	Match   *exercise.SelectResult `json:"match,omitempty"`
	Verdict *textmatch.Verdict     `json:"verdict,omitempty"`
	Skipped *EntryDetail           `json:"skipped,omitempty"`
	Demoted bool                   `json:"demoted,omitempty"`
}

// SessionView is the client-facing session state. Item is only filled in
// the detail step so later steps do not reveal their answers.
type SessionView struct {
	ID         string               `json:"id"`
	Step       string               `json:"step"`
	StepIndex  int                  `json:"step_index"`
	ItemIndex  int                  `json:"item_index"`
	Items      int                  `json:"items"`
	Review     bool                 `json:"review"`
	IsNew      bool                 `json:"is_new"`
	Item       *EntryDetail         `json:"item,omitempty"`
	Choice     *exercise.ChoiceView `json:"choice,omitempty"`
	Board      *exercise.BoardView  `json:"board,omitempty"`
	Fill       *exercise.FillView   `json:"fill,omitempty"`
	Progress   quicklearn.Progress  `json:"progress"`
	CanAdvance bool                 `json:"can_advance"`
	Completed  bool                 `json:"completed"`
	Goal       *models.DailyGoal    `json:"goal,omitempty"`
	Feedback   *Feedback            `json:"feedback,omitempty"`
}

// HintView names two tiles to highlight.
type HintView struct {
	Tiles    []int `json:"tiles"`
	Duration int   `json:"duration_ms"`
}

type quickLearnService struct {
	grammar GrammarService
	local   repository.LocalStore
	opts    QuickLearnOptions

	mu      sync.Mutex
	loaded  bool
	session *quicklearn.Session
}

// NewQuickLearnService creates a QuickLearnService and subscribes it to
// entry edits so the session copy stays current.
func NewQuickLearnService(grammar GrammarService, local repository.LocalStore, opts QuickLearnOptions) QuickLearnService {
	if opts.SessionSize <= 0 {
		opts.SessionSize = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &quickLearnService{grammar: grammar, local: local, opts: opts}
	grammar.OnEntryUpdated(s.refresh)
	return s
}

func (s *quickLearnService) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var session quicklearn.Session
	ok, err := repository.GetJSON(ctx, s.local, repository.KeyQuickLearnSession, &session)
	if err != nil {
		// An unreadable session is dropped rather than blocking new ones.
		logger.FromContext(ctx).WithPrefix("quicklearn").Warn("discarding unreadable session: %v", err)
		_ = s.local.Delete(ctx, repository.KeyQuickLearnSession)
	}
	if ok && err == nil && !session.Completed && len(session.Items) > 0 {
		s.session = &session
	}
	s.loaded = true
	return nil
}

func (s *quickLearnService) saveLocked(ctx context.Context) error {
	if err := repository.PutJSON(ctx, s.local, repository.KeyQuickLearnSession, s.session); err != nil {
		logger.FromContext(ctx).WithPrefix("quicklearn").Error("failed to save session: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *quickLearnService) active(ctx context.Context) (*quicklearn.Session, error) {
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, errors.NewNotFoundError("quick learn session", "current")
	}
	return s.session, nil
}

func (s *quickLearnService) Pending(ctx context.Context) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, nil
	}
	return &SessionSummary{
		ID:        s.session.ID,
		StartedAt: s.session.StartedAt,
		Items:     len(s.session.Items),
		Step:      s.session.Step.String(),
		Progress:  s.session.Progress(),
	}, nil
}

// Start builds a new session, replacing any pending one.
func (s *quickLearnService) Start(ctx context.Context, opts StartOptions) (*SessionView, error) {
	log := logger.FromContext(ctx).WithPrefix("quicklearn")
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Count <= 0 {
		opts.Count = s.opts.SessionSize
	}
	switch opts.Mode {
	case "":
		opts.Mode = quicklearn.ModeNewOnly
	case quicklearn.ModeNewOnly, quicklearn.ModeReviewAndNew:
	default:
		return nil, errors.NewValidationError("mode", "must be new-only or review-and-new")
	}

	session, err := quicklearn.Build(snap.Entries, snap.Status, snap.DailyGoal, quicklearn.Options{
		ID:         uuid.NewString(),
		Count:      opts.Count,
		Level:      opts.Level,
		Mode:       opts.Mode,
		HideSolved: opts.HideSolved,
		Now:        s.opts.Now(),
	}, s.opts.Rand)
	if err != nil {
		return nil, sessionError(err)
	}

	s.session, s.loaded = session, true
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	log.Info("session started: id=%s items=%d new=%d mode=%s", session.ID, len(session.Items), len(session.NewIDs), opts.Mode)
	return s.view(snap, nil), nil
}

func (s *quickLearnService) Resume(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.active(ctx); err != nil {
		return nil, err
	}
	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.view(snap, nil), nil
}

func (s *quickLearnService) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	if err := s.local.Delete(ctx, repository.KeyQuickLearnSession); err != nil {
		return errors.NewInternalError(err)
	}
	if s.session != nil {
		logger.FromContext(ctx).WithPrefix("quicklearn").Info("session discarded: id=%s", s.session.ID)
	}
	s.session = nil
	return nil
}

// Next advances the session. Finishing the last step marks the new items
// learned, adds every item to today's goal and removes the session.
func (s *quickLearnService) Next(ctx context.Context) (*SessionView, error) {
	log := logger.FromContext(ctx).WithPrefix("quicklearn")
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.Advance(snap.Entries, s.opts.Rand); err != nil {
		return nil, sessionError(err)
	}

	if !session.Completed {
		if err := s.saveLocked(ctx); err != nil {
			return nil, err
		}
		return s.view(snap, nil), nil
	}

	goal, err := s.grammar.CompleteLearning(ctx, session.NewIDs, session.ItemIDs())
	if err != nil {
		return nil, err
	}
	if err := s.local.Delete(ctx, repository.KeyQuickLearnSession); err != nil {
		log.Warn("failed to remove finished session: %v", err)
	}
	log.Info("session completed: id=%s learned=%d", session.ID, len(session.NewIDs))

	view := s.view(snap, nil)
	view.Goal = &goal
	s.session = nil
	return view, nil
}

func (s *quickLearnService) Choose(ctx context.Context, option int) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	id, correct, err := session.Choose(option)
	if err != nil {
		return nil, sessionError(err)
	}
	fb := &Feedback{Correct: &correct}
	if err := s.recordLocked(ctx, id, correct, fb); err != nil {
		return nil, err
	}
	return s.afterAction(ctx, fb)
}

func (s *quickLearnService) Match(ctx context.Context, tile int) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	res, err := session.Match(tile)
	if err != nil {
		return nil, sessionError(err)
	}
	fb := &Feedback{Match: &res}
	switch res.Outcome {
	case exercise.OutcomeMatch, exercise.OutcomeMismatch:
		if err := s.recordLocked(ctx, res.StructureID, res.Outcome == exercise.OutcomeMatch, fb); err != nil {
			return nil, err
		}
	}
	return s.afterAction(ctx, fb)
}

func (s *quickLearnService) PairHint(ctx context.Context) (*HintView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	a, b, err := session.PairHint()
	if err != nil {
		return nil, sessionError(err)
	}
	return &HintView{Tiles: []int{a, b}, Duration: int(exercise.HintDuration / time.Millisecond)}, nil
}

// SubmitFill checks a fill-blank answer. Only the first accepted answer is
// counted; wrong attempts are not.
func (s *quickLearnService) SubmitFill(ctx context.Context, input string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	verdict, first, err := session.SubmitFill(input)
	if err != nil {
		return nil, sessionError(err)
	}
	fb := &Feedback{Verdict: &verdict}
	if first {
		if err := s.recordLocked(ctx, session.Fill.EntryID, true, fb); err != nil {
			return nil, err
		}
	}
	return s.afterAction(ctx, fb)
}

func (s *quickLearnService) FillHint(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := session.FillHint(s.opts.Rand); err != nil {
		return nil, sessionError(err)
	}
	return s.afterAction(ctx, nil)
}

// Skip gives up on the current fill-blank item: it counts as a miss, moves
// to the end of the batch and its details are returned for review.
func (s *quickLearnService) Skip(ctx context.Context) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	item, err := session.Skip()
	if err != nil {
		return nil, sessionError(err)
	}
	fb := &Feedback{}
	if err := s.recordLocked(ctx, item.ID, false, fb); err != nil {
		return nil, err
	}
	if detail, err := s.grammar.Detail(ctx, item.ID); err == nil {
		fb.Skipped = detail
	} else {
		fb.Skipped = newEntryDetail(item, models.Stat{}, models.StatusUnset)
	}
	return s.afterAction(ctx, fb)
}

func (s *quickLearnService) recordLocked(ctx context.Context, id string, correct bool, fb *Feedback) error {
	out, err := s.grammar.RecordAnswer(ctx, id, correct)
	if err != nil {
		return err
	}
	if out != nil && fb != nil {
		fb.Demoted = out.Demoted
	}
	return nil
}

func (s *quickLearnService) afterAction(ctx context.Context, fb *Feedback) (*SessionView, error) {
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	snap, err := s.grammar.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.view(snap, fb), nil
}

func (s *quickLearnService) refresh(ctx context.Context, entry models.GrammarEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil || s.session == nil {
		return
	}
	if s.session.Refresh(entry) {
		_ = s.saveLocked(ctx)
	}
}

func (s *quickLearnService) view(snap *models.Snapshot, fb *Feedback) *SessionView {
	session := s.session
	v := &SessionView{
		ID:         session.ID,
		Step:       session.Step.String(),
		StepIndex:  int(session.Step),
		ItemIndex:  session.ItemIndex,
		Items:      len(session.Items),
		Review:     session.Review,
		Progress:   session.Progress(),
		CanAdvance: session.CanAdvance(),
		Completed:  session.Completed,
		Feedback:   fb,
	}
	if session.Completed {
		return v
	}
	if cur, ok := session.Current(); ok {
		v.IsNew = session.IsNew(cur.ID)
		if session.Step == quicklearn.StepDetail {
			v.Item = newEntryDetail(cur, snap.Stats[cur.ID], snap.Status[cur.ID])
		}
	}
	switch session.Step {
	case quicklearn.StepMultipleChoice:
		if session.Choice != nil {
			cv := session.Choice.View()
			v.Choice = &cv
		}
	case quicklearn.StepPairMatch:
		if session.Board != nil {
			bv := session.Board.View()
			v.Board = &bv
		}
	case quicklearn.StepFillBlank:
		if session.Fill != nil {
			fv := session.Fill.View()
			v.Fill = &fv
		}
	}
	return v
}
