package services

import (
	"context"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/flashcard"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/repository"
)

// RecordAnswer counts an answer for id. Answers for unknown ids are ignored
// and return a nil outcome.
func (s *grammarService) RecordAnswer(ctx context.Context, id string, correct bool) (*flashcard.Outcome, error) {
	return s.record(ctx, id, correct, false)
}

// RecordPairAttempt counts a standalone pair-match attempt. A miss on a
// learned entry demotes it at once.
func (s *grammarService) RecordPairAttempt(ctx context.Context, id string, correct bool) (*flashcard.Outcome, error) {
	return s.record(ctx, id, correct, true)
}

func (s *grammarService) record(ctx context.Context, id string, correct, strict bool) (*flashcard.Outcome, error) {
	log := logger.FromContext(ctx).WithPrefix("progress")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if s.indexOf(id) < 0 {
		log.Debug("answer for unknown grammar ignored: id=%s", id)
		return nil, nil
	}

	prevStatus := s.status[id]
	out := flashcard.ApplyAnswer(s.stats[id], prevStatus, correct)
	if strict && !correct && !out.Demoted {
		out.Status, out.Demoted = flashcard.ApplyPairMiss(out.Status)
	}

	prevStat := s.stats[id]
	s.stats[id] = out.Stat
	values := map[string]any{repository.KeyStats: s.stats}
	if out.Demoted {
		s.status.Set(id, out.Status)
		values[repository.KeyLearningStatus] = s.status
	}
	if err := s.persist(ctx, values); err != nil {
		s.stats[id] = prevStat
		s.status.Set(id, prevStatus)
		return nil, err
	}

	if out.Demoted {
		log.Info("grammar demoted to review: id=%s incorrect=%d", id, out.Stat.Incorrect())
		s.enqueue(ctx, "progress", s.statsOp(), s.statusOp())
	} else {
		s.enqueue(ctx, "stats", s.statsOp())
	}
	return &out, nil
}

// SetStatus marks an entry learned, review or unset.
func (s *grammarService) SetStatus(ctx context.Context, id string, status models.Status) error {
	switch status {
	case models.StatusUnset, models.StatusLearned, models.StatusReview:
	default:
		return errors.NewValidationError("status", "must be learned, review or empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if s.indexOf(id) < 0 {
		return errors.NewNotFoundError("grammar", id)
	}
	prev := s.status[id]
	s.status.Set(id, status)
	if err := s.persist(ctx, map[string]any{repository.KeyLearningStatus: s.status}); err != nil {
		s.status.Set(id, prev)
		return err
	}
	s.enqueue(ctx, "learning_status", s.statusOp())
	return nil
}

// CompleteLearning marks learnedIDs as learned and adds practicedIDs to
// today's goal. Both documents are synced in one batch.
func (s *grammarService) CompleteLearning(ctx context.Context, learnedIDs, practicedIDs []string) (models.DailyGoal, error) {
	log := logger.FromContext(ctx).WithPrefix("progress")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return models.DailyGoal{}, err
	}

	prevStatus, prevGoal := s.status.Clone(), s.goal.Clone()
	for _, id := range learnedIDs {
		if s.indexOf(id) >= 0 {
			s.status.Set(id, models.StatusLearned)
		}
	}
	s.goal.Rollover(s.opts.Now())
	added := s.goal.Add(practicedIDs...)

	if err := s.persist(ctx, map[string]any{
		repository.KeyLearningStatus: s.status,
		repository.KeyDailyGoal:      s.goal,
	}); err != nil {
		s.status, s.goal = prevStatus, prevGoal
		return models.DailyGoal{}, err
	}
	s.enqueue(ctx, "learning_complete", s.statusOp(), s.goalOp())
	log.Info("learning recorded: learned=%d goal_added=%d today=%d/%d", len(learnedIDs), added, len(s.goal.LearnedIDs), s.goal.Goal)
	return s.goal.Clone(), nil
}

func (s *grammarService) SetDailyGoal(ctx context.Context, goal int) (models.DailyGoal, error) {
	if goal < 1 {
		return models.DailyGoal{}, errors.NewValidationError("goal", "must be at least 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return models.DailyGoal{}, err
	}
	s.goal.Rollover(s.opts.Now())
	s.goal.Goal = goal
	s.persistGoal(ctx)
	return s.goal.Clone(), nil
}

// RolloverDailyGoal starts a new day's goal if the stored one is stale.
func (s *grammarService) RolloverDailyGoal(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return false, err
	}
	return s.rolloverLocked(ctx), nil
}

func (s *grammarService) rolloverLocked(ctx context.Context) bool {
	if !s.goal.Rollover(s.opts.Now()) {
		return false
	}
	logger.FromContext(ctx).WithPrefix("progress").Info("daily goal rolled over: date=%s", s.goal.Date)
	s.persistGoal(ctx)
	return true
}

func (s *grammarService) Progress(ctx context.Context) (*models.ProgressSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.rolloverLocked(ctx)
	sum := flashcard.Summarize(s.entries, s.stats, s.status, s.goal)
	return &sum, nil
}

// LearnedToday returns the entries in today's goal, in the order learned.
func (s *grammarService) LearnedToday(ctx context.Context) ([]models.GrammarEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.rolloverLocked(ctx)
	out := []models.GrammarEntry{}
	for _, id := range s.goal.LearnedIDs {
		if i := s.indexOf(id); i >= 0 {
			out = append(out, s.entries[i].Clone())
		}
	}
	return out, nil
}
