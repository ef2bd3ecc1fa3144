package services

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/repository"
)

func idAfter(n int) string {
	return strconv.Itoa(n + 1)
}

func decodeDocs(ctx context.Context, docs []remote.Doc) []models.GrammarEntry {
	remote.SortDocs(docs)
	out := make([]models.GrammarEntry, 0, len(docs))
	for _, d := range docs {
		var e models.GrammarEntry
		if !decodeInto(ctx, "grammar "+d.ID, d.Data, &e) {
			continue
		}
		e.ID = d.ID
		out = append(out, e)
	}
	return out
}

func decodeInto(ctx context.Context, what string, data []byte, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		logger.FromContext(ctx).WithPrefix("grammar").Warn("skipping undecodable remote %s: %v", what, err)
		return false
	}
	return true
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only plain data types are encoded here.
		panic(err)
	}
	return raw
}

func entrySetOp(e models.GrammarEntry) remote.Op {
	return remote.SetOp(remote.CollectionGrammar, e.ID, mustJSON(e), false)
}

func (s *grammarService) statsOp() remote.Op {
	return remote.SetOp(remote.CollectionStats, remote.DocStats, mustJSON(s.stats), true)
}

func (s *grammarService) statusOp() remote.Op {
	return remote.SetOp(remote.CollectionLearningStatus, remote.DocLearningStatus, mustJSON(s.status), false)
}

func (s *grammarService) goalOp() remote.Op {
	return remote.SetOp(remote.CollectionDailyGoals, remote.DocDailyGoal, mustJSON(s.goal), false)
}

// enqueue hands remote writes to the sync queue. The local state is already
// saved, so a failure here only produces a log line. Writes made while the
// remote is unreachable mark the data set dirty for the next Reconcile.
func (s *grammarService) enqueue(ctx context.Context, label string, ops ...remote.Op) {
	if len(ops) == 0 {
		return
	}
	if !s.synced {
		s.dirty = true
	}
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueWrite(label, ops); err != nil {
		logger.FromContext(ctx).WithPrefix("grammar").Warn("failed to enqueue remote write %s: %v", label, err)
	}
}

func (s *grammarService) persist(ctx context.Context, values map[string]any) error {
	if err := repository.PutJSONMany(ctx, s.local, values); err != nil {
		logger.FromContext(ctx).WithPrefix("grammar").Error("failed to save local data: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *grammarService) persistEntries(ctx context.Context) error {
	return s.persist(ctx, map[string]any{repository.KeyGrammar: s.entries})
}

// persistGoal saves and syncs the daily goal. Failures are logged only; the
// goal is recomputed on the next rollover.
func (s *grammarService) persistGoal(ctx context.Context) {
	if err := s.persist(ctx, map[string]any{repository.KeyDailyGoal: s.goal}); err != nil {
		return
	}
	s.enqueue(ctx, "daily_goal", s.goalOp())
}

// diffOps returns the writes that turn the before collection into after:
// deletes for ids that disappeared and sets for new or changed entries.
func diffOps(before, after []models.GrammarEntry) []remote.Op {
	prev := make(map[string]models.GrammarEntry, len(before))
	for _, e := range before {
		prev[e.ID] = e
	}
	var ops []remote.Op
	next := make(map[string]bool, len(after))
	for _, e := range after {
		next[e.ID] = true
		if old, ok := prev[e.ID]; ok && reflect.DeepEqual(old, e) {
			continue
		}
		ops = append(ops, entrySetOp(e))
	}
	for _, e := range before {
		if !next[e.ID] {
			ops = append(ops, remote.DeleteOp(remote.CollectionGrammar, e.ID))
		}
	}
	return ops
}

// Reconcile pushes the local data set to the remote store in one batch.
// When the last load could not reach the remote and nothing changed locally
// since, the remote copy wins and the data set is reloaded instead, so an
// untouched fallback copy never overwrites it. Local changes made while
// offline are always pushed.
func (s *grammarService) Reconcile(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("reconcile")
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx, false); err != nil {
		return err
	}
	if !s.synced && !s.dirty {
		log.Debug("reloading from remote before reconciling")
		if err := s.loadLocked(ctx, true); err != nil {
			return err
		}
		if !s.synced {
			return remote.ErrUnavailable
		}
		return nil
	}

	n, err := s.pushLocked(ctx)
	if err != nil {
		return err
	}
	log.Info("reconciled with remote: ops=%d", n)
	return nil
}

// pushLocked writes the diff between the remote grammar collection and the
// local entries, plus the stats, status and goal documents, in one batch.
func (s *grammarService) pushLocked(ctx context.Context) (int, error) {
	var ops []remote.Op
	push := func() error {
		docs, err := s.remote.List(ctx, remote.CollectionGrammar)
		if err != nil {
			return err
		}
		ops = diffOps(decodeDocs(ctx, docs), s.entries)
		ops = append(ops, s.statsOp(), s.statusOp(), s.goalOp())
		return s.remote.Commit(ctx, ops)
	}
	var err error
	if s.queue != nil {
		err = s.queue.Supersede(push)
	} else {
		err = push()
	}
	if err != nil {
		return 0, err
	}
	s.synced, s.dirty = true, false
	return len(ops), nil
}

// ClearAll removes every local key and, in one batch, every remote document.
func (s *grammarService) ClearAll(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("grammar")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	if err := s.local.Delete(ctx, repository.AllKeys...); err != nil {
		log.Error("failed to clear local data: %v", err)
		return errors.NewInternalError(err)
	}

	ops := make([]remote.Op, 0, len(s.entries)+3)
	for _, e := range s.entries {
		ops = append(ops, remote.DeleteOp(remote.CollectionGrammar, e.ID))
	}
	ops = append(ops,
		remote.DeleteOp(remote.CollectionStats, remote.DocStats),
		remote.DeleteOp(remote.CollectionLearningStatus, remote.DocLearningStatus),
		remote.DeleteOp(remote.CollectionDailyGoals, remote.DocDailyGoal),
	)
	s.enqueue(ctx, "clear_all", ops...)

	s.entries = []models.GrammarEntry{}
	s.stats = models.Stats{}
	s.status = models.StatusMap{}
	s.goal = models.NewDailyGoal(s.opts.DefaultGoal, s.opts.Now())
	s.plans = map[string]*pendingPlan{}
	log.Info("all data cleared")
	return nil
}
