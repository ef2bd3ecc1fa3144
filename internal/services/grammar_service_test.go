package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/jobs"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/repository/sqlite"
	"github.com/vytor/bunpo/internal/testutil"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type GrammarServiceSuite struct {
	suite.Suite
	ctx   context.Context
	db    *sql.DB
	local repository.LocalStore
	store *remote.Memory
	now   time.Time
	svc   GrammarService
}

func (s *GrammarServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewTestDB(s.T())
	s.local = sqlite.NewKVRepository(s.db)
	s.store = remote.NewMemory()
	s.now = testNow
	s.svc = s.newService()
}

func (s *GrammarServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

// newService builds a service whose remote writes run inline.
func (s *GrammarServiceSuite) newService() GrammarService {
	queue := jobs.NewWorkerQueue(nil, s.store, nil)
	return NewGrammarService(s.local, s.store, queue, GrammarOptions{
		Now: func() time.Time { return s.now },
	})
}

func (s *GrammarServiceSuite) remoteEntries() []models.GrammarEntry {
	docs, err := s.store.List(s.ctx, remote.CollectionGrammar)
	s.Require().NoError(err)
	return decodeDocs(s.ctx, docs)
}

func (s *GrammarServiceSuite) remoteDoc(collection, id string, dst any) {
	raw, err := s.store.Get(s.ctx, collection, id)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, dst))
}

func (s *GrammarServiceSuite) TestLoadFallsBackToDefaults() {
	snap, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	s.Len(snap.Entries, 3)
	s.Equal("1", snap.Entries[0].ID)
	s.Equal("2026-03-14", snap.DailyGoal.Date)
	s.Equal(models.DefaultGoal, snap.DailyGoal.Goal)
	s.Empty(snap.Stats)
	s.Empty(snap.Status)
}

func (s *GrammarServiceSuite) TestLoadPrefersRemoteAndCachesIt() {
	s.Require().NoError(repository.PutJSON(s.ctx, s.local, repository.KeyGrammar, []models.GrammarEntry{
		{ID: "1", Structure: "ローカル", Meaning: "local"},
	}))
	s.Require().NoError(s.store.Set(s.ctx, remote.CollectionGrammar, "7",
		json.RawMessage(`{"structure":"～わけだ","meaning":"thì ra là"}`), false))
	s.Require().NoError(s.store.Set(s.ctx, remote.CollectionStats, remote.DocStats,
		json.RawMessage(`{"7":{"correct":2,"total":3}}`), false))

	snap, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(snap.Entries, 1)
	s.Equal("7", snap.Entries[0].ID)
	s.Equal(models.Stat{Correct: 2, Total: 3}, snap.Stats["7"])
	s.NotNil(snap.Entries[0].Examples)

	var cached []models.GrammarEntry
	ok, err := repository.GetJSON(s.ctx, s.local, repository.KeyGrammar, &cached)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("～わけだ", cached[0].Structure)
}

func (s *GrammarServiceSuite) TestLoadUsesLocalWhenRemoteIsDown() {
	s.Require().NoError(repository.PutJSON(s.ctx, s.local, repository.KeyGrammar, []models.GrammarEntry{
		{ID: "4", Structure: "～ものだ", Meaning: "thường là"},
	}))
	s.store.SetUnavailable(true)

	snap, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(snap.Entries, 1)
	s.Equal("4", snap.Entries[0].ID)

	s.ErrorIs(s.svc.Reconcile(s.ctx), remote.ErrUnavailable)

	// Once the remote is back the next reconcile reloads instead of pushing.
	s.store.SetUnavailable(false)
	s.Require().NoError(s.svc.Reconcile(s.ctx))
	s.Equal(0, s.store.Writes())
}

func (s *GrammarServiceSuite) TestReconcilePushesChangesMadeOffline() {
	s.Require().NoError(s.store.Set(s.ctx, remote.CollectionGrammar, "1",
		json.RawMessage(`{"structure":"～わけだ","meaning":"thảo nào"}`), false))
	s.store.SetUnavailable(true)

	_, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	created, err := s.svc.Create(s.ctx, models.GrammarInput{Structure: "オフライン", Meaning: "ngoại tuyến"})
	s.Require().NoError(err)
	s.Equal("4", created.ID)

	s.ErrorIs(s.svc.Reconcile(s.ctx), remote.ErrUnavailable)

	s.store.SetUnavailable(false)
	s.Require().NoError(s.svc.Reconcile(s.ctx))

	got, err := s.svc.Get(s.ctx, "4")
	s.Require().NoError(err)
	s.Equal("オフライン", got.Structure)

	ids := []string{}
	for _, e := range s.remoteEntries() {
		ids = append(ids, e.ID)
	}
	s.Contains(ids, "4")

	// A fresh instance reads the pushed copy back from the remote.
	fresh, err := s.newService().Load(s.ctx, false)
	s.Require().NoError(err)
	s.Contains(lo.Map(fresh.Entries, func(e models.GrammarEntry, _ int) string { return e.ID }), "4")
}

func (s *GrammarServiceSuite) TestForcedLoadKeepsChangesMadeOffline() {
	s.store.SetUnavailable(true)
	_, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, models.GrammarInput{Structure: "～ばかりに", Meaning: "chỉ vì"})
	s.Require().NoError(err)

	// Still offline: the local data set is kept as is.
	snap, err := s.svc.Load(s.ctx, true)
	s.Require().NoError(err)
	s.Len(snap.Entries, 4)

	s.store.SetUnavailable(false)
	snap, err = s.svc.Load(s.ctx, true)
	s.Require().NoError(err)
	s.Len(snap.Entries, 4)
	s.Len(s.remoteEntries(), 4)
}

func (s *GrammarServiceSuite) TestLoadResetsStaleDailyGoal() {
	s.Require().NoError(repository.PutJSON(s.ctx, s.local, repository.KeyDailyGoal, models.DailyGoal{
		Date:       "2026-03-13",
		Goal:       5,
		LearnedIDs: []string{"1"},
	}))
	s.store.SetUnavailable(true)

	snap, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	s.Equal("2026-03-14", snap.DailyGoal.Date)
	s.Equal(5, snap.DailyGoal.Goal)
	s.Empty(snap.DailyGoal.LearnedIDs)

	var cached models.DailyGoal
	ok, err := repository.GetJSON(s.ctx, s.local, repository.KeyDailyGoal, &cached)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("2026-03-14", cached.Date)
	s.Empty(cached.LearnedIDs)
}

func (s *GrammarServiceSuite) TestLoadIsCachedUntilForced() {
	_, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Set(s.ctx, remote.CollectionGrammar, "9",
		json.RawMessage(`{"structure":"～っけ","meaning":"nhỉ"}`), false))

	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Len(snap.Entries, 3)

	snap, err = s.svc.Load(s.ctx, true)
	s.Require().NoError(err)
	s.Len(snap.Entries, 1)
}

func (s *GrammarServiceSuite) TestCreateValidatesAndSyncs() {
	_, err := s.svc.Create(s.ctx, models.GrammarInput{Meaning: "x"})
	s.True(errors.HasCode(err, errors.ErrCodeValidation))

	_, err = s.svc.Create(s.ctx, models.GrammarInput{Structure: "x"})
	s.True(errors.HasCode(err, errors.ErrCodeValidation))

	_, err = s.svc.Create(s.ctx, models.GrammarInput{Structure: "ことにする", Meaning: "trùng"})
	s.True(errors.HasCode(err, errors.ErrCodeConflict))

	created, err := s.svc.Create(s.ctx, models.GrammarInput{
		Structure:    " ～ざるを得ない ",
		Meaning:      "đành phải",
		Level:        "N2",
		ExamplesText: "行かざるを得ない。\nĐành phải đi.",
	})
	s.Require().NoError(err)
	s.Equal("4", created.ID)
	s.Equal("～ざるを得ない", created.Structure)
	s.Equal([]models.Example{{JP: "行かざるを得ない。", VI: "Đành phải đi."}}, created.Examples)

	remoteEntries := s.remoteEntries()
	s.Require().Len(remoteEntries, 1)
	s.Equal("4", remoteEntries[0].ID)

	got, err := s.svc.Get(s.ctx, "4")
	s.Require().NoError(err)
	s.Equal("đành phải", got.Meaning)
}

func (s *GrammarServiceSuite) TestUpdateAndDelete() {
	var seen []models.GrammarEntry
	s.svc.OnEntryUpdated(func(_ context.Context, e models.GrammarEntry) { seen = append(seen, e) })

	meaning := "Quyết định"
	updated, err := s.svc.Update(s.ctx, "1", models.GrammarPatch{Meaning: &meaning})
	s.Require().NoError(err)
	s.Equal("Quyết định", updated.Meaning)
	s.Equal("～ことにする", updated.Structure)
	s.Require().Len(seen, 1)
	s.Equal("1", seen[0].ID)

	structure := "～かのようだ"
	_, err = s.svc.Update(s.ctx, "1", models.GrammarPatch{Structure: &structure})
	s.True(errors.HasCode(err, errors.ErrCodeConflict))

	_, err = s.svc.Update(s.ctx, "99", models.GrammarPatch{Meaning: &meaning})
	s.True(errors.HasCode(err, errors.ErrCodeNotFound))

	s.Require().NoError(s.svc.Delete(s.ctx, "2"))
	s.Require().NoError(s.svc.Delete(s.ctx, "2"))
	_, err = s.svc.Get(s.ctx, "2")
	s.True(errors.HasCode(err, errors.ErrCodeNotFound))

	// A new entry takes the id after the highest remaining one.
	created, err := s.svc.Create(s.ctx, models.GrammarInput{Structure: "～ばかりに", Meaning: "chỉ vì"})
	s.Require().NoError(err)
	s.Equal("4", created.ID)
}

func (s *GrammarServiceSuite) TestListFiltersAndSorts() {
	_, err := s.svc.Create(s.ctx, models.GrammarInput{Structure: "～あげく", Meaning: "rốt cuộc", Level: "N2"})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SetStatus(s.ctx, "2", models.StatusLearned))
	s.Require().NoError(s.svc.SetStatus(s.ctx, "3", models.StatusReview))

	ids := func(entries []models.GrammarEntry) []string {
		out := []string{}
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	all, err := s.svc.List(s.ctx, models.GrammarFilter{})
	s.Require().NoError(err)
	s.Equal([]string{"1", "2", "3", "4"}, ids(all))

	newest, err := s.svc.List(s.ctx, models.GrammarFilter{Sort: models.SortNewest})
	s.Require().NoError(err)
	s.Equal([]string{"4", "3", "2", "1"}, ids(newest))

	learned, err := s.svc.List(s.ctx, models.GrammarFilter{Status: string(models.StatusLearned)})
	s.Require().NoError(err)
	s.Equal([]string{"2"}, ids(learned))

	unset, err := s.svc.List(s.ctx, models.GrammarFilter{Status: models.FilterUnset})
	s.Require().NoError(err)
	s.Equal([]string{"1", "4"}, ids(unset))

	n2, err := s.svc.List(s.ctx, models.GrammarFilter{Level: "n2"})
	s.Require().NoError(err)
	s.Equal([]string{"4"}, ids(n2))

	unclassified, err := s.svc.List(s.ctx, models.GrammarFilter{Level: models.FilterUnclassified})
	s.Require().NoError(err)
	s.Equal([]string{"1", "2", "3"}, ids(unclassified))

	found, err := s.svc.List(s.ctx, models.GrammarFilter{Query: "RỐT"})
	s.Require().NoError(err)
	s.Equal([]string{"4"}, ids(found))

	levels, err := s.svc.Levels(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"N2"}, levels)
}

func (s *GrammarServiceSuite) TestSetStatus() {
	s.True(errors.HasCode(s.svc.SetStatus(s.ctx, "1", "mastered"), errors.ErrCodeValidation))
	s.True(errors.HasCode(s.svc.SetStatus(s.ctx, "99", models.StatusLearned), errors.ErrCodeNotFound))

	s.Require().NoError(s.svc.SetStatus(s.ctx, "1", models.StatusLearned))
	var status models.StatusMap
	s.remoteDoc(remote.CollectionLearningStatus, remote.DocLearningStatus, &status)
	s.Equal(models.StatusLearned, status["1"])

	s.Require().NoError(s.svc.SetStatus(s.ctx, "1", models.StatusUnset))
	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.NotContains(snap.Status, "1")
}

func (s *GrammarServiceSuite) TestRecordAnswerDemotesAfterFourthMiss() {
	s.Require().NoError(s.svc.SetStatus(s.ctx, "1", models.StatusLearned))

	for i := 0; i < 3; i++ {
		out, err := s.svc.RecordAnswer(s.ctx, "1", false)
		s.Require().NoError(err)
		s.False(out.Demoted)
	}
	out, err := s.svc.RecordAnswer(s.ctx, "1", true)
	s.Require().NoError(err)
	s.False(out.Demoted)

	out, err = s.svc.RecordAnswer(s.ctx, "1", false)
	s.Require().NoError(err)
	s.True(out.Demoted)
	s.Equal(models.StatusReview, out.Status)
	s.Equal(models.Stat{Correct: 1, Total: 5}, out.Stat)

	var stats models.Stats
	s.remoteDoc(remote.CollectionStats, remote.DocStats, &stats)
	s.Equal(models.Stat{Correct: 1, Total: 5}, stats["1"])
	var status models.StatusMap
	s.remoteDoc(remote.CollectionLearningStatus, remote.DocLearningStatus, &status)
	s.Equal(models.StatusReview, status["1"])

	out, err = s.svc.RecordAnswer(s.ctx, "unknown", true)
	s.NoError(err)
	s.Nil(out)
}

func (s *GrammarServiceSuite) TestRecordPairAttemptDemotesOnFirstMiss() {
	s.Require().NoError(s.svc.SetStatus(s.ctx, "2", models.StatusLearned))

	out, err := s.svc.RecordPairAttempt(s.ctx, "2", true)
	s.Require().NoError(err)
	s.False(out.Demoted)

	out, err = s.svc.RecordPairAttempt(s.ctx, "2", false)
	s.Require().NoError(err)
	s.True(out.Demoted)
	s.Equal(models.StatusReview, out.Status)
}

func (s *GrammarServiceSuite) TestCompleteLearningAndDailyGoal() {
	goal, err := s.svc.CompleteLearning(s.ctx, []string{"1", "2", "99"}, []string{"1", "2", "3"})
	s.Require().NoError(err)
	s.Equal([]string{"1", "2", "3"}, goal.LearnedIDs)

	goal, err = s.svc.CompleteLearning(s.ctx, nil, []string{"3"})
	s.Require().NoError(err)
	s.Len(goal.LearnedIDs, 3)

	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusLearned, snap.Status["1"])
	s.NotContains(snap.Status, "3")
	s.NotContains(snap.Status, "99")

	today, err := s.svc.LearnedToday(s.ctx)
	s.Require().NoError(err)
	s.Len(today, 3)

	var remoteGoal models.DailyGoal
	s.remoteDoc(remote.CollectionDailyGoals, remote.DocDailyGoal, &remoteGoal)
	s.Equal([]string{"1", "2", "3"}, remoteGoal.LearnedIDs)

	_, err = s.svc.SetDailyGoal(s.ctx, 0)
	s.True(errors.HasCode(err, errors.ErrCodeValidation))
	goal, err = s.svc.SetDailyGoal(s.ctx, 3)
	s.Require().NoError(err)
	s.True(goal.Reached())

	progress, err := s.svc.Progress(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, progress.Total)
	s.Equal(2, progress.Learned)
	s.Equal(1, progress.Unset)
	s.True(progress.GoalReached)

	// The next day starts empty but keeps the target.
	s.now = s.now.Add(24 * time.Hour)
	rolled, err := s.svc.RolloverDailyGoal(s.ctx)
	s.Require().NoError(err)
	s.True(rolled)
	rolled, err = s.svc.RolloverDailyGoal(s.ctx)
	s.Require().NoError(err)
	s.False(rolled)

	snap, err = s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal("2026-03-15", snap.DailyGoal.Date)
	s.Equal(3, snap.DailyGoal.Goal)
	s.Empty(snap.DailyGoal.LearnedIDs)
}

func (s *GrammarServiceSuite) TestReconcilePushesLocalState() {
	_, err := s.svc.Load(s.ctx, false)
	s.Require().NoError(err)
	_, err = s.svc.RecordAnswer(s.ctx, "1", true)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Set(s.ctx, remote.CollectionGrammar, "50",
		json.RawMessage(`{"structure":"stray","meaning":"stray"}`), false))
	s.Require().NoError(s.svc.Reconcile(s.ctx))

	ids := []string{}
	for _, e := range s.remoteEntries() {
		ids = append(ids, e.ID)
	}
	s.Equal([]string{"1", "2", "3"}, ids)

	var goal models.DailyGoal
	s.remoteDoc(remote.CollectionDailyGoals, remote.DocDailyGoal, &goal)
	s.Equal("2026-03-14", goal.Date)
}

func (s *GrammarServiceSuite) TestClearAll() {
	_, err := s.svc.Create(s.ctx, models.GrammarInput{Structure: "～うちに", Meaning: "trong khi"})
	s.Require().NoError(err)
	_, err = s.svc.RecordAnswer(s.ctx, "4", true)
	s.Require().NoError(err)
	s.Require().NoError(repository.PutJSON(s.ctx, s.local, repository.KeyPairMatchState, map[string]int{"solved": 1}))

	s.Require().NoError(s.svc.ClearAll(s.ctx))

	keys, err := s.local.Keys(s.ctx)
	s.Require().NoError(err)
	s.Empty(keys)
	s.Empty(s.remoteEntries())
	_, err = s.store.Get(s.ctx, remote.CollectionStats, remote.DocStats)
	s.ErrorIs(err, remote.ErrNotFound)

	snap, err := s.svc.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.Entries)

	// A fresh instance finds nothing cached and starts from the bundled set.
	fresh, err := s.newService().Load(s.ctx, false)
	s.Require().NoError(err)
	s.Len(fresh.Entries, 3)
}

func TestGrammarServiceSuite(t *testing.T) {
	suite.Run(t, new(GrammarServiceSuite))
}
