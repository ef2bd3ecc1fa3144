package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/repository/sqlite"
	"github.com/vytor/bunpo/internal/testutil"
	"github.com/vytor/bunpo/internal/testutil/mocks"
)

// newMockedGrammar returns a service over a fresh local cache whose remote
// writes go to a mock queue.
func newMockedGrammar(t *testing.T, now *time.Time) (GrammarService, *mocks.MockSyncQueue) {
	t.Helper()
	conn := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.MustClose(t, conn) })
	queue := &mocks.MockSyncQueue{}
	svc := NewGrammarService(sqlite.NewKVRepository(conn), remote.NewMemory(), queue, GrammarOptions{
		Now: func() time.Time { return *now },
	})
	return svc, queue
}

func opsByKind(ops []remote.Op) (sets, deletes []string) {
	for _, op := range ops {
		if op.Kind == remote.OpDelete {
			deletes = append(deletes, op.ID)
		} else {
			sets = append(sets, op.ID)
		}
	}
	return sets, deletes
}

func TestImport_PlanAndApply(t *testing.T) {
	ctx := context.Background()
	now := testNow
	svc, queue := newMockedGrammar(t, &now)

	var written []remote.Op
	queue.On("EnqueueWrite", "grammar_import", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]remote.Op) }).
		Return(nil).Once()

	plan, err := svc.PlanImport(ctx, []models.GrammarEntry{
		{Structure: "ことにする", Meaning: "Quyết định", Level: "N3"},
		{Structure: "～かのようだ", Meaning: "Như thể"},
		{Structure: "～ことになっている", Meaning: "Quy định"},
		{Structure: "～にすぎない", Meaning: "Chỉ là"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Token)
	assert.Equal(t, 3, plan.Duplicates)
	require.NotNil(t, plan.Items[0].Existing)
	assert.Equal(t, "1", plan.Items[0].Existing.ID)
	assert.Nil(t, plan.Items[3].Existing)

	again, err := svc.ImportPlan(ctx, plan.Token)
	require.NoError(t, err)
	assert.Equal(t, plan.Items, again.Items)

	_, err = svc.ApplyImport(ctx, plan.Token, map[int]models.ImportDecision{0: "merge"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))

	result, err := svc.ApplyImport(ctx, plan.Token, map[int]models.ImportDecision{
		0: models.DecisionUpdate,
		1: models.DecisionAdd,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ImportResult{Added: 2, Updated: 1, Skipped: 1}, *result)

	updated, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Quyết định", updated.Meaning)
	assert.Equal(t, "N3", updated.Level)
	assert.Equal(t, "ことにする", updated.Structure)
	assert.NotEmpty(t, updated.Examples, "empty incoming fields keep the existing value")

	skipped, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Được quy định là, có quy định là", skipped.Meaning)

	all, err := svc.List(ctx, models.GrammarFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "4", all[3].ID)
	assert.Equal(t, "～かのようだ", all[3].Structure)
	assert.Equal(t, "5", all[4].ID)

	sets, deletes := opsByKind(written)
	assert.ElementsMatch(t, []string{"1", "4", "5"}, sets)
	assert.Empty(t, deletes)

	_, err = svc.ImportPlan(ctx, plan.Token)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound), "applied plans are consumed")
	queue.AssertExpectations(t)
}

func TestImport_PlanExpires(t *testing.T) {
	ctx := context.Background()
	now := testNow
	svc, _ := newMockedGrammar(t, &now)

	plan, err := svc.PlanImport(ctx, []models.GrammarEntry{{Structure: "～おかげで", Meaning: "nhờ"}})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = svc.ApplyImport(ctx, plan.Token, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	_, err = svc.PlanImport(ctx, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest))
}

func TestReplaceAll_WritesOnlyTheDifference(t *testing.T) {
	ctx := context.Background()
	now := testNow
	svc, queue := newMockedGrammar(t, &now)

	var written []remote.Op
	queue.On("EnqueueWrite", "grammar_replace", mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]remote.Op) }).
		Return(nil).Once()

	before, err := svc.Get(ctx, "1")
	require.NoError(t, err)

	result, err := svc.ReplaceAll(ctx, []models.GrammarEntry{
		*before,
		{ID: "3", Structure: "～かのようだ", Meaning: "Như thể"},
		{Structure: "～ものなら", Meaning: "nếu mà"},
		{ID: "3", Structure: "～ようがない", Meaning: "không có cách nào"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Added)

	all, err := svc.List(ctx, models.GrammarFilter{})
	require.NoError(t, err)
	ids := []string{}
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"1", "3", "4", "5"}, ids)

	sets, deletes := opsByKind(written)
	assert.ElementsMatch(t, []string{"3", "4", "5"}, sets)
	assert.Equal(t, []string{"2"}, deletes)

	_, err = svc.ReplaceAll(ctx, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest))
	queue.AssertExpectations(t)
}

func TestExportAll_RoundTrips(t *testing.T) {
	ctx := context.Background()
	now := testNow
	svc, _ := newMockedGrammar(t, &now)

	out, err := svc.ExportAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  {\n    \"id\": \"1\"")

	var entries []models.GrammarEntry
	require.NoError(t, json.Unmarshal(out, &entries))
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Entries, entries)
}

func TestRemoteFailureKeepsLocalChange(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewTestDB(t)
	defer testutil.MustClose(t, conn)
	local := sqlite.NewKVRepository(conn)

	store := &mocks.MockRemoteStore{}
	store.On("List", mock.Anything, remote.CollectionGrammar).Return(nil, remote.ErrUnavailable)
	store.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, remote.ErrUnavailable)

	queue := &mocks.MockSyncQueue{}
	queue.On("EnqueueWrite", "grammar_create", mock.Anything).Return(assert.AnError)

	svc := NewGrammarService(local, store, queue, GrammarOptions{Now: func() time.Time { return testNow }})
	created, err := svc.Create(ctx, models.GrammarInput{Structure: "～だけあって", Meaning: "quả không hổ danh"})
	require.NoError(t, err)

	var cached []models.GrammarEntry
	ok, err := repository.GetJSON(ctx, local, repository.KeyGrammar, &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, cached[len(cached)-1].ID)
	queue.AssertExpectations(t)
}
