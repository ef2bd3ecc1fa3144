package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/repository/sqlite"
	"github.com/vytor/bunpo/internal/testutil"
)

type KVRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	repo repository.LocalStore
}

func (s *KVRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewKVRepository(s.db)
}

func (s *KVRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *KVRepositorySuite) TestGetMissing() {
	_, ok, err := s.repo.Get(context.Background(), repository.KeyGrammar)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *KVRepositorySuite) TestPutOverwrites() {
	ctx := context.Background()
	s.Require().NoError(s.repo.Put(ctx, repository.KeyDailyGoal, []byte(`{"goal":5}`)))
	s.Require().NoError(s.repo.Put(ctx, repository.KeyDailyGoal, []byte(`{"goal":7}`)))

	raw, ok, err := s.repo.Get(ctx, repository.KeyDailyGoal)
	s.Require().NoError(err)
	s.True(ok)
	s.JSONEq(`{"goal":7}`, string(raw))
}

func (s *KVRepositorySuite) TestPutManyAndDelete() {
	ctx := context.Background()
	err := repository.PutJSONMany(ctx, s.repo, map[string]any{
		repository.KeyStats:          models.Stats{"1": {Correct: 1, Total: 2}},
		repository.KeyLearningStatus: models.StatusMap{"1": models.StatusLearned},
		repository.KeyPairMatchState: map[string]int{"solved": 2},
	})
	s.Require().NoError(err)

	keys, err := s.repo.Keys(ctx)
	s.Require().NoError(err)
	s.Equal([]string{repository.KeyStats, repository.KeyLearningStatus, repository.KeyPairMatchState}, keys)

	var stats models.Stats
	ok, err := repository.GetJSON(ctx, s.repo, repository.KeyStats, &stats)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(models.Stat{Correct: 1, Total: 2}, stats["1"])

	s.Require().NoError(s.repo.Delete(ctx, repository.KeyStats, repository.KeyPairMatchState))
	keys, err = s.repo.Keys(ctx)
	s.Require().NoError(err)
	s.Equal([]string{repository.KeyLearningStatus}, keys)
}

func (s *KVRepositorySuite) TestGetJSONRejectsCorruptValue() {
	ctx := context.Background()
	s.Require().NoError(s.repo.Put(ctx, repository.KeyStats, []byte("{not json")))

	var stats models.Stats
	ok, err := repository.GetJSON(ctx, s.repo, repository.KeyStats, &stats)
	s.Error(err)
	s.False(ok)
}

func TestKVRepositorySuite(t *testing.T) {
	suite.Run(t, new(KVRepositorySuite))
}

type NoticeRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	repo repository.NoticeRepository
}

func (s *NoticeRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewNoticeRepository(s.db)
}

func (s *NoticeRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *NoticeRepositorySuite) TestInsertAfterPrune() {
	ctx := context.Background()
	var ids []int64
	for _, msg := range []string{"a", "b", "c"} {
		id, err := s.repo.Insert(ctx, repository.Notice{Level: "warn", Source: "sync", Message: msg})
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	after, err := s.repo.After(ctx, ids[0], 10)
	s.Require().NoError(err)
	s.Require().Len(after, 2)
	s.Equal("b", after[0].Message)
	s.False(after[0].CreatedAt.IsZero())

	s.Require().NoError(s.repo.Prune(ctx, 1))
	all, err := s.repo.After(ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("c", all[0].Message)
}

func TestNoticeRepositorySuite(t *testing.T) {
	suite.Run(t, new(NoticeRepositorySuite))
}
