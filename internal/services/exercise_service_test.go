package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/exercise"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/repository"
	"github.com/vytor/bunpo/internal/segmenter"
	"github.com/vytor/bunpo/internal/testutil/mocks"
)

func (f *serviceFixture) exercises(seed int64) ExerciseService {
	rnd := rand.New(rand.NewSource(seed))
	return NewExerciseService(f.grammar, f.local, segmenter.New(segmenter.DefaultConfig(), nil, rnd), rnd)
}

// wrongMeaningTile returns a meaning tile that does not pair with structure.
func wrongMeaningTile(board exercise.BoardView, keys []exercise.Tile, structure int) int {
	for i, t := range board.Tiles {
		if t.Kind == exercise.TileMeaning && !t.Solved && keys[i].Key != keys[structure].Key {
			return i
		}
	}
	return -1
}

func TestPairMatch_PersistsAndDemotes(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	require.NoError(t, f.grammar.SetStatus(ctx, "1", models.StatusLearned))
	svc := f.exercises(1)

	_, err := svc.ResumePairMatch(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	view, err := svc.StartPairMatch(ctx, PracticeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Board.Pairs)
	assert.Len(t, view.Board.Tiles, 6)

	var saved exercise.PairBoard
	ok, err := repository.GetJSON(ctx, f.local, repository.KeyPairMatchState, &saved)
	require.NoError(t, err)
	require.True(t, ok)

	structure := -1
	for i, tile := range saved.Tiles {
		if tile.Kind == exercise.TileStructure && tile.EntryID == "1" {
			structure = i
		}
	}
	_, err = svc.SelectPairTile(ctx, structure)
	require.NoError(t, err)
	view, err = svc.SelectPairTile(ctx, wrongMeaningTile(view.Board, saved.Tiles, structure))
	require.NoError(t, err)
	assert.Equal(t, exercise.OutcomeMismatch, view.Result.Outcome)
	assert.True(t, view.Demoted)
	assert.Equal(t, 1, view.Board.Mistakes)

	snap, err := f.grammar.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReview, snap.Status["1"])
	assert.Equal(t, models.Stat{Correct: 0, Total: 1}, snap.Stats["1"])

	// A second instance picks up the saved board.
	resumed := f.exercises(2)
	view, err = resumed.ResumePairMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Board.Mistakes)

	for !view.Board.Completed {
		hint, err := resumed.PairMatchHint(ctx)
		require.NoError(t, err)
		_, err = resumed.SelectPairTile(ctx, hint.Tiles[0])
		require.NoError(t, err)
		view, err = resumed.SelectPairTile(ctx, hint.Tiles[1])
		require.NoError(t, err)
		assert.Equal(t, exercise.OutcomeMatch, view.Result.Outcome)
	}

	_, ok, err = f.local.Get(ctx, repository.KeyPairMatchState)
	require.NoError(t, err)
	assert.False(t, ok, "finished boards are not kept")
	_, err = resumed.PairMatchHint(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestPairMatch_UnreadableStateIsDiscarded(t *testing.T) {
	ctx := context.Background()
	local := &mocks.MockLocalStore{}
	local.On("Get", mock.Anything, repository.KeyPairMatchState).Return([]byte("{not json"), true, nil).Once()
	local.On("Delete", mock.Anything, []string{repository.KeyPairMatchState}).Return(nil).Once()

	svc := NewExerciseService(nil, local, segmenter.New(segmenter.DefaultConfig(), nil, rand.New(rand.NewSource(1))), nil)
	_, err := svc.ResumePairMatch(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	local.AssertExpectations(t)
}

func TestPairMatch_LevelWithoutEntries(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.exercises(3).StartPairMatch(context.Background(), PracticeOptions{Level: "N5"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest))
}

func TestQuiz_AnswerSkipAndNext(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	svc := f.exercises(4)

	_, err := svc.AnswerQuiz(ctx, 0)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	view, err := svc.StartQuiz(ctx, PracticeOptions{Count: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Total)
	require.NotNil(t, view.Question)
	first := view.Question.EntryID

	_, err = svc.NextQuiz(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))

	view, err = svc.SkipQuiz(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, view.Question.EntryID)

	impl := svc.(*exerciseService)
	for !impl.quiz.Done() {
		id := impl.quiz.Current.EntryID
		answer, err := svc.AnswerQuiz(ctx, impl.quiz.Current.Correct)
		require.NoError(t, err)
		assert.True(t, answer.Correct)

		_, err = svc.AnswerQuiz(ctx, 0)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConflict))

		snap, err := f.grammar.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.Stat{Correct: 1, Total: 1}, snap.Stats[id])

		_, err = svc.NextQuiz(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, impl.quiz.Correct)
}

func TestScramble_CheckRecordsAnswer(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	svc := f.exercises(5)

	_, err := svc.CheckScramble(ctx, []string{"x"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	view, err := svc.StartScramble(ctx, PracticeOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, view.Tiles)
	assert.Empty(t, view.Sentence)

	_, err = svc.CheckScramble(ctx, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))

	sentence := svc.(*exerciseService).scramble.Sentence
	view, err = svc.CheckScramble(ctx, []string{sentence})
	require.NoError(t, err)
	assert.True(t, view.Correct)
	assert.Equal(t, sentence, view.Sentence)

	snap, err := f.grammar.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stat{Correct: 1, Total: 1}, snap.Stats[view.EntryID])
}
