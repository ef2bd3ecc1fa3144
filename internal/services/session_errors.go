package services

import (
	stderrors "errors"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/exercise"
	"github.com/vytor/bunpo/internal/quicklearn"
)

// sessionError maps exercise and session errors onto AppErrors. Errors
// that are already AppErrors pass through; anything else is internal.
func sessionError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, quicklearn.ErrComplete),
		stderrors.Is(err, quicklearn.ErrWrongStep),
		stderrors.Is(err, quicklearn.ErrPairsUnsolved),
		stderrors.Is(err, quicklearn.ErrAnswerRequired),
		stderrors.Is(err, quicklearn.ErrAlreadySkipped),
		stderrors.Is(err, quicklearn.ErrAlreadyAnswered),
		stderrors.Is(err, exercise.ErrAlreadyAnswered),
		stderrors.Is(err, exercise.ErrBoardComplete):
		return errors.NewConflictError(err.Error())
	case stderrors.Is(err, quicklearn.ErrNoEntriesForLevel),
		stderrors.Is(err, quicklearn.ErrNothingToLearn),
		stderrors.Is(err, exercise.ErrInvalidOption),
		stderrors.Is(err, exercise.ErrInvalidTile),
		stderrors.Is(err, exercise.ErrNoExamples),
		stderrors.Is(err, exercise.ErrNoEntries):
		return errors.NewBadRequestError(err.Error())
	}
	return errors.NewInternalError(err)
}
