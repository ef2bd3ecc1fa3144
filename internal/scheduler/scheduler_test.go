package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/testutil/mocks"
)

type fakeRoller struct {
	calls  atomic.Int32
	rolled bool
	err    error
}

func (f *fakeRoller) RolloverDailyGoal(ctx context.Context) (bool, error) {
	f.calls.Add(1)
	return f.rolled, f.err
}

func TestScheduler_ResyncRunsOnInterval(t *testing.T) {
	queue := &mocks.MockSyncQueue{}
	var runs atomic.Int32
	queue.On("EnqueueReconcile").Run(func(mock.Arguments) { runs.Add(1) }).Return(nil)

	s := New(Config{Location: time.UTC, ResyncInterval: 20 * time.Millisecond}, &fakeRoller{}, queue)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_RolloverGoal(t *testing.T) {
	roller := &fakeRoller{rolled: true}
	s := New(Config{}, roller, nil)
	s.RolloverGoal()
	assert.Equal(t, int32(1), roller.calls.Load())

	roller.err = assert.AnError
	s.RolloverGoal()
	assert.Equal(t, int32(2), roller.calls.Load())
}

func TestScheduler_ResyncErrorIsLogged(t *testing.T) {
	queue := &mocks.MockSyncQueue{}
	queue.On("EnqueueReconcile").Return(assert.AnError).Once()

	s := New(Config{}, &fakeRoller{}, queue)
	s.Resync()
	queue.AssertExpectations(t)
}

func TestScheduler_StartWithoutResync(t *testing.T) {
	s := New(Config{Location: time.UTC}, &fakeRoller{}, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
