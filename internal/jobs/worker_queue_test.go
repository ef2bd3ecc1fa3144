package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/worker"
)

func TestWorkerQueue_InlineWithoutPool(t *testing.T) {
	store := remote.NewMemory()
	q := NewWorkerQueue(nil, store, nil)

	require.NoError(t, q.EnqueueWrite("grammar", []remote.Op{
		remote.SetOp(remote.CollectionGrammar, "1", []byte(`{"structure":"a"}`), false),
	}))
	docs, err := store.List(context.Background(), remote.CollectionGrammar)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestWorkerQueue_EmptyBatchIsNoop(t *testing.T) {
	store := remote.NewMemory()
	q := NewWorkerQueue(nil, store, nil)
	require.NoError(t, q.EnqueueWrite("grammar", nil))
	assert.Equal(t, 0, store.Writes())
}

func TestWorkerQueue_UsesPool(t *testing.T) {
	store := remote.NewMemory()
	pool := worker.NewPool(1, 8)
	pool.Start(context.Background())
	defer pool.Stop()
	q := NewWorkerQueue(pool, store, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.EnqueueWrite("stats", []remote.Op{
			remote.SetOp(remote.CollectionStats, remote.DocStats, []byte(`{"1":{"correct":1,"total":1}}`), true),
		}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Wait(ctx))
	assert.Equal(t, 3, store.Writes())
}

type countingReconciler struct{ calls int }

func (c *countingReconciler) Reconcile(ctx context.Context) error {
	c.calls++
	return nil
}

func TestWorkerQueue_Reconcile(t *testing.T) {
	q := NewWorkerQueue(nil, remote.NewMemory(), nil)
	assert.Error(t, q.EnqueueReconcile())

	r := &countingReconciler{}
	q.SetReconciler(r)
	require.NoError(t, q.EnqueueReconcile())
	assert.Equal(t, 1, r.calls)
}

func statusWrite(q *WorkerQueue, n int) *orderedWrite {
	return &orderedWrite{
		q:   q,
		seq: q.seq.Add(1),
		job: &worker.RemoteWriteJob{
			Store: q.store,
			Label: "learning_status",
			Ops: []remote.Op{
				remote.SetOp(remote.CollectionLearningStatus, remote.DocLearningStatus, []byte(fmt.Sprintf(`{"n":%d}`, n)), false),
			},
		},
	}
}

func TestWorkerQueue_DropsOlderSnapshot(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	q := NewWorkerQueue(nil, store, nil)

	older, newer := statusWrite(q, 1), statusWrite(q, 2)
	require.NoError(t, newer.Run(ctx))
	require.NoError(t, older.Run(ctx))

	raw, err := store.Get(ctx, remote.CollectionLearningStatus, remote.DocLearningStatus)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(raw))
	assert.Equal(t, 1, store.Writes())
}

func TestWorkerQueue_SupersedeDropsEarlierWrites(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	q := NewWorkerQueue(nil, store, nil)

	pending := statusWrite(q, 1)
	require.NoError(t, q.Supersede(func() error {
		return store.Set(ctx, remote.CollectionLearningStatus, remote.DocLearningStatus, []byte(`{"n":5}`), false)
	}))
	require.NoError(t, pending.Run(ctx))

	raw, err := store.Get(ctx, remote.CollectionLearningStatus, remote.DocLearningStatus)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":5}`, string(raw))

	// Writes enqueued afterwards still land.
	require.NoError(t, q.EnqueueWrite("learning_status", []remote.Op{
		remote.SetOp(remote.CollectionLearningStatus, remote.DocLearningStatus, []byte(`{"n":6}`), false),
	}))
	raw, err = store.Get(ctx, remote.CollectionLearningStatus, remote.DocLearningStatus)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":6}`, string(raw))
}

func TestWorkerQueue_SupersedeFailureKeepsWrites(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	q := NewWorkerQueue(nil, store, nil)

	pending := statusWrite(q, 1)
	assert.ErrorIs(t, q.Supersede(func() error { return remote.ErrUnavailable }), remote.ErrUnavailable)
	require.NoError(t, pending.Run(ctx))
	assert.Equal(t, 1, store.Writes())
}

func TestWorkerQueue_LastSnapshotWinsAcrossWorkers(t *testing.T) {
	store := remote.NewMemory()
	pool := worker.NewPool(4, 64)
	pool.Start(context.Background())
	defer pool.Stop()
	q := NewWorkerQueue(pool, store, nil)

	for i := 1; i <= 40; i++ {
		require.NoError(t, q.EnqueueWrite("learning_status", []remote.Op{
			remote.SetOp(remote.CollectionLearningStatus, remote.DocLearningStatus, []byte(fmt.Sprintf(`{"n":%d}`, i)), false),
		}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Wait(ctx))

	raw, err := store.Get(context.Background(), remote.CollectionLearningStatus, remote.DocLearningStatus)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":40}`, string(raw))
}
