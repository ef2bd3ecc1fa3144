package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/worker"
)

// inlineTimeout bounds a write that runs on the caller's goroutine.
const inlineTimeout = 30 * time.Second

// WorkerQueue implements SyncQueue using a worker pool. Without a pool, or
// when the pool queue is full, work runs on the caller's goroutine.
//
// Every write is stamped with its enqueue order. Commits run one at a time
// and a write never replaces a document already written by a later one, so
// snapshots committed out of order by parallel workers are dropped.
type WorkerQueue struct {
	pool     *worker.Pool
	store    remote.Store
	reporter worker.FailureReporter

	mu         sync.RWMutex
	reconciler worker.Reconciler

	seq      atomic.Uint64
	commitMu sync.Mutex
	applied  map[string]uint64
	floor    uint64
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, store remote.Store, reporter worker.FailureReporter) *WorkerQueue {
	return &WorkerQueue{
		pool:     pool,
		store:    store,
		reporter: reporter,
		applied:  map[string]uint64{},
	}
}

// SetReconciler wires the component that owns the full local state.
func (q *WorkerQueue) SetReconciler(r worker.Reconciler) {
	q.mu.Lock()
	q.reconciler = r
	q.mu.Unlock()
}

func (q *WorkerQueue) EnqueueWrite(label string, ops []remote.Op) error {
	if len(ops) == 0 {
		return nil
	}
	return q.submit(&orderedWrite{
		q:   q,
		seq: q.seq.Add(1),
		job: &worker.RemoteWriteJob{
			Store:    q.store,
			Label:    label,
			Ops:      ops,
			Reporter: q.reporter,
		},
	})
}

func (q *WorkerQueue) EnqueueReconcile() error {
	q.mu.RLock()
	r := q.reconciler
	q.mu.RUnlock()
	if r == nil {
		return errors.New("no reconciler configured")
	}
	return q.submit(&worker.ReconcileJob{Reconciler: r, Reporter: q.reporter})
}

// Supersede runs fn, which pushes the full state, between queued commits.
// When fn succeeds every write enqueued before the call is dropped.
func (q *WorkerQueue) Supersede(fn func() error) error {
	seq := q.seq.Load()
	q.commitMu.Lock()
	defer q.commitMu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	if seq > q.floor {
		q.floor = seq
	}
	return nil
}

func (q *WorkerQueue) submit(job worker.Job) error {
	if q.pool != nil {
		err := q.pool.Submit(job)
		if !errors.Is(err, worker.ErrQueueFull) {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
	defer cancel()
	log := logger.Default().WithField("job", job.Name())
	// Failures are already reported by the job.
	if err := job.Run(logger.NewContext(ctx, log)); err != nil {
		log.Debug("inline job failed: %v", err)
	}
	return nil
}

func opKey(op remote.Op) string {
	return op.Collection + "/" + op.ID
}

// fresh drops ops superseded by a later write or by Supersede. The caller
// holds commitMu.
func (q *WorkerQueue) fresh(seq uint64, ops []remote.Op) []remote.Op {
	if seq <= q.floor {
		return nil
	}
	out := make([]remote.Op, 0, len(ops))
	for _, op := range ops {
		if q.applied[opKey(op)] > seq {
			continue
		}
		out = append(out, op)
	}
	return out
}

type orderedWrite struct {
	q   *WorkerQueue
	seq uint64
	job *worker.RemoteWriteJob
}

func (w *orderedWrite) Name() string { return w.job.Name() }

func (w *orderedWrite) Run(ctx context.Context) error {
	w.q.commitMu.Lock()
	defer w.q.commitMu.Unlock()

	ops := w.q.fresh(w.seq, w.job.Ops)
	if len(ops) == 0 {
		logger.FromContext(ctx).WithField("label", w.job.Label).Debug("dropping stale remote write %d", w.seq)
		return nil
	}
	w.job.Ops = ops
	if err := w.job.Run(ctx); err != nil {
		return err
	}
	for _, op := range ops {
		w.q.applied[opKey(op)] = w.seq
	}
	return nil
}
