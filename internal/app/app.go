package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/vytor/bunpo/internal/config"
	"github.com/vytor/bunpo/internal/db"
	"github.com/vytor/bunpo/internal/jobs"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/repository/sqlite"
	"github.com/vytor/bunpo/internal/segmenter"
	"github.com/vytor/bunpo/internal/services"
	"github.com/vytor/bunpo/internal/worker"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	DB     *db.DB
	Remote remote.Store
	Pool   *worker.Pool
	Queue  *jobs.WorkerQueue

	Grammar    services.GrammarService
	QuickLearn services.QuickLearnService
	Exercises  services.ExerciseService
	Imports    services.ImportService
	Notices    services.NoticeService
	Segmenter  *segmenter.Segmenter

	closers []func() error
}

// OpenRemote returns the remote store selected by cfg, wrapped with the
// retry policy. The "none" driver yields a store that is always offline.
func OpenRemote(ctx context.Context, cfg config.Config) (remote.Store, func() error, error) {
	noop := func() error { return nil }
	var store remote.Store
	closer := noop
	switch cfg.RemoteDriver {
	case config.RemoteNone:
		return remote.Disabled{}, noop, nil
	case config.RemoteMemory:
		store = remote.NewMemory()
	case config.RemoteHTTP:
		store = remote.NewHTTPStore(cfg.RemoteDSN, cfg.RemoteTimeout)
	case config.RemotePostgres:
		pg, err := remote.OpenPostgres(ctx, cfg.RemoteDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open remote store")
		}
		store, closer = pg, pg.Close
	default:
		return nil, nil, errors.Errorf("unknown remote driver %q", cfg.RemoteDriver)
	}
	return remote.WithRetry(store, remote.RetryPolicy{
		Attempts: cfg.RemoteRetries,
		Timeout:  cfg.RemoteTimeout,
		Backoff:  cfg.RemoteBackoff,
	}), closer, nil
}

// NewSegmenter builds the sentence segmenter, using the morphological
// analyzer when enabled and available.
func NewSegmenter(cfg config.Config, rnd *rand.Rand) *segmenter.Segmenter {
	var finder segmenter.BoundaryFinder
	if cfg.UseKagome {
		kf := segmenter.NewKagomeFinder()
		if err := kf.Warm(); err != nil {
			logger.Default().Warn("morphological analyzer unavailable, using particle boundaries: %v", err)
		} else {
			finder = kf
		}
	}
	segCfg := segmenter.DefaultConfig()
	segCfg.MinFragments = cfg.SegmentMinFragments
	return segmenter.New(segCfg, finder, rnd)
}

// New opens the local cache and the remote store and wires the services.
// Background work is not started; call Start for that.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	a := &App{DB: database}
	a.closers = append(a.closers, database.Close)

	store, closeRemote, err := OpenRemote(ctx, cfg)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.Remote = store
	a.closers = append(a.closers, closeRemote)

	local := sqlite.NewKVRepository(database.DB)
	a.Notices = services.NewNoticeService(sqlite.NewNoticeRepository(database.DB), 0)
	a.Pool = worker.NewPool(cfg.SyncWorkerCount, cfg.SyncQueueSize)
	a.Queue = jobs.NewWorkerQueue(a.Pool, store, a.Notices)

	a.Grammar = services.NewGrammarService(local, store, a.Queue, services.GrammarOptions{
		DefaultGoal: cfg.DefaultDailyGoal,
	})
	a.Queue.SetReconciler(a.Grammar)

	// Each service locks its own generator, so none of them is shared.
	seed := time.Now().UnixNano()
	a.Segmenter = NewSegmenter(cfg, rand.New(rand.NewSource(seed)))
	a.QuickLearn = services.NewQuickLearnService(a.Grammar, local, services.QuickLearnOptions{
		SessionSize: cfg.SessionSize,
		Rand:        rand.New(rand.NewSource(seed + 1)),
	})
	a.Exercises = services.NewExerciseService(a.Grammar, local, a.Segmenter, rand.New(rand.NewSource(seed+2)))
	a.Imports = services.NewImportService(a.Grammar)
	return a, nil
}

// Start runs the sync worker pool until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Pool.Start(ctx)
}

// Shutdown waits for queued remote writes until ctx is done, stops the
// worker pool and releases the stores.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Pool != nil {
		if err := a.Pool.Wait(ctx); err != nil {
			logger.Default().Warn("dropping queued remote writes: %v", err)
		}
		a.Pool.Stop()
	}
	return a.close()
}

func (a *App) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
