package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/config"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/remote"
	"github.com/vytor/bunpo/internal/services"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		DBPath:              "file:" + filepath.Join(t.TempDir(), "bunpo.db"),
		RemoteDriver:        config.RemoteMemory,
		RemoteTimeout:       time.Second,
		RemoteRetries:       1,
		SyncWorkerCount:     1,
		SyncQueueSize:       8,
		DefaultDailyGoal:    3,
		SessionSize:         5,
		SegmentMinFragments: 5,
	}
}

func TestOpenRemote(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	cfg.RemoteDriver = config.RemoteNone
	store, closer, err := OpenRemote(ctx, cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Ping(ctx), remote.ErrUnavailable)
	assert.NoError(t, closer())

	cfg.RemoteDriver = config.RemoteMemory
	store, _, err = OpenRemote(ctx, cfg)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(ctx))

	cfg.RemoteDriver = "carrier-pigeon"
	_, _, err = OpenRemote(ctx, cfg)
	assert.Error(t, err)
}

func TestNewWiresServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	a.Start(ctx)

	entries, err := a.Grammar.List(ctx, models.GrammarFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	created, err := a.Grammar.Create(ctx, models.GrammarInput{Structure: "～つつある", Meaning: "đang dần"})
	require.NoError(t, err)

	progress, err := a.Grammar.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.DailyGoal.Goal)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, a.Pool.Wait(waitCtx))
	data, err := a.Remote.Get(ctx, remote.CollectionGrammar, created.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "つつある")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	assert.NoError(t, a.Shutdown(shutdownCtx))
}

func TestNewServicesUseRandomnessConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	a.Start(ctx)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		assert.NoError(t, a.Shutdown(shutdownCtx))
	}()

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, 3*rounds)
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := a.QuickLearn.Start(ctx, services.StartOptions{Count: 3}); err != nil {
				errs <- err
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := a.Exercises.StartQuiz(ctx, services.PracticeOptions{Count: 2}); err != nil {
				errs <- err
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			frags := a.Segmenter.Segment("私は毎朝6時に起きて、公園を散歩することにしています。")
			if len(frags) == 0 {
				errs <- assert.AnError
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
