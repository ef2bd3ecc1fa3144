package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/remote"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

// storeContract runs the behavior every Store implementation must share.
func storeContract(t *testing.T, store remote.Store) {
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, remote.CollectionStats, remote.DocStats)
	assert.ErrorIs(t, err, remote.ErrNotFound)

	require.NoError(t, store.Set(ctx, remote.CollectionGrammar, "10", raw(`{"structure":"b"}`), false))
	require.NoError(t, store.Set(ctx, remote.CollectionGrammar, "2", raw(`{"structure":"a"}`), false))
	docs, err := store.List(ctx, remote.CollectionGrammar)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[0].ID)
	assert.Equal(t, "10", docs[1].ID)

	require.NoError(t, store.Set(ctx, remote.CollectionStats, remote.DocStats, raw(`{"1":{"correct":1,"total":1}}`), true))
	require.NoError(t, store.Set(ctx, remote.CollectionStats, remote.DocStats, raw(`{"2":{"correct":0,"total":1}}`), true))
	data, err := store.Get(ctx, remote.CollectionStats, remote.DocStats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"correct":1,"total":1},"2":{"correct":0,"total":1}}`, string(data))

	require.NoError(t, store.Set(ctx, remote.CollectionStats, remote.DocStats, raw(`{"3":{"correct":1,"total":1}}`), false))
	data, err = store.Get(ctx, remote.CollectionStats, remote.DocStats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"3":{"correct":1,"total":1}}`, string(data))

	err = store.Commit(ctx, []remote.Op{
		remote.DeleteOp(remote.CollectionGrammar, "10"),
		remote.SetOp(remote.CollectionGrammar, "3", raw(`{"structure":"c"}`), false),
	})
	require.NoError(t, err)
	docs, err = store.List(ctx, remote.CollectionGrammar)
	require.NoError(t, err)
	ids := []string{}
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"2", "3"}, ids)

	require.NoError(t, store.Delete(ctx, remote.CollectionGrammar, "2"))
	require.NoError(t, store.Delete(ctx, remote.CollectionGrammar, "missing"))
}

func TestMemory_Contract(t *testing.T) {
	storeContract(t, remote.NewMemory())
}

func TestMemory_CommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	require.NoError(t, store.Set(ctx, remote.CollectionStats, remote.DocStats, raw(`[1,2]`), false))

	err := store.Commit(ctx, []remote.Op{
		remote.SetOp(remote.CollectionGrammar, "1", raw(`{"structure":"a"}`), false),
		remote.SetOp(remote.CollectionStats, remote.DocStats, raw(`{"1":{}}`), true),
	})
	require.Error(t, err)

	docs, err := store.List(ctx, remote.CollectionGrammar)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemory_Unavailable(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	store.SetUnavailable(true)

	_, err := store.List(ctx, remote.CollectionGrammar)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.ErrorIs(t, store.Set(ctx, remote.CollectionGrammar, "1", raw(`{}`), false), remote.ErrUnavailable)

	store.SetUnavailable(false)
	assert.NoError(t, store.Ping(ctx))
}

func TestCommit_RejectsInvalidOps(t *testing.T) {
	err := remote.NewMemory().Commit(context.Background(), []remote.Op{{Kind: "upsert", Collection: "c", ID: "1"}})
	assert.Error(t, err)
}

func TestHTTPStore_AgainstHandler(t *testing.T) {
	srv := httptest.NewServer(remote.NewHandler(remote.NewMemory()))
	defer srv.Close()

	storeContract(t, remote.NewHTTPStore(srv.URL, 5*time.Second))
}

func TestHTTPStore_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := remote.NewHTTPStore(srv.URL, time.Second)
	_, err := store.List(context.Background(), remote.CollectionGrammar)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestHTTPStore_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := remote.NewHTTPStore(url, time.Second).Ping(context.Background())
	assert.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestHandler_UnavailableStoreReturns503(t *testing.T) {
	store := remote.NewMemory()
	store.SetUnavailable(true)
	h := remote.NewHandler(store)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/collections/grammar", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type flakyStore struct {
	remote.Store
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Ping(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func TestRetry_RecoversFromTransientFailures(t *testing.T) {
	flaky := &flakyStore{Store: remote.NewMemory(), failures: 2, err: remote.ErrUnavailable}
	store := remote.WithRetry(flaky, remote.RetryPolicy{Attempts: 3})

	assert.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, 3, flaky.calls)
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	flaky := &flakyStore{Store: remote.NewMemory(), failures: 10, err: remote.ErrUnavailable}
	store := remote.WithRetry(flaky, remote.RetryPolicy{Attempts: 2, Backoff: time.Millisecond})

	assert.ErrorIs(t, store.Ping(context.Background()), remote.ErrUnavailable)
	assert.Equal(t, 2, flaky.calls)
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	flaky := &flakyStore{Store: remote.NewMemory(), failures: 10, err: errors.New("bad request")}
	store := remote.WithRetry(flaky, remote.RetryPolicy{Attempts: 5})

	assert.EqualError(t, store.Ping(context.Background()), "bad request")
	assert.Equal(t, 1, flaky.calls)
}

type slowStore struct{ remote.Store }

func (slowStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRetry_AttemptTimeout(t *testing.T) {
	store := remote.WithRetry(slowStore{remote.NewMemory()}, remote.RetryPolicy{Attempts: 2, Timeout: 10 * time.Millisecond})

	start := time.Now()
	err := store.Ping(context.Background())

	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMergeObjects(t *testing.T) {
	out, err := remote.MergeObjects(nil, raw(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))

	out, err = remote.MergeObjects(raw(`{"a":1,"b":{"x":1}}`), raw(`{"b":{"y":2}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":{"y":2}}`, string(out))
}

func TestPostgres_Contract(t *testing.T) {
	dsn := os.Getenv("BUNPO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BUNPO_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := remote.OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Commit(ctx, []remote.Op{
		remote.DeleteOp(remote.CollectionGrammar, "2"),
		remote.DeleteOp(remote.CollectionGrammar, "3"),
		remote.DeleteOp(remote.CollectionGrammar, "10"),
		remote.DeleteOp(remote.CollectionStats, remote.DocStats),
	}))
	storeContract(t, store)
}
