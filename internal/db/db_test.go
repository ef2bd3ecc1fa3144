package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/db"
)

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bunpo.db")

	first, err := db.Open("file:" + path)
	require.NoError(t, err)

	var count int
	require.NoError(t, first.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
	require.NoError(t, first.Close())

	second, err := db.Open("file:" + path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, db.ApplyMigrations(context.Background(), second.DB))
	require.NoError(t, second.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	_, err = second.Exec(`INSERT INTO kv_store (key, value) VALUES ('k', 'v')`)
	assert.NoError(t, err)
}
