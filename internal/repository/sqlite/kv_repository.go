package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/repository"
)

const upsertSuffix = "ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"

type kvRepository struct {
	db *sql.DB
}

// NewKVRepository creates a LocalStore backed by the kv_store table
func NewKVRepository(db *sql.DB) repository.LocalStore {
	return &kvRepository{db: db}
}

func (r *kvRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	log := logger.FromContext(ctx).WithPrefix("kv_repo")

	query, args, err := sqlBuilder.Select("value").From("kv_store").Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, false, err
	}
	var value string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("key not cached: %s", key)
		return nil, false, nil
	}
	if err != nil {
		log.Error("failed to read key %s: %v", key, err)
		return nil, false, err
	}
	return []byte(value), true, nil
}

func upsert(key string, value []byte) squirrel.InsertBuilder {
	return sqlBuilder.Insert("kv_store").
		Columns("key", "value", "updated_at").
		Values(key, string(value), time.Now().UTC()).
		Suffix(upsertSuffix)
}

func (r *kvRepository) Put(ctx context.Context, key string, value []byte) error {
	log := logger.FromContext(ctx).WithPrefix("kv_repo")

	query, args, err := upsert(key, value).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to write key %s: %v", key, err)
		return err
	}
	log.Debug("stored key %s (%d bytes)", key, len(value))
	return nil
}

func (r *kvRepository) PutMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			query, args, err := upsert(k, values[k]).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *kvRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlBuilder.Delete("kv_store").Where(squirrel.Eq{"key": keys}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		logger.FromContext(ctx).WithPrefix("kv_repo").Error("failed to delete keys %v: %v", keys, err)
		return err
	}
	return nil
}

func (r *kvRepository) Keys(ctx context.Context) ([]string, error) {
	query, args, err := sqlBuilder.Select("key").From("kv_store").OrderBy("key").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
