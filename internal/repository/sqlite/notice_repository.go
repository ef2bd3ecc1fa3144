package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/repository"
)

type noticeRepository struct {
	db *sql.DB
}

// NewNoticeRepository creates a NoticeRepository backed by the notices table
func NewNoticeRepository(db *sql.DB) repository.NoticeRepository {
	return &noticeRepository{db: db}
}

func (r *noticeRepository) Insert(ctx context.Context, n repository.Notice) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query, args, err := sqlBuilder.Insert("notices").
		Columns("level", "source", "message", "created_at").
		Values(n.Level, n.Source, n.Message, n.CreatedAt).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("notice_repo").Error("failed to insert notice: %v", err)
		return 0, err
	}
	return res.LastInsertId()
}

func (r *noticeRepository) After(ctx context.Context, afterID int64, limit int) ([]repository.Notice, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := sqlBuilder.Select("id", "level", "source", "message", "created_at").
		From("notices").
		Where(squirrel.Gt{"id": afterID}).
		OrderBy("id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Notice{}
	for rows.Next() {
		var n repository.Notice
		if err := rows.Scan(&n.ID, &n.Level, &n.Source, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Prune keeps only the newest keep notices.
func (r *noticeRepository) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notices WHERE id NOT IN (SELECT id FROM notices ORDER BY id DESC LIMIT ?)`, keep)
	return err
}
