package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/vytor/bunpo/internal/logger"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Postgres stores documents in a single jsonb table.
type Postgres struct {
	db  *sqlx.DB
	log *logger.Logger
}

// OpenPostgres connects to dsn and creates the documents table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, classify(errors.Wrap(err, "failed to connect to postgres"))
	}
	store := NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgres wraps an open connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, log: logger.Default().WithPrefix("remote-pg")}
}

// EnsureSchema creates the documents table.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, documentsSchema); err != nil {
		return classify(errors.Wrap(err, "failed to create documents table"))
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Doc, error) {
	query, args, err := psql.Select("id", "data").
		From("documents").
		Where(squirrel.Eq{"collection": collection}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []documentRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(errors.Wrapf(err, "failed to list %s", collection))
	}
	docs := make([]Doc, len(rows))
	for i, r := range rows {
		docs[i] = Doc{ID: r.ID, Data: json.RawMessage(r.Data)}
	}
	SortDocs(docs)
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	query, args, err := psql.Select("data").
		From("documents").
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := p.db.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(errors.Wrapf(err, "failed to get %s/%s", collection, id))
	}
	return json.RawMessage(data), nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data json.RawMessage, merge bool) error {
	return p.Commit(ctx, []Op{SetOp(collection, id, data, merge)})
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	return p.Commit(ctx, []Op{DeleteOp(collection, id)})
}

// opQuery builds the statement for one operation.
func opQuery(op Op) (string, []any, error) {
	switch op.Kind {
	case OpDelete:
		return psql.Delete("documents").
			Where(squirrel.Eq{"collection": op.Collection, "id": op.ID}).
			ToSql()
	case OpSet:
		update := "ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()"
		if op.Merge {
			update = "ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()"
		}
		return psql.Insert("documents").
			Columns("collection", "id", "data").
			Values(op.Collection, op.ID, squirrel.Expr("?::jsonb", string(op.Data))).
			Suffix(update).
			ToSql()
	}
	return "", nil, errors.Errorf("unknown operation %q", op.Kind)
}

func (p *Postgres) Commit(ctx context.Context, ops []Op) error {
	if err := validateOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(errors.Wrap(err, "failed to begin batch"))
	}
	for _, op := range ops {
		query, args, err := opQuery(op)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return classify(errors.Wrapf(err, "failed to %s %s/%s", op.Kind, op.Collection, op.ID))
		}
	}
	if err := tx.Commit(); err != nil {
		return classify(errors.Wrap(err, "failed to commit batch"))
	}
	p.log.Debug("committed %d operations", len(ops))
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return classify(errors.Wrap(err, "ping failed"))
	}
	return nil
}

// unavailableError marks connection-level failures so callers can retry.
type unavailableError struct{ cause error }

func (e unavailableError) Error() string        { return e.cause.Error() }
func (e unavailableError) Unwrap() []error      { return []error{ErrUnavailable, e.cause} }
func (e unavailableError) Is(target error) bool { return target == ErrUnavailable }

// classify tags connection failures with ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var pqErr *pq.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		return unavailableError{cause: err}
	case errors.As(err, &pqErr) && pqErr.Code.Class() == "08":
		return unavailableError{cause: err}
	}
	return err
}
