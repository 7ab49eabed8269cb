package repositories

import (
	"context"
	"errors"

	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// EntityWithVersion is a row guarded by an optimistic row_version.
type EntityWithVersion interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

/*
BaseVersionedRepo holds the DB connection, a SELECT‑by‑ID statement,
and a scanner for a single entity type T.  It gives you:

	• GetByID(ctx, id)       – nil, nil when the row is missing
	• GetForUpdate(ctx, id)  – same, with a row lock
	• checkVersion(…)        – maps a zero-row UPDATE to a version conflict
*/
type BaseVersionedRepo[T EntityWithVersion] struct {
	db         DB
	selectByID string
	scan       func(row pgx.Row) (T, error)
}

// NewBaseRepo is called by concrete repositories.
func NewBaseRepo[T EntityWithVersion](
	db DB,
	selectByID string,
	scan func(pgx.Row) (T, error),
) *BaseVersionedRepo[T] {
	return &BaseVersionedRepo[T]{db: db, selectByID: selectByID, scan: scan}
}

func (b *BaseVersionedRepo[T]) GetByID(ctx context.Context, id uuid.UUID) (T, error) {
	return b.one(b.db.QueryRow(ctx, b.selectByID, id))
}

func (b *BaseVersionedRepo[T]) GetForUpdate(ctx context.Context, id uuid.UUID) (T, error) {
	return b.one(b.db.QueryRow(ctx, b.selectByID+" FOR UPDATE", id))
}

func (b *BaseVersionedRepo[T]) one(row pgx.Row) (T, error) {
	v, err := b.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, nil
	}
	return v, err
}

// checkVersion turns an UPDATE … WHERE row_version=$n that touched nothing
// into utils.ErrRowVersionConflict, and bumps the in-memory version on success.
func checkVersion[T EntityWithVersion](entity T, expectedVersion int64, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return utils.ErrRowVersionConflict
	}
	entity.SetRowVersion(expectedVersion + 1)
	return nil
}
