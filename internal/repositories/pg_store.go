package repositories

import (
	"context"
	"errors"

	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PgStore runs units of work as Postgres transactions.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func NewRepos(db DB) Repos {
	return Repos{
		Units:  NewUnitRepository(db),
		Sales:  NewSaleRepository(db),
		Rules:  NewCommissionRuleRepository(db),
		Plans:  NewInstallmentPlanRepository(db),
		Events: NewDomainEventRepository(db),
	}
}

func (s *PgStore) Repos() Repos {
	return NewRepos(s.pool)
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx commits when fn returns nil and rolls back otherwise. A rollback
// that itself fails is reported as a fatal InfrastructureError.
func (s *PgStore) WithTx(ctx context.Context, fn func(tx Repos) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &utils.InfrastructureError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if fnErr := fn(NewRepos(tx)); fnErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			utils.Logger.WithError(rbErr).Error("Transaction rollback failed")
			return &utils.InfrastructureError{
				Op:    "rollback",
				Err:   errors.Join(fnErr, rbErr),
				Fatal: true,
			}
		}
		return fnErr
	}

	if err := tx.Commit(ctx); err != nil {
		return &utils.InfrastructureError{Op: "commit", Err: err}
	}
	return nil
}
