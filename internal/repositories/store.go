package repositories

import (
	"context"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
)

// Getters return (nil, nil) when the row does not exist. UpdateIfVersion
// methods return utils.ErrRowVersionConflict when the stored row_version
// differs from expectedVersion and bump the version on success.

type UnitRepository interface {
	Create(ctx context.Context, u *models.Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	// GetForUpdate locks the unit row until the enclosing unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	UpdateIfVersion(ctx context.Context, u *models.Unit, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListExpiredOffers returns offered units whose window ended before now
	// and whose expiry was not yet announced.
	ListExpiredOffers(ctx context.Context, now time.Time) ([]*models.Unit, error)
}

type SaleRepository interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	GetActiveByUnit(ctx context.Context, unitID uuid.UUID) (*models.Sale, error)
	UpdateIfVersion(ctx context.Context, s *models.Sale, expectedVersion int64) error
	CountByRule(ctx context.Context, ruleID uuid.UUID) (int, error)
}

type CommissionRuleRepository interface {
	Create(ctx context.Context, r *models.CommissionRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CommissionRule, error)
	// ListByMarketer returns active and inactive rules.
	ListByMarketer(ctx context.Context, marketerID uuid.UUID) ([]*models.CommissionRule, error)
	UpdateIfVersion(ctx context.Context, r *models.CommissionRule, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	// LockMarketer serializes rule writes for one marketer until the unit of work ends.
	LockMarketer(ctx context.Context, marketerID uuid.UUID) error
}

type InstallmentPlanRepository interface {
	Create(ctx context.Context, p *models.InstallmentPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InstallmentPlan, error)
	GetBySale(ctx context.Context, saleID uuid.UUID) (*models.InstallmentPlan, error)
	GetByInstallment(ctx context.Context, installmentID uuid.UUID) (*models.InstallmentPlan, error)
	// UpdateIfVersion rewrites the plan header and upserts its installments.
	UpdateIfVersion(ctx context.Context, p *models.InstallmentPlan, expectedVersion int64) error
}

type DomainEventRepository interface {
	Append(ctx context.Context, e *models.DomainEvent) error
	ListPending(ctx context.Context, limit int) ([]*models.DomainEvent, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, giveUp bool) error
}

// Repos bundles the per-entity repositories bound to one connection or
// one transaction.
type Repos struct {
	Units  UnitRepository
	Sales  SaleRepository
	Rules  CommissionRuleRepository
	Plans  InstallmentPlanRepository
	Events DomainEventRepository
}

// Store hands out repositories and runs units of work. Everything written
// through the Repos passed to fn becomes visible atomically when fn returns
// nil, and not at all otherwise.
type Store interface {
	Repos() Repos
	WithTx(ctx context.Context, fn func(tx Repos) error) error
	Ping(ctx context.Context) error
}
