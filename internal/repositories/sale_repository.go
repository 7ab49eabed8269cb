package repositories

import (
	"context"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

type saleRepo struct {
	*BaseVersionedRepo[*models.Sale]
	db DB
}

func NewSaleRepository(db DB) SaleRepository {
	r := &saleRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectSale()+" WHERE id=$1", scanSale)
	return r
}

func baseSelectSale() string {
	return `
        SELECT
            id, unit_id, client_id, marketer_id, sale_amount, sale_date,
            commission_amount, commission_rule_id, commission_source, commission_status,
            installment_plan_id, status, revoked_at, revocation_reason,
            row_version, created_at, updated_at
        FROM sales
    `
}

func scanSale(row pgx.Row) (*models.Sale, error) {
	var s models.Sale
	err := row.Scan(
		&s.ID,
		&s.UnitID,
		&s.ClientID,
		&s.MarketerID,
		&s.SaleAmount,
		&s.SaleDate,
		&s.CommissionAmount,
		&s.CommissionRuleID,
		&s.CommissionSource,
		&s.CommissionStatus,
		&s.InstallmentPlanID,
		&s.Status,
		&s.RevokedAt,
		&s.RevocationReason,
		&s.RowVersion,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) Create(ctx context.Context, s *models.Sale) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO sales (
            id, unit_id, client_id, marketer_id, sale_amount, sale_date,
            commission_amount, commission_rule_id, commission_source, commission_status,
            installment_plan_id, status, row_version, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,$13,$14
        )
    `,
		s.ID,
		s.UnitID,
		s.ClientID,
		s.MarketerID,
		s.SaleAmount,
		s.SaleDate,
		s.CommissionAmount,
		s.CommissionRuleID,
		s.CommissionSource,
		s.CommissionStatus,
		s.InstallmentPlanID,
		s.Status,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err == nil {
		s.RowVersion = 1
	}
	return err
}

func (r *saleRepo) GetActiveByUnit(ctx context.Context, unitID uuid.UUID) (*models.Sale, error) {
	row := r.db.QueryRow(ctx, baseSelectSale()+" WHERE unit_id=$1 AND status='ACTIVE'", unitID)
	return r.one(row)
}

// UpdateIfVersion never writes sale_amount or commission_amount.
func (r *saleRepo) UpdateIfVersion(ctx context.Context, s *models.Sale, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE sales
        SET status=$1,
            commission_status=$2,
            revoked_at=$3,
            revocation_reason=$4,
            updated_at=$5,
            row_version=row_version+1
        WHERE id=$6 AND row_version=$7
    `,
		s.Status,
		s.CommissionStatus,
		s.RevokedAt,
		s.RevocationReason,
		s.UpdatedAt,
		s.ID,
		expectedVersion,
	)
	return checkVersion(s, expectedVersion, tag, err)
}

func (r *saleRepo) CountByRule(ctx context.Context, ruleID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE commission_rule_id=$1`, ruleID).Scan(&n)
	return n, err
}
