package repositories

import (
	"context"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

type installmentPlanRepo struct {
	*BaseVersionedRepo[*models.InstallmentPlan]
	db DB
}

func NewInstallmentPlanRepository(db DB) InstallmentPlanRepository {
	r := &installmentPlanRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectPlan()+" WHERE id=$1", scanPlan)
	return r
}

func baseSelectPlan() string {
	return `
        SELECT
            id, sale_id, original_total, current_total, status, cancelled_at,
            row_version, created_at, updated_at
        FROM installment_plans
    `
}

func scanPlan(row pgx.Row) (*models.InstallmentPlan, error) {
	var p models.InstallmentPlan
	err := row.Scan(
		&p.ID,
		&p.SaleID,
		&p.OriginalTotal,
		&p.CurrentTotal,
		&p.Status,
		&p.CancelledAt,
		&p.RowVersion,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *installmentPlanRepo) withInstallments(ctx context.Context, p *models.InstallmentPlan, err error) (*models.InstallmentPlan, error) {
	if err != nil || p == nil {
		return p, err
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, plan_id, sequence, stage_name, amount, due_date,
               paid_date, payment_method, reference_id
        FROM installments
        WHERE plan_id=$1
        ORDER BY sequence
    `, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var inst models.Installment
		if err := rows.Scan(
			&inst.ID,
			&inst.PlanID,
			&inst.Sequence,
			&inst.StageName,
			&inst.Amount,
			&inst.DueDate,
			&inst.PaidDate,
			&inst.PaymentMethod,
			&inst.ReferenceID,
		); err != nil {
			return nil, err
		}
		p.Installments = append(p.Installments, inst)
	}
	return p, rows.Err()
}

func (r *installmentPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InstallmentPlan, error) {
	p, err := r.BaseVersionedRepo.GetByID(ctx, id)
	return r.withInstallments(ctx, p, err)
}

func (r *installmentPlanRepo) GetBySale(ctx context.Context, saleID uuid.UUID) (*models.InstallmentPlan, error) {
	p, err := r.one(r.db.QueryRow(ctx, baseSelectPlan()+" WHERE sale_id=$1", saleID))
	return r.withInstallments(ctx, p, err)
}

func (r *installmentPlanRepo) GetByInstallment(ctx context.Context, installmentID uuid.UUID) (*models.InstallmentPlan, error) {
	p, err := r.one(r.db.QueryRow(ctx, baseSelectPlan()+`
        WHERE id = (SELECT plan_id FROM installments WHERE id=$1)
    `, installmentID))
	return r.withInstallments(ctx, p, err)
}

func (r *installmentPlanRepo) Create(ctx context.Context, p *models.InstallmentPlan) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO installment_plans (
            id, sale_id, original_total, current_total, status, cancelled_at,
            row_version, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,1,$7,$8)
    `,
		p.ID,
		p.SaleID,
		p.OriginalTotal,
		p.CurrentTotal,
		p.Status,
		p.CancelledAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	p.RowVersion = 1
	return r.upsertInstallments(ctx, p)
}

func (r *installmentPlanRepo) UpdateIfVersion(ctx context.Context, p *models.InstallmentPlan, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE installment_plans
        SET current_total=$1,
            status=$2,
            cancelled_at=$3,
            updated_at=$4,
            row_version=row_version+1
        WHERE id=$5 AND row_version=$6
    `,
		p.CurrentTotal,
		p.Status,
		p.CancelledAt,
		p.UpdatedAt,
		p.ID,
		expectedVersion,
	)
	if err := checkVersion(p, expectedVersion, tag, err); err != nil {
		return err
	}
	return r.upsertInstallments(ctx, p)
}

// upsertInstallments inserts new stages and refreshes payment fields of
// existing ones. Stage name, amount and due date are fixed once written.
func (r *installmentPlanRepo) upsertInstallments(ctx context.Context, p *models.InstallmentPlan) error {
	for _, inst := range p.Installments {
		_, err := r.db.Exec(ctx, `
            INSERT INTO installments (
                id, plan_id, sequence, stage_name, amount, due_date,
                paid_date, payment_method, reference_id
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
            ON CONFLICT (id) DO UPDATE
            SET paid_date=EXCLUDED.paid_date,
                payment_method=EXCLUDED.payment_method,
                reference_id=EXCLUDED.reference_id
        `,
			inst.ID,
			p.ID,
			inst.Sequence,
			inst.StageName,
			inst.Amount,
			inst.DueDate,
			inst.PaidDate,
			inst.PaymentMethod,
			inst.ReferenceID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
