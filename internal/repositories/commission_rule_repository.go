package repositories

import (
	"context"
	"fmt"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

type commissionRuleRepo struct {
	*BaseVersionedRepo[*models.CommissionRule]
	db DB
}

func NewCommissionRuleRepository(db DB) CommissionRuleRepository {
	r := &commissionRuleRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectRule()+" WHERE id=$1", scanRule)
	return r
}

func baseSelectRule() string {
	return `
        SELECT
            id, marketer_id, project_id, name, kind,
            percentage::text, fixed_amount,
            effective_start, effective_end, active,
            row_version, created_at, updated_at
        FROM commission_rules
    `
}

// scanRule reads percentage as text; a value that does not parse into
// [0,100] is returned as-is in an invalid Percentage so the resolver can
// report it as an integrity failure.
func scanRule(row pgx.Row) (*models.CommissionRule, error) {
	var (
		rule models.CommissionRule
		pct  *string
	)
	err := row.Scan(
		&rule.ID,
		&rule.MarketerID,
		&rule.ProjectID,
		&rule.Name,
		&rule.Kind,
		&pct,
		&rule.FixedAmount,
		&rule.EffectiveRange.Start,
		&rule.EffectiveRange.End,
		&rule.Active,
		&rule.RowVersion,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pct != nil {
		p, err := ledger.ParsePercentageUnchecked(*pct)
		if err != nil {
			return nil, fmt.Errorf("commission rule %s: %w", rule.ID, err)
		}
		rule.Percentage = &p
	}
	return &rule, nil
}

func percentageArg(p *ledger.Percentage) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}

func (r *commissionRuleRepo) Create(ctx context.Context, rule *models.CommissionRule) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO commission_rules (
            id, marketer_id, project_id, name, kind, percentage, fixed_amount,
            effective_start, effective_end, active, row_version, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10,1,$11,$12
        )
    `,
		rule.ID,
		rule.MarketerID,
		rule.ProjectID,
		rule.Name,
		rule.Kind,
		percentageArg(rule.Percentage),
		rule.FixedAmount,
		rule.EffectiveRange.Start,
		rule.EffectiveRange.End,
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err == nil {
		rule.RowVersion = 1
	}
	return err
}

func (r *commissionRuleRepo) ListByMarketer(ctx context.Context, marketerID uuid.UUID) ([]*models.CommissionRule, error) {
	rows, err := r.db.Query(ctx, baseSelectRule()+`
        WHERE marketer_id=$1
        ORDER BY effective_start, id
    `, marketerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CommissionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *commissionRuleRepo) UpdateIfVersion(ctx context.Context, rule *models.CommissionRule, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE commission_rules
        SET project_id=$1,
            name=$2,
            kind=$3,
            percentage=$4::numeric,
            fixed_amount=$5,
            effective_start=$6,
            effective_end=$7,
            active=$8,
            updated_at=$9,
            row_version=row_version+1
        WHERE id=$10 AND row_version=$11
    `,
		rule.ProjectID,
		rule.Name,
		rule.Kind,
		percentageArg(rule.Percentage),
		rule.FixedAmount,
		rule.EffectiveRange.Start,
		rule.EffectiveRange.End,
		rule.Active,
		rule.UpdatedAt,
		rule.ID,
		expectedVersion,
	)
	return checkVersion(rule, expectedVersion, tag, err)
}

func (r *commissionRuleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM commission_rules WHERE id=$1`, id)
	return err
}

// LockMarketer takes a transaction-scoped advisory lock keyed on the
// marketer id; it is released on commit or rollback.
func (r *commissionRuleRepo) LockMarketer(ctx context.Context, marketerID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, marketerID.String())
	return err
}
