package repositories

import (
	"context"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

type unitRepo struct {
	*BaseVersionedRepo[*models.Unit]
	db DB
}

func NewUnitRepository(db DB) UnitRepository {
	r := &unitRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectUnit()+" WHERE id=$1", scanUnit)
	return r
}

func baseSelectUnit() string {
	return `
        SELECT
            id, block_id, project_id, plot_label, size, base_price,
            status, current_client_id,
            offer_expires_at, offer_expiry_emitted_at, archived_at,
            row_version, created_at, updated_at
        FROM units
    `
}

func scanUnit(row pgx.Row) (*models.Unit, error) {
	var (
		u      models.Unit
		status string
	)
	err := row.Scan(
		&u.ID,
		&u.BlockID,
		&u.ProjectID,
		&u.PlotLabel,
		&u.Size,
		&u.BasePrice,
		&status,
		&u.CurrentClientID,
		&u.OfferExpiresAt,
		&u.OfferExpiryEmittedAt,
		&u.ArchivedAt,
		&u.RowVersion,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Status, err = models.ParseUnitStatus(status); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *unitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	u, err := r.BaseVersionedRepo.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	return u, r.loadHistory(ctx, u)
}

func (r *unitRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	u, err := r.BaseVersionedRepo.GetForUpdate(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	return u, r.loadHistory(ctx, u)
}

func (r *unitRepo) loadHistory(ctx context.Context, u *models.Unit) error {
	rows, err := r.db.Query(ctx, `
        SELECT from_status, status, changed_at, actor_id, reason
        FROM unit_status_history
        WHERE unit_id=$1
        ORDER BY seq
    `, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	u.StatusHistory = u.StatusHistory[:0]
	for rows.Next() {
		var h models.StatusChange
		if err := rows.Scan(&h.From, &h.Status, &h.Timestamp, &h.ActorID, &h.Reason); err != nil {
			return err
		}
		u.StatusHistory = append(u.StatusHistory, h)
	}
	return rows.Err()
}

// appendHistory inserts entries not yet persisted; history is append-only
// so existing sequence numbers are left alone.
func (r *unitRepo) appendHistory(ctx context.Context, u *models.Unit) error {
	for i, h := range u.StatusHistory {
		_, err := r.db.Exec(ctx, `
            INSERT INTO unit_status_history (unit_id, seq, from_status, status, changed_at, actor_id, reason)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (unit_id, seq) DO NOTHING
        `, u.ID, i, h.From, h.Status, h.Timestamp, h.ActorID, h.Reason)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *unitRepo) Create(ctx context.Context, u *models.Unit) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO units (
            id, block_id, project_id, plot_label, size, base_price,
            status, current_client_id, offer_expires_at, offer_expiry_emitted_at, archived_at,
            row_version, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1,$12,$13
        )
    `,
		u.ID,
		u.BlockID,
		u.ProjectID,
		u.PlotLabel,
		u.Size,
		u.BasePrice,
		u.Status,
		u.CurrentClientID,
		u.OfferExpiresAt,
		u.OfferExpiryEmittedAt,
		u.ArchivedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	u.RowVersion = 1
	return r.appendHistory(ctx, u)
}

func (r *unitRepo) UpdateIfVersion(ctx context.Context, u *models.Unit, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE units
        SET status=$1,
            current_client_id=$2,
            offer_expires_at=$3,
            offer_expiry_emitted_at=$4,
            archived_at=$5,
            updated_at=$6,
            row_version=row_version+1
        WHERE id=$7 AND row_version=$8
    `,
		u.Status,
		u.CurrentClientID,
		u.OfferExpiresAt,
		u.OfferExpiryEmittedAt,
		u.ArchivedAt,
		u.UpdatedAt,
		u.ID,
		expectedVersion,
	)
	if err := checkVersion(u, expectedVersion, tag, err); err != nil {
		return err
	}
	return r.appendHistory(ctx, u)
}

func (r *unitRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM units WHERE id=$1`, id)
	return err
}

func (r *unitRepo) ListExpiredOffers(ctx context.Context, now time.Time) ([]*models.Unit, error) {
	rows, err := r.db.Query(ctx, baseSelectUnit()+`
        WHERE status='offered'
          AND offer_expires_at IS NOT NULL
          AND offer_expires_at < $1
          AND offer_expiry_emitted_at IS NULL
          AND archived_at IS NULL
        ORDER BY offer_expires_at
    `, now)
	if err != nil {
		return nil, err
	}
	var out []*models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range out {
		if err := r.loadHistory(ctx, u); err != nil {
			return nil, err
		}
	}
	return out, nil
}
