package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/google/uuid"
)

type domainEventRepo struct {
	db DB
}

func NewDomainEventRepository(db DB) DomainEventRepository {
	return &domainEventRepo{db: db}
}

func (r *domainEventRepo) Append(ctx context.Context, e *models.DomainEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO domain_events (
            id, type, unit_id, sale_id, occurred_at, payload, delivery_status, attempts
        ) VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,0)
    `,
		e.ID,
		e.Type,
		e.UnitID,
		e.SaleID,
		e.Timestamp,
		string(payload),
		models.EventDeliveryPending,
	)
	return err
}

// ListPending skips rows locked by a concurrent dispatcher.
func (r *domainEventRepo) ListPending(ctx context.Context, limit int) ([]*models.DomainEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, type, unit_id, sale_id, occurred_at, payload::text,
               delivery_status, attempts, last_failure_reason, dispatched_at
        FROM domain_events
        WHERE delivery_status='PENDING'
        ORDER BY occurred_at, id
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DomainEvent
	for rows.Next() {
		var (
			e       models.DomainEvent
			payload string
		)
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.UnitID,
			&e.SaleID,
			&e.Timestamp,
			&payload,
			&e.DeliveryStatus,
			&e.Attempts,
			&e.LastFailureReason,
			&e.DispatchedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *domainEventRepo) MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE domain_events
        SET delivery_status='DISPATCHED', dispatched_at=$1, attempts=attempts+1
        WHERE id=$2
    `, at, id)
	return err
}

func (r *domainEventRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, giveUp bool) error {
	status := models.EventDeliveryPending
	if giveUp {
		status = models.EventDeliveryFailed
	}
	_, err := r.db.Exec(ctx, `
        UPDATE domain_events
        SET delivery_status=$1, last_failure_reason=$2, attempts=attempts+1
        WHERE id=$3
    `, status, reason, id)
	return err
}
