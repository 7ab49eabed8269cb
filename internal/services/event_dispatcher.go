package services

import (
	"context"
	"errors"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/sirupsen/logrus"
)

// EventDispatcher delivers outbox events to subscribers after the unit of
// work that recorded them has committed. Delivery is at-least-once; an
// event that keeps failing is parked as FAILED after maxAttempts.
type EventDispatcher struct {
	store       repositories.Store
	clock       utils.Clock
	subscribers []EventSubscriber
	maxAttempts int
	batchSize   int
}

func NewEventDispatcher(
	store repositories.Store,
	clock utils.Clock,
	maxAttempts, batchSize int,
	subscribers ...EventSubscriber,
) *EventDispatcher {
	return &EventDispatcher{
		store:       store,
		clock:       clock,
		subscribers: subscribers,
		maxAttempts: max(maxAttempts, 1),
		batchSize:   max(batchSize, 1),
	}
}

// DispatchResult counts the outcome of one dispatch run.
type DispatchResult struct {
	Dispatched int
	Retrying   int
	Failed     int
}

// DispatchPending delivers one batch of pending events. Subscribers run
// with no unit of work open; each outcome is recorded in its own short one.
func (d *EventDispatcher) DispatchPending(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult
	events, err := d.store.Repos().Events.ListPending(ctx, d.batchSize)
	if err != nil {
		return res, infraErr("list pending events", err)
	}
	for _, e := range events {
		if ctx.Err() != nil {
			break
		}
		derr := d.deliver(ctx, e)
		if derr == nil {
			err := d.store.WithTx(ctx, func(tx repositories.Repos) error {
				return tx.Events.MarkDispatched(ctx, e.ID, d.clock.Now())
			})
			if err != nil {
				return res, infraErr("mark event dispatched", err)
			}
			res.Dispatched++
			continue
		}

		giveUp := e.Attempts+1 >= d.maxAttempts
		utils.Logger.WithError(derr).WithFields(logrus.Fields{
			"event_id": e.ID,
			"type":     e.Type,
			"attempt":  e.Attempts + 1,
			"give_up":  giveUp,
		}).Warn("Domain event delivery failed")
		err := d.store.WithTx(ctx, func(tx repositories.Repos) error {
			return tx.Events.MarkFailed(ctx, e.ID, derr.Error(), giveUp)
		})
		if err != nil {
			return res, infraErr("mark event failed", err)
		}
		if giveUp {
			res.Failed++
		} else {
			res.Retrying++
		}
	}
	if res.Dispatched+res.Retrying+res.Failed > 0 {
		utils.Logger.Debugf("Dispatched %d events (%d retrying, %d failed)", res.Dispatched, res.Retrying, res.Failed)
	}
	return res, nil
}

func (d *EventDispatcher) deliver(ctx context.Context, e *models.DomainEvent) error {
	var errs []error
	for _, s := range d.subscribers {
		if !s.Handles(e.Type) {
			continue
		}
		if err := s.Deliver(ctx, e); err != nil {
			errs = append(errs, errors.New(s.Name()+": "+err.Error()))
		}
	}
	return errors.Join(errs...)
}
