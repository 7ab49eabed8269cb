package services

import (
	"context"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SweepExpiredOffers announces every offer whose window has elapsed with a
// unit.offer_expired event. Units keep their status; acting on the expiry
// is left to whoever consumes the event. Each offer is announced once.
func (s *AllocationService) SweepExpiredOffers(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.store.Repos().Units.ListExpiredOffers(ctx, now)
	if err != nil {
		err = infraErr("list expired offers", err)
		utils.Logger.WithError(err).Error("Offer expiry sweep failed")
		return 0, err
	}

	announced := 0
	for _, candidate := range expired {
		ok, err := s.announceExpiry(ctx, candidate.ID, now)
		if err != nil {
			utils.Logger.WithError(err).WithField("unit_id", candidate.ID).Warn("Failed to announce offer expiry")
			continue
		}
		if ok {
			announced++
		}
	}
	if announced > 0 {
		utils.Logger.WithFields(logrus.Fields{
			"candidates": len(expired),
			"announced":  announced,
		}).Info("Offer expiry sweep finished")
	}
	return announced, nil
}

func (s *AllocationService) announceExpiry(ctx context.Context, unitID uuid.UUID, now time.Time) (bool, error) {
	announced := false
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		u, err := lockUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		// Re-checked under the lock; the unit may have moved on since listing.
		if !IsOfferExpired(u, now) || u.OfferExpiryEmittedAt != nil || u.IsArchived() {
			return nil
		}
		expected := u.RowVersion
		u.OfferExpiryEmittedAt = &now
		if err := saveUnit(ctx, tx, u, expected); err != nil {
			return err
		}
		payload := map[string]string{"offer_expires_at": u.OfferExpiresAt.Format(time.RFC3339)}
		if u.CurrentClientID != nil {
			payload["client_id"] = u.CurrentClientID.String()
		}
		announced = true
		return appendEvent(ctx, tx, s.newEvent(models.EventUnitOfferExpired, u, nil, payload))
	})
	return announced && err == nil, err
}
