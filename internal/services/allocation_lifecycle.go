package services

import (
	"context"
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateUnitInput describes a new inventory item.
type CreateUnitInput struct {
	BlockID   uuid.UUID
	ProjectID uuid.UUID
	PlotLabel string
	Size      string
	BasePrice ledger.Money
}

// unitMutation runs fn against the locked unit and saves it when fn
// returns without error. A non-nil event is appended in the same unit of work.
type unitMutation func(tx repositories.Repos, u *models.Unit, actor string) (*models.DomainEvent, error)

func (s *AllocationService) mutateUnit(ctx context.Context, op string, unitID uuid.UUID, fn unitMutation) (*models.Unit, error) {
	actor := utils.ActorIDFromContext(ctx)
	var out *models.Unit
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		u, err := lockUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		expected := u.RowVersion
		ev, err := fn(tx, u, actor)
		if err != nil {
			return err
		}
		if err := saveUnit(ctx, tx, u, expected); err != nil {
			return err
		}
		if ev != nil {
			if err := appendEvent(ctx, tx, ev); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		logRejection(op, unitID, err)
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"unit_id": unitID,
		"status":  out.Status,
		"actor":   actor,
	}).Infof("%s applied", op)
	return out, nil
}

// ---------------------------------------------------------------------------
// inventory
// ---------------------------------------------------------------------------

func (s *AllocationService) CreateUnit(ctx context.Context, in CreateUnitInput) (*models.Unit, error) {
	if in.BasePrice.IsNegative() || !in.BasePrice.InRange() {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "base_price", in.BasePrice.String())
	}
	now := s.clock.Now()
	u := &models.Unit{
		ID:        uuid.New(),
		BlockID:   in.BlockID,
		ProjectID: in.ProjectID,
		PlotLabel: strings.TrimSpace(in.PlotLabel),
		Size:      strings.TrimSpace(in.Size),
		BasePrice: in.BasePrice,
		Status:    models.UnitStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Repos().Units.Create(ctx, u); err != nil {
		err = infraErr("create unit", err)
		utils.Logger.WithError(err).Error("Failed to create unit")
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"unit_id":    u.ID,
		"project_id": u.ProjectID,
		"plot_label": u.PlotLabel,
	}).Info("Unit created")
	return u, nil
}

// DeleteUnit removes a unit that never left available. Anything else must
// be archived instead.
func (s *AllocationService) DeleteUnit(ctx context.Context, unitID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		u, err := lockUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if u.HasLeftAvailable() {
			return utils.TransitionViolation(utils.ErrUnitDeletionForbidden, unitID.String(), string(u.Status), "deleted")
		}
		return infraErr("delete unit", tx.Units.Delete(ctx, unitID))
	})
	if err != nil {
		logRejection("Unit deletion", unitID, err)
		return err
	}
	utils.Logger.WithField("unit_id", unitID).Info("Unit deleted")
	return nil
}

// ArchiveUnit soft-archives an available or revoked unit. Archiving an
// archived unit is a no-op.
func (s *AllocationService) ArchiveUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	return s.mutateUnit(ctx, "Unit archive", unitID, func(_ repositories.Repos, u *models.Unit, _ string) (*models.DomainEvent, error) {
		if u.IsArchived() {
			return nil, nil
		}
		if u.Status != models.UnitStatusAvailable && u.Status != models.UnitStatusRevoked {
			return nil, utils.TransitionViolation(utils.ErrIllegalTransition, u.ID.String(), string(u.Status), "archived")
		}
		now := s.clock.Now()
		u.ArchivedAt = &now
		u.UpdatedAt = now
		return nil, nil
	})
}

// ---------------------------------------------------------------------------
// lifecycle
// ---------------------------------------------------------------------------

func (s *AllocationService) Reserve(ctx context.Context, unitID, clientID uuid.UUID) (*models.Unit, error) {
	return s.mutateUnit(ctx, "Reservation", unitID, func(_ repositories.Repos, u *models.Unit, actor string) (*models.DomainEvent, error) {
		if err := s.machine.Reserve(u, clientID, actor); err != nil {
			return nil, err
		}
		return s.newEvent(models.EventUnitReserved, u, nil, map[string]string{
			"client_id": clientID.String(),
		}), nil
	})
}

// IssueOffer starts an offer for a reserved or available unit. clientID is
// optional for a reserved unit, which keeps its reservation client.
func (s *AllocationService) IssueOffer(ctx context.Context, unitID uuid.UUID, clientID *uuid.UUID) (*models.Unit, error) {
	return s.mutateUnit(ctx, "Offer", unitID, func(_ repositories.Repos, u *models.Unit, actor string) (*models.DomainEvent, error) {
		if err := s.machine.IssueOffer(u, clientID, actor); err != nil {
			return nil, err
		}
		payload := map[string]string{
			"offer_expires_at": u.OfferExpiresAt.Format(time.RFC3339),
		}
		if u.CurrentClientID != nil {
			payload["client_id"] = u.CurrentClientID.String()
		}
		return s.newEvent(models.EventUnitOfferIssued, u, nil, payload), nil
	})
}

// MarkSold completes an allocation whose plan has no outstanding balance.
func (s *AllocationService) MarkSold(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	return s.mutateUnit(ctx, "Sale completion", unitID, func(tx repositories.Repos, u *models.Unit, actor string) (*models.DomainEvent, error) {
		if u.IsArchived() || !CanTransition(u.Status, models.UnitStatusSold) {
			return nil, s.machine.MarkSold(u, actor)
		}
		sale, err := tx.Sales.GetActiveByUnit(ctx, u.ID)
		if err != nil {
			return nil, infraErr("load active sale", err)
		}
		if sale == nil {
			return nil, utils.TransitionViolation(utils.ErrNoActiveSaleForUnit, u.ID.String(), string(u.Status), string(models.UnitStatusSold))
		}
		plan, err := tx.Plans.GetBySale(ctx, sale.ID)
		if err != nil {
			return nil, infraErr("load installment plan", err)
		}
		if plan == nil {
			return nil, &utils.IntegrityError{Entity: "sale", ID: sale.ID.String(), Err: utils.ErrPlanNotFound}
		}
		if balance := plan.CurrentTotal.Sub(PaidAmount(plan)); balance.IsPositive() {
			return nil, &utils.RuleViolationError{
				Kind:            utils.ErrOutstandingBalance,
				UnitID:          u.ID.String(),
				CurrentStatus:   string(u.Status),
				AttemptedStatus: string(models.UnitStatusSold),
				Details: map[string]string{
					"sale_id": sale.ID.String(),
					"balance": balance.String(),
				},
			}
		}
		if err := s.machine.MarkSold(u, actor); err != nil {
			return nil, err
		}
		return s.newEvent(models.EventUnitSold, u, &sale.ID, map[string]string{
			"client_id":   sale.ClientID.String(),
			"sale_amount": sale.SaleAmount.String(),
		}), nil
	})
}

// ReleaseUnit returns a revoked unit to inventory.
func (s *AllocationService) ReleaseUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	actor := utils.ActorIDFromContext(ctx)
	var out *models.Unit
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		var err error
		out, err = s.releaseInTx(ctx, tx, unitID, actor)
		return err
	})
	if err != nil {
		logRejection("Release", unitID, err)
		return nil, err
	}
	utils.Logger.WithField("unit_id", unitID).Info("Unit released")
	return out, nil
}

func (s *AllocationService) releaseInTx(ctx context.Context, tx repositories.Repos, unitID uuid.UUID, actor string) (*models.Unit, error) {
	u, err := lockUnit(ctx, tx, unitID)
	if err != nil {
		return nil, err
	}
	expected := u.RowVersion
	if err := s.machine.Release(u, actor); err != nil {
		return nil, err
	}
	if err := saveUnit(ctx, tx, u, expected); err != nil {
		return nil, err
	}
	if err := appendEvent(ctx, tx, s.newEvent(models.EventUnitReleased, u, nil, nil)); err != nil {
		return nil, err
	}
	return u, nil
}

// WithdrawHold revokes a reservation or offer that has no sale behind it.
// Allocated and sold units go through RevokeAllocation.
func (s *AllocationService) WithdrawHold(ctx context.Context, unitID uuid.UUID, reason string) (*models.Unit, error) {
	return s.mutateUnit(ctx, "Hold withdrawal", unitID, func(_ repositories.Repos, u *models.Unit, actor string) (*models.DomainEvent, error) {
		if u.Status == models.UnitStatusAllocated || u.Status == models.UnitStatusSold {
			return nil, &utils.RuleViolationError{
				Kind:            utils.ErrIllegalTransition,
				UnitID:          u.ID.String(),
				CurrentStatus:   string(u.Status),
				AttemptedStatus: string(models.UnitStatusRevoked),
				Details:         map[string]string{"reason": "unit has an active sale; revoke the allocation instead"},
			}
		}
		prevClient := u.CurrentClientID
		if err := s.machine.Revoke(u, reason, actor); err != nil {
			return nil, err
		}
		payload := map[string]string{"reason": strings.TrimSpace(reason)}
		if prevClient != nil {
			payload["client_id"] = prevClient.String()
		}
		return s.newEvent(models.EventUnitAllocationRevoked, u, nil, payload), nil
	})
}
