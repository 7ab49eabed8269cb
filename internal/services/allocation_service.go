package services

import (
	"context"
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/config"
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/repositories"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AllocateUnitInput carries everything needed to allocate a unit.
type AllocateUnitInput struct {
	UnitID     uuid.UUID
	ClientID   uuid.UUID
	MarketerID uuid.UUID
	SaleAmount ledger.Money
	SaleDate   time.Time
	Stages     []StageInput
}

// ReallocateUnitInput revokes the current allocation and allocates afresh.
type ReallocateUnitInput struct {
	Reason   string
	Allocate AllocateUnitInput
}

// AllocationResult is the state committed by an allocation.
type AllocationResult struct {
	Unit       *models.Unit
	Sale       *models.Sale
	Plan       *models.InstallmentPlan
	Commission *CommissionQuote
}

// RevocationResult is the state committed by a revocation.
type RevocationResult struct {
	Unit *models.Unit
	Sale *models.Sale
	Plan *models.InstallmentPlan
}

// AllocationService is the single entry point for changing units, sales
// and installment plans. Every operation runs as one unit of work.
type AllocationService struct {
	cfg         *config.Config
	store       repositories.Store
	machine     *UnitStateMachine
	commissions *CommissionService
	verifier    PaymentVerifier
	clock       utils.Clock
}

func NewAllocationService(
	cfg *config.Config,
	store repositories.Store,
	commissions *CommissionService,
	verifier PaymentVerifier,
	clock utils.Clock,
) *AllocationService {
	if verifier == nil {
		verifier = NoopPaymentVerifier{}
	}
	return &AllocationService{
		cfg:         cfg,
		store:       store,
		machine:     NewUnitStateMachine(clock, cfg.OfferExpiryWindow),
		commissions: commissions,
		verifier:    verifier,
		clock:       clock,
	}
}

func (s *AllocationService) newEvent(
	t models.DomainEventType,
	u *models.Unit,
	saleID *uuid.UUID,
	payload map[string]string,
) *models.DomainEvent {
	if payload == nil {
		payload = make(map[string]string)
	}
	payload["plot_label"] = u.PlotLabel
	payload["project_id"] = u.ProjectID.String()
	payload["status"] = string(u.Status)
	return &models.DomainEvent{
		ID:             uuid.New(),
		Type:           t,
		UnitID:         u.ID,
		SaleID:         saleID,
		Timestamp:      s.clock.Now(),
		Payload:        payload,
		DeliveryStatus: models.EventDeliveryPending,
	}
}

// lockUnit loads the unit with a row lock, reporting UnitNotFound when absent.
func lockUnit(ctx context.Context, tx repositories.Repos, unitID uuid.UUID) (*models.Unit, error) {
	u, err := tx.Units.GetForUpdate(ctx, unitID)
	if err != nil {
		return nil, infraErr("lock unit", err)
	}
	if u == nil {
		return nil, utils.Violation(utils.ErrUnitNotFound, unitID.String())
	}
	return u, nil
}

func saveUnit(ctx context.Context, tx repositories.Repos, u *models.Unit, expectedVersion int64) error {
	return infraErr("save unit", tx.Units.UpdateIfVersion(ctx, u, expectedVersion))
}

func appendEvent(ctx context.Context, tx repositories.Repos, e *models.DomainEvent) error {
	return infraErr("append event", tx.Events.Append(ctx, e))
}

func logRejection(op string, unitID uuid.UUID, err error) {
	if utils.IsInfrastructure(err) || utils.IsFatal(err) {
		utils.Logger.WithError(err).WithField("unit_id", unitID).Errorf("%s failed", op)
		return
	}
	utils.Logger.WithError(err).WithField("unit_id", unitID).Infof("%s rejected", op)
}

// ---------------------------------------------------------------------------
// allocate
// ---------------------------------------------------------------------------

// AllocateUnit creates the sale, books its commission, opens its plan and
// moves the unit to allocated, all or nothing. An available unit is
// offered to the client first inside the same unit of work.
func (s *AllocationService) AllocateUnit(ctx context.Context, in AllocateUnitInput) (*AllocationResult, error) {
	if err := validateAllocateInput(in); err != nil {
		return nil, err
	}
	actor := utils.ActorIDFromContext(ctx)

	var res *AllocationResult
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		var err error
		res, err = s.allocateInTx(ctx, tx, in, actor)
		return err
	})
	if err != nil {
		logRejection("Allocation", in.UnitID, err)
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"unit_id":     res.Unit.ID,
		"sale_id":     res.Sale.ID,
		"marketer_id": res.Sale.MarketerID,
		"commission":  res.Sale.CommissionAmount.String(),
		"source":      res.Sale.CommissionSource,
	}).Info("Unit allocated")
	return res, nil
}

func validateAllocateInput(in AllocateUnitInput) error {
	unitID := in.UnitID.String()
	if !in.SaleAmount.IsPositive() || !in.SaleAmount.InRange() {
		return utils.Violation(utils.ErrInvalidAmount, unitID, "sale_amount", in.SaleAmount.String())
	}
	if in.ClientID == uuid.Nil || in.MarketerID == uuid.Nil {
		return utils.Violation(utils.ErrNoSaleRecord, unitID, "reason", "client and marketer are required")
	}
	if in.SaleDate.IsZero() {
		return utils.Violation(utils.ErrNoSaleRecord, unitID, "reason", "sale date is required")
	}
	return nil
}

func (s *AllocationService) allocateInTx(
	ctx context.Context,
	tx repositories.Repos,
	in AllocateUnitInput,
	actor string,
) (*AllocationResult, error) {
	u, err := lockUnit(ctx, tx, in.UnitID)
	if err != nil {
		return nil, err
	}
	expected := u.RowVersion

	if u.Status == models.UnitStatusAvailable && !u.IsArchived() {
		if err := s.machine.IssueOffer(u, &in.ClientID, actor); err != nil {
			return nil, err
		}
	}
	if err := s.machine.CheckAllocatable(u); err != nil {
		return nil, err
	}

	existing, err := tx.Sales.GetActiveByUnit(ctx, u.ID)
	if err != nil {
		return nil, infraErr("load active sale", err)
	}
	if existing != nil {
		return nil, utils.TransitionViolation(
			utils.ErrUnitNotAvailableForAllocation,
			u.ID.String(), string(u.Status), string(models.UnitStatusAllocated),
		)
	}

	quote, err := s.commissions.Quote(ctx, tx.Rules, in.MarketerID, u.ProjectID, in.SaleAmount, in.SaleDate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sale := &models.Sale{
		ID:               uuid.New(),
		UnitID:           u.ID,
		ClientID:         in.ClientID,
		MarketerID:       in.MarketerID,
		SaleAmount:       in.SaleAmount,
		SaleDate:         ledger.DateOnly(in.SaleDate),
		CommissionAmount: quote.Amount,
		CommissionSource: quote.Source,
		CommissionStatus: models.CommissionStatusBooked,
		Status:           models.SaleStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if quote.Rule != nil {
		sale.CommissionRuleID = &quote.Rule.ID
	}

	plan, err := NewInstallmentPlan(sale.ID, in.SaleAmount, in.Stages, now)
	if err != nil {
		return nil, err
	}
	sale.InstallmentPlanID = plan.ID

	if err := s.machine.Allocate(u, sale, actor); err != nil {
		return nil, err
	}

	if err := saveUnit(ctx, tx, u, expected); err != nil {
		return nil, err
	}
	if err := tx.Sales.Create(ctx, sale); err != nil {
		return nil, infraErr("create sale", err)
	}
	if err := tx.Plans.Create(ctx, plan); err != nil {
		return nil, infraErr("create installment plan", err)
	}
	if err := appendEvent(ctx, tx, s.newEvent(models.EventUnitAllocated, u, &sale.ID, map[string]string{
		"client_id":         sale.ClientID.String(),
		"marketer_id":       sale.MarketerID.String(),
		"sale_amount":       sale.SaleAmount.String(),
		"commission_amount": sale.CommissionAmount.String(),
		"commission_source": string(sale.CommissionSource),
	})); err != nil {
		return nil, err
	}

	return &AllocationResult{Unit: u, Sale: sale, Plan: plan, Commission: quote}, nil
}

// ---------------------------------------------------------------------------
// revoke
// ---------------------------------------------------------------------------

// RevokeAllocation revokes the unit's active sale, cancels its plan and
// moves the unit to revoked. The booked commission amount is kept; the
// configured policy decides whether it is retained or flagged for clawback.
func (s *AllocationService) RevokeAllocation(ctx context.Context, unitID uuid.UUID, reason string) (*RevocationResult, error) {
	actor := utils.ActorIDFromContext(ctx)

	var res *RevocationResult
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		var err error
		res, err = s.revokeInTx(ctx, tx, unitID, reason, actor)
		return err
	})
	if err != nil {
		logRejection("Revocation", unitID, err)
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"unit_id":           unitID,
		"sale_id":           res.Sale.ID,
		"commission_status": res.Sale.CommissionStatus,
	}).Info("Allocation revoked")
	return res, nil
}

func (s *AllocationService) revokeInTx(
	ctx context.Context,
	tx repositories.Repos,
	unitID uuid.UUID,
	reason string,
	actor string,
) (*RevocationResult, error) {
	u, err := lockUnit(ctx, tx, unitID)
	if err != nil {
		return nil, err
	}
	expected := u.RowVersion

	sale, err := tx.Sales.GetActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, infraErr("load active sale", err)
	}
	if sale == nil {
		return nil, utils.TransitionViolation(utils.ErrNoActiveSaleForUnit, unitID.String(), string(u.Status), string(models.UnitStatusRevoked))
	}
	plan, err := tx.Plans.GetBySale(ctx, sale.ID)
	if err != nil {
		return nil, infraErr("load installment plan", err)
	}

	if err := s.machine.Revoke(u, reason, actor); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	saleVersion := sale.RowVersion
	trimmed := strings.TrimSpace(reason)
	sale.Status = models.SaleStatusRevoked
	sale.RevokedAt = &now
	sale.RevocationReason = &trimmed
	sale.UpdatedAt = now
	clawback := s.cfg.RevocationCommissionPolicy == config.RevocationPolicyClawback
	if clawback {
		sale.CommissionStatus = models.CommissionStatusClawbackPending
	} else {
		sale.CommissionStatus = models.CommissionStatusRetained
	}

	if err := saveUnit(ctx, tx, u, expected); err != nil {
		return nil, err
	}
	if err := tx.Sales.UpdateIfVersion(ctx, sale, saleVersion); err != nil {
		return nil, infraErr("save sale", err)
	}
	if plan != nil {
		planVersion := plan.RowVersion
		CancelPlan(plan, now)
		if err := tx.Plans.UpdateIfVersion(ctx, plan, planVersion); err != nil {
			return nil, infraErr("save installment plan", err)
		}
	}

	if err := appendEvent(ctx, tx, s.newEvent(models.EventUnitAllocationRevoked, u, &sale.ID, map[string]string{
		"reason":            trimmed,
		"client_id":         sale.ClientID.String(),
		"commission_status": string(sale.CommissionStatus),
	})); err != nil {
		return nil, err
	}
	if clawback {
		if err := appendEvent(ctx, tx, s.newEvent(models.EventCommissionClawbackRequired, u, &sale.ID, map[string]string{
			"marketer_id":       sale.MarketerID.String(),
			"commission_amount": sale.CommissionAmount.String(),
		})); err != nil {
			return nil, err
		}
	}

	return &RevocationResult{Unit: u, Sale: sale, Plan: plan}, nil
}

// ---------------------------------------------------------------------------
// reallocate
// ---------------------------------------------------------------------------

// ReallocateUnit is a revocation, a release and a fresh allocation applied
// as one unit of work.
func (s *AllocationService) ReallocateUnit(ctx context.Context, in ReallocateUnitInput) (*AllocationResult, error) {
	if err := validateAllocateInput(in.Allocate); err != nil {
		return nil, err
	}
	actor := utils.ActorIDFromContext(ctx)
	unitID := in.Allocate.UnitID

	var res *AllocationResult
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		if _, err := s.revokeInTx(ctx, tx, unitID, in.Reason, actor); err != nil {
			return err
		}
		if _, err := s.releaseInTx(ctx, tx, unitID, actor); err != nil {
			return err
		}
		var err error
		res, err = s.allocateInTx(ctx, tx, in.Allocate, actor)
		return err
	})
	if err != nil {
		logRejection("Reallocation", unitID, err)
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"unit_id":   unitID,
		"sale_id":   res.Sale.ID,
		"client_id": res.Sale.ClientID,
	}).Info("Unit reallocated")
	return res, nil
}
