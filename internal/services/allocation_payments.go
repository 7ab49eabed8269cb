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

type RecordPaymentInput struct {
	InstallmentID uuid.UUID
	PaidDate      time.Time
	PaymentMethod string
	ReferenceID   *string
}

// PaymentResult is the installment as recorded plus the plan's progress
// after the payment.
type PaymentResult struct {
	Installment models.Installment `json:"installment"`
	Progress    Progress           `json:"progress"`
}

// RecordPayment marks an installment paid. Card payments are verified with
// the processor before anything is written.
func (s *AllocationService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	plan, err := s.store.Repos().Plans.GetByInstallment(ctx, in.InstallmentID)
	if err != nil {
		return nil, infraErr("load installment plan", err)
	}
	if plan == nil {
		return nil, utils.Violation(utils.ErrUnknownInstallment, "", "installment_id", in.InstallmentID.String())
	}
	if inst := plan.Find(in.InstallmentID); inst != nil && !inst.IsPaid() && plan.IsActive() {
		if err := s.verifier.Verify(ctx, in.PaymentMethod, in.ReferenceID, inst.Amount); err != nil {
			utils.Logger.WithError(err).WithField("installment_id", in.InstallmentID).Warn("Payment verification failed")
			return nil, err
		}
	}

	var res *PaymentResult
	err = s.store.WithTx(ctx, func(tx repositories.Repos) error {
		plan, sale, err := loadPlanForInstallment(ctx, tx, in.InstallmentID)
		if err != nil {
			return err
		}
		expected := plan.RowVersion
		now := s.clock.Now()
		inst, err := RecordPayment(plan, in.InstallmentID, in.PaidDate, in.PaymentMethod, in.ReferenceID, now)
		if err != nil {
			return err
		}
		recorded := *inst
		if err := tx.Plans.UpdateIfVersion(ctx, plan, expected); err != nil {
			return infraErr("save installment plan", err)
		}

		unit, err := tx.Units.GetByID(ctx, sale.UnitID)
		if err != nil {
			return infraErr("load unit", err)
		}
		if unit == nil {
			return &utils.IntegrityError{Entity: "sale", ID: sale.ID.String(), Err: utils.ErrUnitNotFound}
		}
		progress := ComputeProgress(plan, now)
		if err := appendEvent(ctx, tx, s.newEvent(models.EventInstallmentPaid, unit, &sale.ID, map[string]string{
			"installment_id": recorded.ID.String(),
			"stage_name":     recorded.StageName,
			"amount":         recorded.Amount.String(),
			"payment_method": utils.Val(recorded.PaymentMethod),
			"balance":        progress.Balance.String(),
		})); err != nil {
			return err
		}
		res = &PaymentResult{Installment: recorded, Progress: progress}
		return nil
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("installment_id", in.InstallmentID).Info("Payment rejected")
		return nil, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"installment_id": in.InstallmentID,
		"plan_id":        res.Progress.PlanID,
		"balance":        res.Progress.Balance.String(),
	}).Info("Payment recorded")
	return res, nil
}

// loadPlanForInstallment returns the plan owning the installment and its sale.
func loadPlanForInstallment(ctx context.Context, tx repositories.Repos, installmentID uuid.UUID) (*models.InstallmentPlan, *models.Sale, error) {
	plan, err := tx.Plans.GetByInstallment(ctx, installmentID)
	if err != nil {
		return nil, nil, infraErr("load installment plan", err)
	}
	if plan == nil {
		return nil, nil, utils.Violation(utils.ErrUnknownInstallment, "", "installment_id", installmentID.String())
	}
	sale, err := tx.Sales.GetByID(ctx, plan.SaleID)
	if err != nil {
		return nil, nil, infraErr("load sale", err)
	}
	if sale == nil {
		return nil, nil, &utils.IntegrityError{Entity: "installment_plan", ID: plan.ID.String(), Err: utils.ErrSaleNotFound}
	}
	return plan, sale, nil
}

// AddInstallment amends an active plan with an extra stage.
func (s *AllocationService) AddInstallment(
	ctx context.Context,
	planID uuid.UUID,
	stageName string,
	amount ledger.Money,
	dueDate time.Time,
) (*models.InstallmentPlan, error) {
	var out *models.InstallmentPlan
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		plan, err := tx.Plans.GetByID(ctx, planID)
		if err != nil {
			return infraErr("load installment plan", err)
		}
		if plan == nil {
			return utils.Violation(utils.ErrPlanNotFound, "", "plan_id", planID.String())
		}
		expected := plan.RowVersion
		if _, err := AddInstallment(plan, stageName, amount, dueDate, s.clock.Now()); err != nil {
			return err
		}
		if err := tx.Plans.UpdateIfVersion(ctx, plan, expected); err != nil {
			return infraErr("save installment plan", err)
		}
		out = plan
		return nil
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("plan_id", planID).Info("Installment amendment rejected")
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"plan_id":       planID,
		"stage_name":    stageName,
		"current_total": out.CurrentTotal.String(),
	}).Info("Installment added")
	return out, nil
}

// CorrectReceipt updates the method or reference of a paid installment.
// A correction that turns it into a card payment is verified first.
func (s *AllocationService) CorrectReceipt(
	ctx context.Context,
	installmentID uuid.UUID,
	paymentMethod *string,
	referenceID *string,
) (*models.Installment, error) {
	if paymentMethod == nil && referenceID == nil {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "reason", "nothing to correct")
	}

	var out models.Installment
	err := s.store.WithTx(ctx, func(tx repositories.Repos) error {
		plan, _, err := loadPlanForInstallment(ctx, tx, installmentID)
		if err != nil {
			return err
		}
		if inst := plan.Find(installmentID); inst != nil && inst.IsPaid() {
			method := utils.Val(inst.PaymentMethod)
			if paymentMethod != nil {
				method = strings.TrimSpace(*paymentMethod)
			}
			ref := inst.ReferenceID
			if referenceID != nil {
				ref = referenceID
			}
			if err := s.verifier.Verify(ctx, method, ref, inst.Amount); err != nil {
				return err
			}
		}
		expected := plan.RowVersion
		inst, err := CorrectReceipt(plan, installmentID, paymentMethod, referenceID, s.clock.Now())
		if err != nil {
			return err
		}
		out = *inst
		return infraErr("save installment plan", tx.Plans.UpdateIfVersion(ctx, plan, expected))
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("installment_id", installmentID).Info("Receipt correction rejected")
		return nil, err
	}
	utils.Logger.WithField("installment_id", installmentID).Info("Receipt corrected")
	return &out, nil
}
