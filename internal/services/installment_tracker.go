package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StageInput describes one installment of a new plan.
type StageInput struct {
	StageName string
	Amount    ledger.Money
	DueDate   time.Time
}

// InstallmentView is an installment with its status derived for a given day.
type InstallmentView struct {
	models.Installment
	Status models.InstallmentStatus `json:"status"`
}

// Progress summarises a plan's payments. TotalAmount is the current total.
type Progress struct {
	PlanID       uuid.UUID         `json:"plan_id"`
	SaleID       uuid.UUID         `json:"sale_id"`
	PlanStatus   models.PlanStatus `json:"plan_status"`
	PaidAmount   ledger.Money      `json:"paid_amount_minor"`
	TotalAmount  ledger.Money      `json:"total_amount_minor"`
	Balance      ledger.Money      `json:"balance_minor"`
	PercentPaid  decimal.Decimal   `json:"percent_paid"`
	Installments []InstallmentView `json:"installments"`
}

// NewInstallmentPlan builds a plan whose stages add up exactly to total.
func NewInstallmentPlan(saleID uuid.UUID, total ledger.Money, stages []StageInput, now time.Time) (*models.InstallmentPlan, error) {
	amounts := make([]ledger.Money, 0, len(stages))
	for i, st := range stages {
		if !st.Amount.IsPositive() || st.Amount > ledger.MaxAmount {
			return nil, utils.Violation(utils.ErrInvalidAmount, "",
				"stage_index", strconv.Itoa(i),
				"amount", st.Amount.String(),
			)
		}
		if strings.TrimSpace(st.StageName) == "" || st.DueDate.IsZero() {
			return nil, utils.Violation(utils.ErrInvalidAmount, "",
				"stage_index", strconv.Itoa(i),
				"reason", "stage name and due date are required",
			)
		}
		amounts = append(amounts, st.Amount)
	}
	sum, ok := ledger.Sum(amounts...)
	if !ok {
		return nil, utils.Violation(utils.ErrInvalidAmount, "",
			"reason", "stage amounts exceed the ledger range",
			"stages", strconv.Itoa(len(stages)),
		)
	}
	if sum != total {
		return nil, utils.Violation(utils.ErrPlanAmountMismatch, "",
			"expected_total", total.String(),
			"stages_total", sum.String(),
			"difference", total.Sub(sum).String(),
		)
	}

	plan := &models.InstallmentPlan{
		ID:            uuid.New(),
		SaleID:        saleID,
		OriginalTotal: total,
		CurrentTotal:  total,
		Status:        models.PlanStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, st := range stages {
		plan.Installments = append(plan.Installments, models.Installment{
			ID:        uuid.New(),
			PlanID:    plan.ID,
			Sequence:  i + 1,
			StageName: strings.TrimSpace(st.StageName),
			Amount:    st.Amount,
			DueDate:   ledger.DateOnly(st.DueDate),
		})
	}
	return plan, nil
}

// RecordPayment marks an installment of an active plan as paid. A paid
// installment is never overwritten.
func RecordPayment(
	plan *models.InstallmentPlan,
	installmentID uuid.UUID,
	paidDate time.Time,
	paymentMethod string,
	referenceID *string,
	now time.Time,
) (*models.Installment, error) {
	if plan == nil || !plan.IsActive() {
		return nil, utils.Violation(utils.ErrUnknownInstallment, "", "installment_id", installmentID.String())
	}
	inst := plan.Find(installmentID)
	if inst == nil {
		return nil, utils.Violation(utils.ErrUnknownInstallment, "", "installment_id", installmentID.String())
	}
	if inst.IsPaid() {
		return nil, utils.Violation(utils.ErrAlreadyPaid, "",
			"installment_id", installmentID.String(),
			"paid_date", inst.PaidDate.Format(ledger.DateLayout),
		)
	}
	paid := ledger.DateOnly(paidDate)
	method := strings.TrimSpace(paymentMethod)
	inst.PaidDate = &paid
	inst.PaymentMethod = &method
	inst.ReferenceID = referenceID
	plan.UpdatedAt = now
	return inst, nil
}

// CorrectReceipt fixes the payment method or reference of a paid
// installment. The paid date is left unchanged.
func CorrectReceipt(
	plan *models.InstallmentPlan,
	installmentID uuid.UUID,
	paymentMethod *string,
	referenceID *string,
	now time.Time,
) (*models.Installment, error) {
	var inst *models.Installment
	if plan != nil {
		inst = plan.Find(installmentID)
	}
	if inst == nil {
		return nil, utils.Violation(utils.ErrUnknownInstallment, "", "installment_id", installmentID.String())
	}
	if !inst.IsPaid() {
		return nil, utils.Violation(utils.ErrInstallmentNotPaid, "", "installment_id", installmentID.String())
	}
	if paymentMethod != nil {
		m := strings.TrimSpace(*paymentMethod)
		inst.PaymentMethod = &m
	}
	if referenceID != nil {
		inst.ReferenceID = referenceID
	}
	plan.UpdatedAt = now
	return inst, nil
}

// AddInstallment amends an active plan with a new pending stage and raises
// its current total by the same amount.
func AddInstallment(
	plan *models.InstallmentPlan,
	stageName string,
	amount ledger.Money,
	dueDate time.Time,
	now time.Time,
) (*models.Installment, error) {
	if !plan.IsActive() {
		return nil, utils.Violation(utils.ErrPlanCancelled, "", "plan_id", plan.ID.String())
	}
	if !amount.IsPositive() || amount > ledger.MaxAmount {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "amount", amount.String())
	}
	if strings.TrimSpace(stageName) == "" || dueDate.IsZero() {
		return nil, utils.Violation(utils.ErrInvalidAmount, "", "reason", "stage name and due date are required")
	}
	total, ok := plan.CurrentTotal.Add(amount)
	if !ok {
		return nil, utils.Violation(utils.ErrInvalidAmount, "",
			"amount", amount.String(),
			"current_total", plan.CurrentTotal.String(),
			"reason", "plan total would exceed the ledger range",
		)
	}

	seq := 0
	for _, inst := range plan.Installments {
		seq = max(seq, inst.Sequence)
	}
	plan.Installments = append(plan.Installments, models.Installment{
		ID:        uuid.New(),
		PlanID:    plan.ID,
		Sequence:  seq + 1,
		StageName: strings.TrimSpace(stageName),
		Amount:    amount,
		DueDate:   ledger.DateOnly(dueDate),
	})
	plan.CurrentTotal = total
	plan.UpdatedAt = now
	return &plan.Installments[len(plan.Installments)-1], nil
}

// CancelPlan stops further payments. Paid installments stay paid.
func CancelPlan(plan *models.InstallmentPlan, now time.Time) {
	if !plan.IsActive() {
		return
	}
	plan.Status = models.PlanStatusCancelled
	plan.CancelledAt = &now
	plan.UpdatedAt = now
}

// DeriveInstallmentStatus: Paid if a paid date is set, Overdue if the due
// date is before today, Pending otherwise.
func DeriveInstallmentStatus(inst models.Installment, today time.Time) models.InstallmentStatus {
	if inst.IsPaid() {
		return models.InstallmentStatusPaid
	}
	if ledger.DateOnly(inst.DueDate).Before(ledger.DateOnly(today)) {
		return models.InstallmentStatusOverdue
	}
	return models.InstallmentStatusPending
}

// PaidAmount sums the paid installments. Paid amounts are a subset of a
// plan total that was range-checked when built or amended.
func PaidAmount(plan *models.InstallmentPlan) ledger.Money {
	var paid ledger.Money
	for _, inst := range plan.Installments {
		if inst.IsPaid() {
			paid += inst.Amount
		}
	}
	return paid
}

// ComputeProgress reports paid, total, balance and percent paid rounded to
// one decimal. A zero total reports 0%.
func ComputeProgress(plan *models.InstallmentPlan, today time.Time) Progress {
	paid := PaidAmount(plan)
	p := Progress{
		PlanID:       plan.ID,
		SaleID:       plan.SaleID,
		PlanStatus:   plan.Status,
		PaidAmount:   paid,
		TotalAmount:  plan.CurrentTotal,
		Balance:      plan.CurrentTotal.Sub(paid),
		PercentPaid:  ledger.Ratio(paid, plan.CurrentTotal, 1),
		Installments: make([]InstallmentView, 0, len(plan.Installments)),
	}
	for _, inst := range plan.Installments {
		p.Installments = append(p.Installments, InstallmentView{
			Installment: inst,
			Status:      DeriveInstallmentStatus(inst, today),
		})
	}
	return p
}
