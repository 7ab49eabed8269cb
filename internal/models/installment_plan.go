package models

import (
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/google/uuid"
)

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// InstallmentStatus is derived at read time; it is never stored.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "Pending"
	InstallmentStatusPaid    InstallmentStatus = "Paid"
	InstallmentStatusOverdue InstallmentStatus = "Overdue"
)

// Installment is one stage of a payment schedule.
type Installment struct {
	ID            uuid.UUID    `json:"id"`
	PlanID        uuid.UUID    `json:"plan_id"`
	Sequence      int          `json:"sequence"`
	StageName     string       `json:"stage_name"`
	Amount        ledger.Money `json:"amount_minor"`
	DueDate       time.Time    `json:"due_date"`
	PaidDate      *time.Time   `json:"paid_date,omitempty"`
	PaymentMethod *string      `json:"payment_method,omitempty"`
	ReferenceID   *string      `json:"reference_id,omitempty"`
}

func (i *Installment) IsPaid() bool {
	return i.PaidDate != nil
}

// InstallmentPlan is the payment schedule of a sale.
// OriginalTotal is fixed at creation; CurrentTotal tracks amendments.
type InstallmentPlan struct {
	Versioned
	ID            uuid.UUID     `json:"id"`
	SaleID        uuid.UUID     `json:"sale_id"`
	OriginalTotal ledger.Money  `json:"original_total_minor"`
	CurrentTotal  ledger.Money  `json:"current_total_minor"`
	Status        PlanStatus    `json:"status"`
	Installments  []Installment `json:"installments"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (p *InstallmentPlan) GetID() string {
	return p.ID.String()
}

func (p *InstallmentPlan) IsActive() bool {
	return p.Status == PlanStatusActive
}

// Find returns the installment with the given id, or nil.
func (p *InstallmentPlan) Find(installmentID uuid.UUID) *Installment {
	for i := range p.Installments {
		if p.Installments[i].ID == installmentID {
			return &p.Installments[i]
		}
	}
	return nil
}

func (p *InstallmentPlan) Clone() *InstallmentPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.CancelledAt = clonePtr(p.CancelledAt)
	c.Installments = make([]Installment, len(p.Installments))
	for i, inst := range p.Installments {
		inst.PaidDate = clonePtr(inst.PaidDate)
		inst.PaymentMethod = clonePtr(inst.PaymentMethod)
		inst.ReferenceID = clonePtr(inst.ReferenceID)
		c.Installments[i] = inst
	}
	return &c
}
