package models

import (
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/google/uuid"
)

type SaleStatus string

const (
	SaleStatusActive  SaleStatus = "ACTIVE"
	SaleStatusRevoked SaleStatus = "REVOKED"
)

// CommissionStatus tracks what happened to a booked commission; the amount itself never changes.
type CommissionStatus string

const (
	CommissionStatusBooked          CommissionStatus = "BOOKED"
	CommissionStatusRetained        CommissionStatus = "RETAINED"
	CommissionStatusClawbackPending CommissionStatus = "CLAWBACK_PENDING"
)

// CommissionSource records where a sale's commission rate came from.
type CommissionSource string

const (
	CommissionSourceRule     CommissionSource = "rule"
	CommissionSourceFallback CommissionSource = "fallback"
)

// Sale binds a client to a unit. CommissionAmount is fixed at allocation time.
type Sale struct {
	Versioned
	ID                uuid.UUID        `json:"id"`
	UnitID            uuid.UUID        `json:"unit_id"`
	ClientID          uuid.UUID        `json:"client_id"`
	MarketerID        uuid.UUID        `json:"marketer_id"`
	SaleAmount        ledger.Money     `json:"sale_amount_minor"`
	SaleDate          time.Time        `json:"sale_date"`
	CommissionAmount  ledger.Money     `json:"commission_amount_minor"`
	CommissionRuleID  *uuid.UUID       `json:"commission_rule_id,omitempty"`
	CommissionSource  CommissionSource `json:"commission_source"`
	CommissionStatus  CommissionStatus `json:"commission_status"`
	InstallmentPlanID uuid.UUID        `json:"installment_plan_id"`
	Status            SaleStatus       `json:"status"`
	RevokedAt         *time.Time       `json:"revoked_at,omitempty"`
	RevocationReason  *string          `json:"revocation_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (s *Sale) GetID() string {
	return s.ID.String()
}

func (s *Sale) IsActive() bool {
	return s.Status == SaleStatusActive
}

func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	c.CommissionRuleID = clonePtr(s.CommissionRuleID)
	c.RevokedAt = clonePtr(s.RevokedAt)
	c.RevocationReason = clonePtr(s.RevocationReason)
	return &c
}
