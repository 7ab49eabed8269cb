package dtos

import (
	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/google/uuid"
)

// CommissionRuleRequest is used for create and update. MarketerID is
// required on create and must not change on update.
type CommissionRuleRequest struct {
	MarketerID       string  `json:"marketer_id" validate:"omitempty,uuid"`
	ProjectID        *string `json:"project_id,omitempty" validate:"omitempty,uuid"`
	Name             string  `json:"name" validate:"required,max=128"`
	Kind             string  `json:"kind" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Percentage       *string `json:"percentage,omitempty" validate:"omitempty,numeric"`
	FixedAmountMinor *int64  `json:"fixed_amount_minor,omitempty" validate:"omitempty,gte=0,lte=1000000000000000"`
	EffectiveFrom    string  `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveTo      *string `json:"effective_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CommissionPreviewResponse struct {
	RuleID                *uuid.UUID         `json:"rule_id,omitempty"`
	Source                string             `json:"source"`
	Percentage            *ledger.Percentage `json:"percentage,omitempty"`
	FixedAmountMinor      *int64             `json:"fixed_amount_minor,omitempty"`
	SaleAmountMinor       int64              `json:"sale_amount_minor"`
	CommissionAmountMinor int64              `json:"commission_amount_minor"`
	CommissionAmount      string             `json:"commission_amount"`
}

type DeleteCommissionRuleResponse struct {
	RuleID      uuid.UUID `json:"rule_id"`
	Deleted     bool      `json:"deleted"`
	Deactivated bool      `json:"deactivated"`
}

// CommissionPreviewQuery is read from the query string.
type CommissionPreviewQuery struct {
	MarketerID      string `validate:"required,uuid"`
	ProjectID       string `validate:"required,uuid"`
	SaleAmountMinor string `validate:"required,number"`
	Date            string `validate:"required,datetime=2006-01-02"`
}
