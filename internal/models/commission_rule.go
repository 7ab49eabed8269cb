package models

import (
	"fmt"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/google/uuid"
)

type CommissionKind string

const (
	CommissionKindPercentage  CommissionKind = "PERCENTAGE"
	CommissionKindFixedAmount CommissionKind = "FIXED_AMOUNT"
)

func ParseCommissionKind(s string) (CommissionKind, error) {
	switch CommissionKind(s) {
	case CommissionKindPercentage, CommissionKindFixedAmount:
		return CommissionKind(s), nil
	default:
		return "", fmt.Errorf("invalid commission kind: %q", s)
	}
}

// CommissionRule is a marketer's rate, optionally scoped to one project.
// A nil ProjectID applies to every project of the marketer.
type CommissionRule struct {
	Versioned
	ID             uuid.UUID          `json:"id"`
	MarketerID     uuid.UUID          `json:"marketer_id"`
	ProjectID      *uuid.UUID         `json:"project_id,omitempty"`
	Name           string             `json:"name"`
	Kind           CommissionKind     `json:"kind"`
	Percentage     *ledger.Percentage `json:"percentage,omitempty"`
	FixedAmount    *ledger.Money      `json:"fixed_amount_minor,omitempty"`
	EffectiveRange ledger.DateRange   `json:"effective_range"`
	Active         bool               `json:"active"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (r *CommissionRule) GetID() string {
	return r.ID.String()
}

// IsMarketerDefault reports whether the rule applies to all projects.
func (r *CommissionRule) IsMarketerDefault() bool {
	return r.ProjectID == nil
}

// SameScope reports whether both rules target the same project scope.
func (r *CommissionRule) SameScope(o *CommissionRule) bool {
	if r.ProjectID == nil || o.ProjectID == nil {
		return r.ProjectID == nil && o.ProjectID == nil
	}
	return *r.ProjectID == *o.ProjectID
}

func (r *CommissionRule) Clone() *CommissionRule {
	if r == nil {
		return nil
	}
	c := *r
	c.ProjectID = clonePtr(r.ProjectID)
	c.Percentage = clonePtr(r.Percentage)
	c.FixedAmount = clonePtr(r.FixedAmount)
	c.EffectiveRange.End = clonePtr(r.EffectiveRange.End)
	return &c
}
