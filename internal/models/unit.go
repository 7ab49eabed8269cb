package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/google/uuid"
)

// UnitStatus is the lifecycle state of a sellable unit.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusReserved  UnitStatus = "reserved"
	UnitStatusOffered   UnitStatus = "offered"
	UnitStatusAllocated UnitStatus = "allocated"
	UnitStatusSold      UnitStatus = "sold"
	UnitStatusRevoked   UnitStatus = "revoked"
)

var allUnitStatuses = []UnitStatus{
	UnitStatusAvailable,
	UnitStatusReserved,
	UnitStatusOffered,
	UnitStatusAllocated,
	UnitStatusSold,
	UnitStatusRevoked,
}

func (s UnitStatus) Valid() bool {
	return slices.Contains(allUnitStatuses, s)
}

// ParseUnitStatus converts a wire string to the enum.
func ParseUnitStatus(s string) (UnitStatus, error) {
	st := UnitStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid unit status: %q", s)
	}
	return st, nil
}

// StatusChange is one append-only entry of a unit's status history.
type StatusChange struct {
	From      UnitStatus `json:"from,omitempty"`
	Status    UnitStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	ActorID   string     `json:"actor_id"`
	Reason    string     `json:"reason,omitempty"`
}

// Unit is a sellable inventory item belonging to a block within a project.
type Unit struct {
	Versioned
	ID              uuid.UUID      `json:"id"`
	BlockID         uuid.UUID      `json:"block_id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	PlotLabel       string         `json:"plot_label"`
	Size            string         `json:"size"`
	BasePrice       ledger.Money   `json:"base_price_minor"`
	Status          UnitStatus     `json:"status"`
	CurrentClientID *uuid.UUID     `json:"current_client_id,omitempty"`
	StatusHistory   []StatusChange `json:"status_history"`

	OfferExpiresAt       *time.Time `json:"offer_expires_at,omitempty"`
	OfferExpiryEmittedAt *time.Time `json:"offer_expiry_emitted_at,omitempty"`
	ArchivedAt           *time.Time `json:"archived_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (u *Unit) GetID() string {
	return u.ID.String()
}

// HasLeftAvailable reports whether the unit was ever moved out of available.
func (u *Unit) HasLeftAvailable() bool {
	for _, h := range u.StatusHistory {
		if h.Status != UnitStatusAvailable {
			return true
		}
	}
	return u.Status != UnitStatusAvailable
}

func (u *Unit) IsArchived() bool {
	return u.ArchivedAt != nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	c := *u
	c.StatusHistory = slices.Clone(u.StatusHistory)
	c.CurrentClientID = clonePtr(u.CurrentClientID)
	c.OfferExpiresAt = clonePtr(u.OfferExpiresAt)
	c.OfferExpiryEmittedAt = clonePtr(u.OfferExpiryEmittedAt)
	c.ArchivedAt = clonePtr(u.ArchivedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
