package services

import (
	"slices"
	"strings"
	"time"

	"github.com/DennisTemoye/propty-os1-sub003/internal/models"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/google/uuid"
)

// unitTransitions lists every legal edge. Anything else is illegal.
var unitTransitions = map[models.UnitStatus][]models.UnitStatus{
	models.UnitStatusAvailable: {models.UnitStatusReserved, models.UnitStatusOffered},
	models.UnitStatusReserved:  {models.UnitStatusOffered, models.UnitStatusAllocated, models.UnitStatusRevoked},
	models.UnitStatusOffered:   {models.UnitStatusAllocated, models.UnitStatusRevoked},
	models.UnitStatusAllocated: {models.UnitStatusSold, models.UnitStatusRevoked},
	models.UnitStatusSold:      {models.UnitStatusRevoked},
	models.UnitStatusRevoked:   {models.UnitStatusAvailable},
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to models.UnitStatus) bool {
	return slices.Contains(unitTransitions[from], to)
}

// UnitStateMachine is the only code that changes Unit.Status. Each method
// checks every guard before touching the unit, then applies the status and
// its history entry together.
type UnitStateMachine struct {
	clock       utils.Clock
	offerWindow time.Duration
}

func NewUnitStateMachine(clock utils.Clock, offerWindow time.Duration) *UnitStateMachine {
	return &UnitStateMachine{clock: clock, offerWindow: offerWindow}
}

func (m *UnitStateMachine) illegal(u *models.Unit, to models.UnitStatus) error {
	return utils.TransitionViolation(utils.ErrIllegalTransition, u.ID.String(), string(u.Status), string(to))
}

// check runs the guards shared by all transitions.
func (m *UnitStateMachine) check(u *models.Unit, to models.UnitStatus) error {
	if u.IsArchived() {
		return utils.TransitionViolation(utils.ErrUnitArchived, u.ID.String(), string(u.Status), string(to))
	}
	if !CanTransition(u.Status, to) {
		return m.illegal(u, to)
	}
	return nil
}

func (m *UnitStateMachine) apply(u *models.Unit, to models.UnitStatus, actorID, reason string) {
	now := m.clock.Now()
	u.StatusHistory = append(u.StatusHistory, models.StatusChange{
		From:      u.Status,
		Status:    to,
		Timestamp: now,
		ActorID:   actorID,
		Reason:    reason,
	})
	u.Status = to
	u.UpdatedAt = now
}

// Reserve holds an available unit for a client.
func (m *UnitStateMachine) Reserve(u *models.Unit, clientID uuid.UUID, actorID string) error {
	if err := m.check(u, models.UnitStatusReserved); err != nil {
		return err
	}
	m.apply(u, models.UnitStatusReserved, actorID, "")
	u.CurrentClientID = &clientID
	return nil
}

// IssueOffer starts the offer window. A reserved unit keeps its client
// unless clientID is given.
func (m *UnitStateMachine) IssueOffer(u *models.Unit, clientID *uuid.UUID, actorID string) error {
	if err := m.check(u, models.UnitStatusOffered); err != nil {
		return err
	}
	m.apply(u, models.UnitStatusOffered, actorID, "")
	if clientID != nil {
		id := *clientID
		u.CurrentClientID = &id
	}
	expires := u.UpdatedAt.Add(m.offerWindow)
	u.OfferExpiresAt = &expires
	u.OfferExpiryEmittedAt = nil
	return nil
}

// CheckAllocatable reports UnitNotAvailableForAllocation unless the unit
// is reserved or offered.
func (m *UnitStateMachine) CheckAllocatable(u *models.Unit) error {
	if u.IsArchived() {
		return utils.TransitionViolation(utils.ErrUnitArchived, u.ID.String(), string(u.Status), string(models.UnitStatusAllocated))
	}
	if u.Status != models.UnitStatusReserved && u.Status != models.UnitStatusOffered {
		return utils.TransitionViolation(
			utils.ErrUnitNotAvailableForAllocation,
			u.ID.String(), string(u.Status), string(models.UnitStatusAllocated),
		)
	}
	return nil
}

// Allocate binds the unit to sale. The sale must be active and reference
// this unit.
func (m *UnitStateMachine) Allocate(u *models.Unit, sale *models.Sale, actorID string) error {
	if err := m.CheckAllocatable(u); err != nil {
		return err
	}
	if sale == nil || sale.UnitID != u.ID || !sale.IsActive() {
		return utils.TransitionViolation(utils.ErrNoSaleRecord, u.ID.String(), string(u.Status), string(models.UnitStatusAllocated))
	}
	m.apply(u, models.UnitStatusAllocated, actorID, "")
	clientID := sale.ClientID
	u.CurrentClientID = &clientID
	u.OfferExpiresAt = nil
	u.OfferExpiryEmittedAt = nil
	return nil
}

// MarkSold records completion of payment. It never happens automatically.
func (m *UnitStateMachine) MarkSold(u *models.Unit, actorID string) error {
	if err := m.check(u, models.UnitStatusSold); err != nil {
		return err
	}
	m.apply(u, models.UnitStatusSold, actorID, "")
	return nil
}

// Revoke withdraws the unit from any held or sold state. A reason is required.
func (m *UnitStateMachine) Revoke(u *models.Unit, reason, actorID string) error {
	if u.Status == models.UnitStatusAvailable && !u.IsArchived() {
		return utils.TransitionViolation(utils.ErrUnitAlreadyAvailable, u.ID.String(), string(u.Status), string(models.UnitStatusRevoked))
	}
	if err := m.check(u, models.UnitStatusRevoked); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return utils.TransitionViolation(utils.ErrMissingReason, u.ID.String(), string(u.Status), string(models.UnitStatusRevoked))
	}
	m.apply(u, models.UnitStatusRevoked, actorID, reason)
	u.CurrentClientID = nil
	u.OfferExpiresAt = nil
	u.OfferExpiryEmittedAt = nil
	return nil
}

// Release returns a revoked unit to inventory. History is kept.
func (m *UnitStateMachine) Release(u *models.Unit, actorID string) error {
	if err := m.check(u, models.UnitStatusAvailable); err != nil {
		return err
	}
	m.apply(u, models.UnitStatusAvailable, actorID, "")
	return nil
}

// Transition drives a unit to status to through the matching operation.
// Allocation needs a sale, so it is rejected here with NoSaleRecord (or
// UnitNotAvailableForAllocation when the unit is not allocatable).
func (m *UnitStateMachine) Transition(u *models.Unit, to models.UnitStatus, actorID, reason string) error {
	switch to {
	case models.UnitStatusReserved:
		if err := m.check(u, to); err != nil {
			return err
		}
		m.apply(u, to, actorID, "")
		return nil
	case models.UnitStatusOffered:
		return m.IssueOffer(u, nil, actorID)
	case models.UnitStatusAllocated:
		return m.Allocate(u, nil, actorID)
	case models.UnitStatusSold:
		return m.MarkSold(u, actorID)
	case models.UnitStatusRevoked:
		return m.Revoke(u, reason, actorID)
	case models.UnitStatusAvailable:
		return m.Release(u, actorID)
	default:
		return m.illegal(u, to)
	}
}

// IsOfferExpired reports whether an offered unit's window has elapsed at now.
func IsOfferExpired(u *models.Unit, now time.Time) bool {
	return u.Status == models.UnitStatusOffered &&
		u.OfferExpiresAt != nil &&
		now.After(*u.OfferExpiresAt)
}
