package models

import (
	"time"

	"github.com/google/uuid"
)

type DomainEventType string

const (
	EventUnitReserved               DomainEventType = "unit.reserved"
	EventUnitOfferIssued            DomainEventType = "unit.offer_issued"
	EventUnitAllocated              DomainEventType = "unit.allocated"
	EventUnitAllocationRevoked      DomainEventType = "unit.allocation_revoked"
	EventUnitSold                   DomainEventType = "unit.sold"
	EventUnitReleased               DomainEventType = "unit.released"
	EventUnitOfferExpired           DomainEventType = "unit.offer_expired"
	EventInstallmentPaid            DomainEventType = "installment.paid"
	EventCommissionClawbackRequired DomainEventType = "commission.clawback_requested"
)

type EventDeliveryStatus string

const (
	EventDeliveryPending    EventDeliveryStatus = "PENDING"
	EventDeliveryDispatched EventDeliveryStatus = "DISPATCHED"
	EventDeliveryFailed     EventDeliveryStatus = "FAILED"
)

// DomainEvent is an outbox record written in the same unit of work as the change it describes.
type DomainEvent struct {
	ID                uuid.UUID           `json:"id"`
	Type              DomainEventType     `json:"type"`
	UnitID            uuid.UUID           `json:"unit_id"`
	SaleID            *uuid.UUID          `json:"sale_id,omitempty"`
	Timestamp         time.Time           `json:"timestamp"`
	Payload           map[string]string   `json:"payload,omitempty"`
	DeliveryStatus    EventDeliveryStatus `json:"delivery_status"`
	Attempts          int                 `json:"attempts"`
	LastFailureReason *string             `json:"last_failure_reason,omitempty"`
	DispatchedAt      *time.Time          `json:"dispatched_at,omitempty"`
}

func (e *DomainEvent) Clone() *DomainEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.SaleID = clonePtr(e.SaleID)
	c.LastFailureReason = clonePtr(e.LastFailureReason)
	c.DispatchedAt = clonePtr(e.DispatchedAt)
	if e.Payload != nil {
		c.Payload = make(map[string]string, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
