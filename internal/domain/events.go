package domain

import (
	"context"

	"packstock/internal/core/id"
)

// Event types emitted by the ledger workflows.
const (
	EventSaleRecorded     = "sale.recorded"
	EventSaleReversed     = "sale.reversed"
	EventPurchaseReceived = "purchase.received"
	EventStockLow         = "stock.low"
)

// Event is a domain event destined for the transactional outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// EventPublisher records domain events. Implementations write to the
// outbox table within the current transaction so events commit or roll
// back together with the state change that produced them.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no outbox is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
