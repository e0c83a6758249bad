// Package events publishes order lifecycle events for downstream consumers
// (fulfilment, analytics, notifications).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kicks/internal/domain/orders"
	"kicks/internal/money"

	"github.com/google/uuid"
)

const (
	OrderPlaced        = "order.placed.v1"
	OrderPaid          = "order.paid.v1"
	OrderStatusChanged = "order.status_changed.v1"
)

type Event struct {
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	OrderNumber   string       `json:"order_number"`
	UserID        *int64       `json:"user_id,omitempty"`
	Status        string       `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	TotalAmount   money.Amount `json:"total_amount"`
	Timestamp     time.Time    `json:"timestamp"`
}

// OrderEvent builds an event of the given type from the order's current state.
func OrderEvent(eventType string, o *orders.Order) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		Timestamp:     time.Now().UTC(),
	}
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.EventType, err)
	}
	return body, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
