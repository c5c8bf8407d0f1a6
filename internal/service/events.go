package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// Routing keys of the booking lifecycle events.
const (
	EventBookingCreated       = "booking.created"
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingPaymentFailed = "booking.payment_failed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingCompleted     = "booking.completed"
)

// EventPublisher delivers lifecycle events to downstream consumers
// (notifications, dashboards).  Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	Type          string              `json:"type"`
	BookingID     uint64              `json:"booking_id"`
	Reference     string              `json:"reference"`
	CartID        uint64              `json:"cart_id"`
	Date          model.Date          `json:"date"`
	StartTime     model.Minute        `json:"start_time"`
	EndTime       model.Minute        `json:"end_time"`
	Status        model.BookingStatus `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

func newBookingEvent(kind string, b *model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          kind,
		BookingID:     b.ID,
		Reference:     b.Reference,
		CartID:        b.CartID,
		Date:          b.Window.Date,
		StartTime:     b.Window.Start,
		EndTime:       b.Window.End,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		PaymentMethod: b.PaymentMethod,
		TotalAmount:   b.TotalAmount,
		OccurredAt:    at.UTC(),
	}
}

// publishBest publishes after a commit.  The booking is already durable,
// so a broker failure is logged and otherwise ignored.
func publishBest(ctx context.Context, p EventPublisher, log *zap.Logger, kind string, b *model.Booking, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := p.Publish(ctx, kind, newBookingEvent(kind, b, at)); err != nil {
		log.Error("publish booking event failed",
			zap.String("event", kind),
			zap.Uint64("booking_id", b.ID),
			zap.Error(err))
	}
}
