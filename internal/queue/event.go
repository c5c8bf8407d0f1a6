// Package queue carries booking events to RabbitMQ and payment outcomes
// back from it.
package queue

import (
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// PaymentEventMessage is the body of a message on the payment.events queue.
// The payment gateway webhook relay and the admin slip review both publish
// it.
type PaymentEventMessage struct {
	BookingID           uint64               `json:"booking_id"`
	Outcome             model.PaymentOutcome `json:"outcome"`
	ExternalReferenceID string               `json:"external_reference_id"`
	OccurredAt          time.Time            `json:"occurred_at,omitempty"`
}

// Notification converts the message into the reconciler's input.
func (m PaymentEventMessage) Notification() service.PaymentNotification {
	return service.PaymentNotification{
		BookingID:           m.BookingID,
		Outcome:             m.Outcome,
		ExternalReferenceID: m.ExternalReferenceID,
	}
}
