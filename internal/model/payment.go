package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOutcome is the result reported by an external payment event.
type PaymentOutcome string

const (
	OutcomeVerified PaymentOutcome = "verified" // bank slip verified by an admin
	OutcomeRejected PaymentOutcome = "rejected" // bank slip rejected by an admin
	OutcomeCaptured PaymentOutcome = "captured" // PayPal capture COMPLETED
	OutcomeFailed   PaymentOutcome = "failed"   // PayPal capture failed
)

// Valid reports whether o is a known outcome.
func (o PaymentOutcome) Valid() bool {
	switch o {
	case OutcomeVerified, OutcomeRejected, OutcomeCaptured, OutcomeFailed:
		return true
	}
	return false
}

// Positive reports whether the outcome settles the payment.
func (o PaymentOutcome) Positive() bool {
	return o == OutcomeVerified || o == OutcomeCaptured
}

// SlipBased reports whether the outcome concerns a bank-transfer slip rather
// than a PayPal capture.
func (o PaymentOutcome) SlipBased() bool {
	return o == OutcomeVerified || o == OutcomeRejected
}

// SlipStatus is the review state of a bank-transfer payment slip.
type SlipStatus string

const (
	SlipPending  SlipStatus = "PENDING"
	SlipVerified SlipStatus = "VERIFIED"
	SlipRejected SlipStatus = "REJECTED"
)

// PaymentSlip is an uploaded bank-transfer receipt.  Uploading is handled
// elsewhere; the booking core only moves it out of PENDING.
type PaymentSlip struct {
	ID         uint64     `json:"id"`
	BookingID  uint64     `json:"booking_id"`
	FileURL    string     `json:"file_url,omitempty"`
	Status     SlipStatus `json:"status"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CaptureStatus is the state of a PayPal capture record.
type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "COMPLETED"
	CaptureFailed    CaptureStatus = "FAILED"
)

// PaymentCapture records a PayPal capture for a booking.  CaptureID is the
// processor's identifier.
type PaymentCapture struct {
	ID        uint64          `json:"id"`
	CaptureID string          `json:"capture_id"`
	BookingID uint64          `json:"booking_id"`
	Status    CaptureStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentEvent is a processed payment notification.  (ExternalReferenceID,
// Outcome) is unique so replays are detected.
type PaymentEvent struct {
	ExternalReferenceID string         `json:"external_reference_id"`
	Outcome             PaymentOutcome `json:"outcome"`
	BookingID           uint64         `json:"booking_id"`
	ProcessedAt         time.Time      `json:"processed_at"`
}
