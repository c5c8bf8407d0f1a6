package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

// PaymentNotification is an external payment outcome for a booking: an
// admin's verdict on a bank-transfer slip or a PayPal capture result.
// ExternalReferenceID is the slip review id or the PayPal capture id and,
// together with Outcome, identifies the notification for deduplication.
type PaymentNotification struct {
	BookingID           uint64               `json:"booking_id"`
	Outcome             model.PaymentOutcome `json:"outcome"`
	ExternalReferenceID string               `json:"external_reference_id"`
}

// ReconcileService moves bookings through their payment and lifecycle
// states.  Each call is one transaction with the booking row locked.
type ReconcileService struct {
	store  repository.Store
	cache  SlotCache
	events EventPublisher
	cfg    Settings
	log    *zap.Logger
}

func NewReconcileService(store repository.Store, cache SlotCache, events EventPublisher, cfg Settings, log *zap.Logger) *ReconcileService {
	if cache == nil {
		cache = NopCache{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &ReconcileService{store: store, cache: cache, events: events, cfg: cfg.withDefaults(), log: log}
}

// transition is the result of one reconciliation transaction.
type transition struct {
	booking *model.Booking
	event   string // routing key to publish, empty when nothing changed
}

// Reconcile applies a payment notification.
//
//	verified, captured -> CONFIRMED / PAID
//	rejected, failed   -> PENDING / FAILED
//
// Cancelled and completed bookings reject every outcome.  A paid booking
// ignores further positive outcomes and rejects negative ones.  Replaying a
// notification returns the booking unchanged.
func (s *ReconcileService) Reconcile(ctx context.Context, n PaymentNotification) (*model.Booking, error) {
	if n.BookingID == 0 {
		return nil, invalid("booking_id", "must be positive")
	}
	if !n.Outcome.Valid() {
		return nil, invalid("outcome", "must be one of verified, rejected, captured, failed")
	}
	if n.ExternalReferenceID == "" || len(n.ExternalReferenceID) > 64 {
		return nil, invalid("external_reference_id", "is required and at most 64 characters")
	}

	return s.run(ctx, "reconcile payment", n.BookingID, func(tx repository.Tx, b *model.Booking) (string, error) {
		now := s.cfg.Clock().UTC()
		err := tx.RecordPaymentEvent(ctx, &model.PaymentEvent{
			ExternalReferenceID: n.ExternalReferenceID,
			Outcome:             n.Outcome,
			BookingID:           b.ID,
			ProcessedAt:         now,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			s.log.Info("payment notification replayed",
				zap.Uint64("booking_id", b.ID),
				zap.String("external_reference_id", n.ExternalReferenceID),
				zap.String("outcome", string(n.Outcome)))
			return "", nil
		}
		if err != nil {
			return "", err
		}

		if b.Status.Terminal() {
			return "", &TransitionError{BookingID: b.ID, From: b.Status, Action: "apply payment " + string(n.Outcome)}
		}
		if b.PaymentStatus == model.PaymentPaid {
			if n.Outcome.Positive() {
				return "", nil
			}
			return "", &TransitionError{BookingID: b.ID, From: b.Status, Action: "apply payment " + string(n.Outcome) + " to a paid booking"}
		}

		switch n.Outcome {
		case model.OutcomeVerified, model.OutcomeRejected:
			slip := model.SlipVerified
			if n.Outcome == model.OutcomeRejected {
				slip = model.SlipRejected
			}
			if err := tx.ResolvePendingSlip(ctx, b.ID, slip, now); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return "", notFound("pending payment slip for booking", b.ID)
				}
				return "", err
			}
		case model.OutcomeCaptured, model.OutcomeFailed:
			capture := model.CaptureCompleted
			if n.Outcome == model.OutcomeFailed {
				capture = model.CaptureFailed
			}
			if err := tx.UpsertCapture(ctx, &model.PaymentCapture{
				CaptureID: n.ExternalReferenceID,
				BookingID: b.ID,
				Status:    capture,
				Amount:    b.TotalAmount,
				CreatedAt: now,
			}); err != nil {
				return "", err
			}
		}

		if n.Outcome.Positive() {
			b.Status, b.PaymentStatus = model.BookingConfirmed, model.PaymentPaid
		} else {
			b.Status, b.PaymentStatus = model.BookingPending, model.PaymentFailed
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, b.PaymentStatus); err != nil {
			return "", err
		}
		if n.Outcome.Positive() {
			return EventBookingConfirmed, nil
		}
		return EventBookingPaymentFailed, nil
	})
}

// Cancel releases a booking's window.  Cancelling a cancelled booking is a
// no-op; a completed booking cannot be cancelled.
func (s *ReconcileService) Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	if bookingID == 0 {
		return nil, invalid("booking_id", "must be positive")
	}
	return s.run(ctx, "cancel booking", bookingID, func(tx repository.Tx, b *model.Booking) (string, error) {
		switch b.Status {
		case model.BookingCancelled:
			return "", nil
		case model.BookingCompleted:
			return "", &TransitionError{BookingID: b.ID, From: b.Status, Action: "cancel"}
		}
		b.Status = model.BookingCancelled
		if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, b.PaymentStatus); err != nil {
			return "", err
		}
		return EventBookingCancelled, nil
	})
}

// Complete marks a confirmed booking as served.  Completing a completed
// booking is a no-op; any other status is rejected.
func (s *ReconcileService) Complete(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	if bookingID == 0 {
		return nil, invalid("booking_id", "must be positive")
	}
	return s.run(ctx, "complete booking", bookingID, func(tx repository.Tx, b *model.Booking) (string, error) {
		switch b.Status {
		case model.BookingCompleted:
			return "", nil
		case model.BookingConfirmed:
		default:
			return "", &TransitionError{BookingID: b.ID, From: b.Status, Action: "complete"}
		}
		b.Status = model.BookingCompleted
		if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, b.PaymentStatus); err != nil {
			return "", err
		}
		return EventBookingCompleted, nil
	})
}

// run locks the booking, applies fn in the same transaction, retries
// transient failures and does the post-commit work.
func (s *ReconcileService) run(ctx context.Context, op string, bookingID uint64,
	fn func(tx repository.Tx, b *model.Booking) (string, error)) (*model.Booking, error) {
	t, err := retry(ctx, s.cfg.Retry, s.log, op, func() (transition, error) {
		var t transition
		err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
			b, err := tx.LockBooking(ctx, bookingID)
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("booking", bookingID)
			}
			if err != nil {
				return err
			}
			event, err := fn(tx, b)
			if err != nil {
				return err
			}
			t = transition{booking: b, event: event}
			return nil
		})
		return t, err
	})
	if err != nil {
		return nil, err
	}

	b := t.booking
	if t.event != "" {
		s.cache.Invalidate(ctx, b.CartID, b.Window.Date)
		s.log.Info("booking status changed",
			zap.String("op", op),
			zap.Uint64("booking_id", b.ID),
			zap.String("status", string(b.Status)),
			zap.String("payment_status", string(b.PaymentStatus)))
		publishBest(ctx, s.events, s.log, t.event, b, s.cfg.Clock())
	}

	// Return the full aggregate; the locked row was loaded without lines.
	full, err := s.store.GetBooking(ctx, b.ID)
	if err != nil {
		s.log.Warn("reload booking after status change failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		return b, nil
	}
	return full, nil
}
