package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// PaymentRepo tracks the payment artifacts of bookings: bank-transfer
// slips, PayPal captures and the ledger of processed payment events.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to db.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// RecordEventTx appends ev to payment_events.  The table's primary key is
// (external_reference_id, outcome); a replay yields ErrDuplicate and the
// caller treats the event as already applied.
func (r *PaymentRepo) RecordEventTx(ctx context.Context, tx *sql.Tx, ev *model.PaymentEvent) error {
	const q = `INSERT INTO payment_events (external_reference_id, outcome, booking_id, processed_at)
               VALUES (?, ?, ?, ?)`
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q, ev.ExternalReferenceID, string(ev.Outcome), ev.BookingID, ev.ProcessedAt)
	return classify(err)
}

// ResolvePendingSlipTx moves the most recent PENDING slip of a booking to
// status and stamps reviewed_at.  It returns ErrNotFound when there is no
// pending slip.
func (r *PaymentRepo) ResolvePendingSlipTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status model.SlipStatus, at time.Time) error {
	const sel = `SELECT id FROM payment_slips
                 WHERE booking_id = ? AND status = 'PENDING'
                 ORDER BY created_at DESC, id DESC
                 LIMIT 1
                 FOR UPDATE`
	var slipID uint64
	if err := tx.QueryRowContext(ctx, sel, bookingID).Scan(&slipID); err != nil {
		return classify(err)
	}
	const upd = `UPDATE payment_slips SET status = ?, reviewed_at = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, upd, string(status), at.UTC(), slipID)
	return classify(err)
}

// UpsertCaptureTx records a PayPal capture.  A capture that is reported
// again keeps its row and takes the latest status.
func (r *PaymentRepo) UpsertCaptureTx(ctx context.Context, tx *sql.Tx, c *model.PaymentCapture) error {
	const q = `INSERT INTO payment_captures (capture_id, booking_id, status, amount, created_at)
               VALUES (?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE status = VALUES(status)`
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q, c.CaptureID, c.BookingID, string(c.Status), c.Amount, c.CreatedAt)
	return classify(err)
}
