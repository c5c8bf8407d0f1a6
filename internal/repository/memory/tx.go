package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

// tx operates on the private state copy of one RunInTx call.  The store's
// write lock is held for its whole life, so the lock methods only record
// what they would lock in MySQL.
type tx struct {
	st *state
}

func (t *tx) BookingByReference(ctx context.Context, ref string) (*model.Booking, error) {
	id, ok := t.st.refs[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(t.st.bookings[id]), nil
}

func (t *tx) LockCartDay(ctx context.Context, cartID uint64, date model.Date) error {
	t.st.dayLocks[fmt.Sprintf("%d:%s", cartID, date)] = time.Now().UTC()
	return nil
}

func (t *tx) ActiveSlotsForUpdate(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, error) {
	return t.st.activeSlots(cartID, date, date), nil
}

// CreateBooking mirrors the MySQL unique keys on reference and on the
// active slot key.
func (t *tx) CreateBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := t.st.refs[b.Reference]; ok && b.Reference != "" {
		return fmt.Errorf("%w: reference %s", repository.ErrDuplicate, b.Reference)
	}
	if b.Status.Active() {
		for _, o := range t.st.bookings {
			if o.CartID == b.CartID && o.Status.Active() && sameWindow(o.Window, b.Window) {
				return fmt.Errorf("%w: active slot %d:%s", repository.ErrDuplicate, b.CartID, b.Window)
			}
		}
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt
	b.ID = t.st.nextID()
	for i := range b.Items {
		b.Items[i].ID = t.st.nextID()
		b.Items[i].BookingID = b.ID
	}
	for i := range b.Services {
		b.Services[i].ID = t.st.nextID()
		b.Services[i].BookingID = b.ID
	}
	t.st.bookings[b.ID] = *copyBooking(*b)
	if b.Reference != "" {
		t.st.refs[b.Reference] = b.ID
	}
	return nil
}

func (t *tx) LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return t.st.couponByCode(code)
}

func (t *tx) CountCouponUsage(ctx context.Context, couponID uint64) (int, error) {
	return t.st.countUsage(couponID), nil
}

func (t *tx) CreateCouponUsage(ctx context.Context, u *model.CouponUsage) error {
	for _, o := range t.st.usages {
		if o.BookingID == u.BookingID {
			return fmt.Errorf("%w: coupon usage for booking %d", repository.ErrDuplicate, u.BookingID)
		}
	}
	u.ID = t.st.nextID()
	t.st.usages = append(t.st.usages, *u)
	return nil
}

func (t *tx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(b), nil
}

func (t *tx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	b, ok := t.st.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	b.PaymentStatus = payment
	b.UpdatedAt = time.Now().UTC()
	t.st.bookings[id] = b
	return nil
}

func (t *tx) RecordPaymentEvent(ctx context.Context, ev *model.PaymentEvent) error {
	k := eventKey{ref: ev.ExternalReferenceID, outcome: ev.Outcome}
	if _, ok := t.st.events[k]; ok {
		return fmt.Errorf("%w: payment event %s/%s", repository.ErrDuplicate, ev.ExternalReferenceID, ev.Outcome)
	}
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}
	t.st.events[k] = *ev
	return nil
}

func (t *tx) ResolvePendingSlip(ctx context.Context, bookingID uint64, status model.SlipStatus, at time.Time) error {
	var latest *model.PaymentSlip
	for _, sl := range t.st.slips {
		if sl.BookingID != bookingID || sl.Status != model.SlipPending {
			continue
		}
		if latest == nil || sl.CreatedAt.After(latest.CreatedAt) ||
			(sl.CreatedAt.Equal(latest.CreatedAt) && sl.ID > latest.ID) {
			cp := sl
			latest = &cp
		}
	}
	if latest == nil {
		return repository.ErrNotFound
	}
	reviewed := at.UTC()
	latest.Status = status
	latest.ReviewedAt = &reviewed
	t.st.slips[latest.ID] = *latest
	return nil
}

func (t *tx) UpsertCapture(ctx context.Context, c *model.PaymentCapture) error {
	if cur, ok := t.st.captures[c.CaptureID]; ok {
		cur.Status = c.Status
		t.st.captures[c.CaptureID] = cur
		return nil
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.ID = t.st.nextID()
	t.st.captures[c.CaptureID] = *c
	return nil
}

func sameWindow(a, b model.TimeWindow) bool {
	return a.Date.Equal(b.Date) && a.Start == b.Start && a.End == b.End
}

var _ repository.Tx = (*tx)(nil)
