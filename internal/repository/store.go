package repository

import (
	"context"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// Catalog reads the admin-managed carts, food items and services.  Lookups
// by id return only the rows that exist; callers compare lengths to detect
// unknown ids.
type Catalog interface {
	GetCart(ctx context.Context, id uint64) (*model.Cart, error)
	FoodItemsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error)
	ServicesByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceOffering, error)
}

// BookingReader serves lock-free reads of bookings.
type BookingReader interface {
	// ActiveSlots returns the PENDING and CONFIRMED bookings of a cart
	// whose date lies in [from, to], ordered by date then start.
	ActiveSlots(ctx context.Context, cartID uint64, from, to model.Date) ([]model.BookedSlot, error)
	// GetBooking loads a booking with its item and service lines.
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
}

// CouponReader serves lock-free reads of coupons.
type CouponReader interface {
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	CountCouponUsage(ctx context.Context, couponID uint64) (int, error)
}

// Tx is the set of operations available inside a store transaction.  Every
// method observes the writes made earlier in the same transaction; nothing
// is visible to other callers until the transaction commits.
type Tx interface {
	// BookingByReference returns the booking created with ref, or
	// ErrNotFound.
	BookingByReference(ctx context.Context, ref string) (*model.Booking, error)
	// LockCartDay takes the exclusive admission lock for (cartID, date).
	// The lock is held until the transaction ends.
	LockCartDay(ctx context.Context, cartID uint64, date model.Date) error
	// ActiveSlotsForUpdate is ActiveSlots for a single day with row locks.
	ActiveSlotsForUpdate(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, error)
	// CreateBooking inserts the booking with its lines and fills in the
	// generated ids and timestamps.  A second active booking for the same
	// slot fails with ErrDuplicate.
	CreateBooking(ctx context.Context, b *model.Booking) error

	LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	CountCouponUsage(ctx context.Context, couponID uint64) (int, error)
	CreateCouponUsage(ctx context.Context, u *model.CouponUsage) error

	// LockBooking loads a booking without its lines and locks its row.
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error

	// RecordPaymentEvent stores a processed payment event.  A replay of the
	// same (external reference, outcome) fails with ErrDuplicate.
	RecordPaymentEvent(ctx context.Context, ev *model.PaymentEvent) error
	// ResolvePendingSlip moves the latest PENDING slip of a booking to
	// status.  It returns ErrNotFound when the booking has no pending slip.
	ResolvePendingSlip(ctx context.Context, bookingID uint64, status model.SlipStatus, at time.Time) error
	// UpsertCapture records a capture keyed by its processor id.
	UpsertCapture(ctx context.Context, c *model.PaymentCapture) error
}

// Store is the single source of truth of the booking core.
type Store interface {
	Catalog
	BookingReader
	CouponReader

	// RunInTx runs fn in one transaction.  The transaction commits when fn
	// returns nil and rolls back otherwise, including on context
	// cancellation.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
