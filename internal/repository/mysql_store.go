package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// querier is the subset of *sql.DB and *sql.Tx used by the repositories so
// the same query code serves plain reads and transactional reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// MySQLStore implements Store on top of a MySQL connection pool.  The
// per-table repositories are exported so tools and tests can use them
// directly; services should depend on the Store interface instead.
type MySQLStore struct {
	db        *sql.DB
	txTimeout time.Duration

	Carts    *CatalogRepo
	Bookings *BookingRepo
	Coupons  *CouponRepo
	Payments *PaymentRepo
}

// NewMySQLStore wraps db.  txTimeout bounds every RunInTx call; zero means
// the caller's context alone bounds the transaction.
func NewMySQLStore(db *sql.DB, txTimeout time.Duration) *MySQLStore {
	return &MySQLStore{
		db:        db,
		txTimeout: txTimeout,
		Carts:     NewCatalogRepo(db),
		Bookings:  NewBookingRepo(db),
		Coupons:   NewCouponRepo(db),
		Payments:  NewPaymentRepo(db),
	}
}

// DB exposes the underlying pool, e.g. for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

func (s *MySQLStore) GetCart(ctx context.Context, id uint64) (*model.Cart, error) {
	return s.Carts.GetCart(ctx, id)
}

func (s *MySQLStore) FoodItemsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error) {
	return s.Carts.FoodItemsByIDs(ctx, ids)
}

func (s *MySQLStore) ServicesByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceOffering, error) {
	return s.Carts.ServicesByIDs(ctx, ids)
}

func (s *MySQLStore) ActiveSlots(ctx context.Context, cartID uint64, from, to model.Date) ([]model.BookedSlot, error) {
	return s.Bookings.ActiveSlots(ctx, cartID, from, to)
}

func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

func (s *MySQLStore) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return s.Coupons.GetByCode(ctx, code)
}

func (s *MySQLStore) CountCouponUsage(ctx context.Context, couponID uint64) (int, error) {
	return countCouponUsage(ctx, s.db, couponID)
}

// RunInTx begins a READ COMMITTED transaction, hands it to fn and commits
// when fn succeeds.  The rollback in the deferred func also runs when fn
// panics or the context is cancelled.
func (s *MySQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// mysqlTx adapts *sql.Tx to the Tx interface by delegating to the
// repositories' ...Tx methods.
type mysqlTx struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (t *mysqlTx) BookingByReference(ctx context.Context, ref string) (*model.Booking, error) {
	return t.s.Bookings.GetByReferenceTx(ctx, t.tx, ref)
}

func (t *mysqlTx) LockCartDay(ctx context.Context, cartID uint64, date model.Date) error {
	return t.s.Bookings.LockCartDayTx(ctx, t.tx, cartID, date)
}

func (t *mysqlTx) ActiveSlotsForUpdate(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, error) {
	return t.s.Bookings.ActiveSlotsForUpdateTx(ctx, t.tx, cartID, date)
}

func (t *mysqlTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.CreateTx(ctx, t.tx, b)
}

func (t *mysqlTx) LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return t.s.Coupons.LockByCodeTx(ctx, t.tx, code)
}

func (t *mysqlTx) CountCouponUsage(ctx context.Context, couponID uint64) (int, error) {
	return countCouponUsage(ctx, t.tx, couponID)
}

func (t *mysqlTx) CreateCouponUsage(ctx context.Context, u *model.CouponUsage) error {
	return t.s.Coupons.CreateUsageTx(ctx, t.tx, u)
}

func (t *mysqlTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.s.Bookings.LockByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	return t.s.Bookings.UpdateStatusTx(ctx, t.tx, id, status, payment)
}

func (t *mysqlTx) RecordPaymentEvent(ctx context.Context, ev *model.PaymentEvent) error {
	return t.s.Payments.RecordEventTx(ctx, t.tx, ev)
}

func (t *mysqlTx) ResolvePendingSlip(ctx context.Context, bookingID uint64, status model.SlipStatus, at time.Time) error {
	return t.s.Payments.ResolvePendingSlipTx(ctx, t.tx, bookingID, status, at)
}

func (t *mysqlTx) UpsertCapture(ctx context.Context, c *model.PaymentCapture) error {
	return t.s.Payments.UpsertCaptureTx(ctx, t.tx, c)
}

// inClause returns "(?, ?, ?)" for n placeholders and the ids as args.
func inClause(ids []uint64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Tx    = (*mysqlTx)(nil)
)
