package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// BookingRepo provides access to bookings and their item and service
// lines.  Windows are stored as booking_date plus start_minute/end_minute so
// the overlap test in SQL is the same integer comparison model.Overlaps
// performs.  All timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, cart_id, booking_date, start_minute, end_minute,
	first_name, last_name, email, phone, event_address, notes,
	cart_amount, services_amount, food_amount, discount_amount, total_amount,
	coupon_id, status, payment_status, payment_method, created_at, updated_at`

const slotColumns = `id, booking_date, start_minute, end_minute, first_name, last_name, status`

func scanBooking(s rowScanner) (*model.Booking, error) {
	var b model.Booking
	var couponID sql.NullInt64
	err := s.Scan(
		&b.ID, &b.Reference, &b.CartID, &b.Window.Date, &b.Window.Start, &b.Window.End,
		&b.Customer.FirstName, &b.Customer.LastName, &b.Customer.Email, &b.Customer.Phone,
		&b.Customer.EventAddress, &b.Customer.Notes,
		&b.CartAmount, &b.ServicesAmount, &b.FoodAmount, &b.DiscountAmount, &b.TotalAmount,
		&couponID, &b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if couponID.Valid {
		id := uint64(couponID.Int64)
		b.CouponID = &id
	}
	return &b, nil
}

func scanSlots(rows *sql.Rows) ([]model.BookedSlot, error) {
	defer rows.Close()
	slots := []model.BookedSlot{}
	for rows.Next() {
		var (
			s           model.BookedSlot
			first, last string
		)
		if err := rows.Scan(&s.BookingID, &s.Window.Date, &s.Window.Start, &s.Window.End, &first, &last, &s.Status); err != nil {
			return nil, classify(err)
		}
		s.CustomerDisplayName = model.Customer{FirstName: first, LastName: last}.DisplayName()
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return slots, nil
}

// ActiveSlots returns PENDING and CONFIRMED bookings of the cart between
// from and to inclusive, ordered by date and start.  It takes no locks.
func (r *BookingRepo) ActiveSlots(ctx context.Context, cartID uint64, from, to model.Date) ([]model.BookedSlot, error) {
	const q = `SELECT ` + slotColumns + `
               FROM bookings
               WHERE cart_id = ? AND booking_date BETWEEN ? AND ?
                 AND status IN ('PENDING', 'CONFIRMED')
               ORDER BY booking_date, start_minute`
	rows, err := r.db.QueryContext(ctx, q, cartID, from, to)
	if err != nil {
		return nil, classify(err)
	}
	return scanSlots(rows)
}

// ActiveSlotsForUpdateTx is ActiveSlots for one day inside tx.  The
// returned rows stay locked until the transaction ends.
func (r *BookingRepo) ActiveSlotsForUpdateTx(ctx context.Context, tx *sql.Tx, cartID uint64, date model.Date) ([]model.BookedSlot, error) {
	const q = `SELECT ` + slotColumns + `
               FROM bookings
               WHERE cart_id = ? AND booking_date = ?
                 AND status IN ('PENDING', 'CONFIRMED')
               ORDER BY start_minute
               FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, cartID, date)
	if err != nil {
		return nil, classify(err)
	}
	return scanSlots(rows)
}

// LockCartDayTx serialises admissions for one cart and day.  The upsert
// takes an exclusive lock on the (cart_id, lock_date) row which InnoDB holds
// until commit or rollback, so a concurrent admission for the same day waits
// here and then observes the winner's booking.  Other carts and days use
// other rows and proceed in parallel.
func (r *BookingRepo) LockCartDayTx(ctx context.Context, tx *sql.Tx, cartID uint64, date model.Date) error {
	const q = `INSERT INTO cart_day_locks (cart_id, lock_date, locked_at) VALUES (?, ?, ?)
               ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`
	_, err := tx.ExecContext(ctx, q, cartID, date, time.Now().UTC())
	return classify(err)
}

// CreateTx inserts a booking and its lines within the scope of an existing
// transaction.  It populates the generated ids on b and its lines.  The
// caller must commit or rollback the transaction.  A second active booking
// for the same cart, date and window trips the unique active_slot_key and
// yields ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (reference, cart_id, booking_date, start_minute, end_minute,
                   first_name, last_name, email, phone, event_address, notes,
                   cart_amount, services_amount, food_amount, discount_amount, total_amount,
                   coupon_id, status, payment_status, payment_method, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = b.CreatedAt
	var couponID any
	if b.CouponID != nil {
		couponID = *b.CouponID
	}
	c := b.Customer
	res, err := tx.ExecContext(ctx, q,
		b.Reference, b.CartID, b.Window.Date, int(b.Window.Start), int(b.Window.End),
		c.FirstName, c.LastName, c.Email, c.Phone, c.EventAddress, c.Notes,
		b.CartAmount, b.ServicesAmount, b.FoodAmount, b.DiscountAmount, b.TotalAmount,
		couponID, string(b.Status), string(b.PaymentStatus), string(b.PaymentMethod), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err)
	}
	b.ID = uint64(id)
	if err := r.createItemsTx(ctx, tx, b); err != nil {
		return err
	}
	return r.createServicesTx(ctx, tx, b)
}

// createItemsTx inserts the food lines of b in a single statement.  Passing
// a booking without items has no effect.
func (r *BookingRepo) createItemsTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if len(b.Items) == 0 {
		return nil
	}
	query := `INSERT INTO booking_items (booking_id, food_item_id, name, quantity, unit_price, line_total) VALUES `
	args := make([]any, 0, len(b.Items)*6)
	for i := range b.Items {
		it := &b.Items[i]
		it.BookingID = b.ID
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, it.BookingID, it.FoodItemID, it.Name, it.Quantity, it.UnitPrice, it.LineTotal)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	// A multi-row insert reports the id of its first row; the rest follow
	// consecutively under the default auto-increment lock mode.
	if first, err := res.LastInsertId(); err == nil {
		for i := range b.Items {
			b.Items[i].ID = uint64(first) + uint64(i)
		}
	}
	return nil
}

func (r *BookingRepo) createServicesTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if len(b.Services) == 0 {
		return nil
	}
	query := `INSERT INTO booking_services (booking_id, service_id, name, quantity, unit_price, line_total) VALUES `
	args := make([]any, 0, len(b.Services)*6)
	for i := range b.Services {
		sv := &b.Services[i]
		sv.BookingID = b.ID
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, sv.BookingID, sv.ServiceID, sv.Name, sv.Quantity, sv.UnitPrice, sv.LineTotal)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if first, err := res.LastInsertId(); err == nil {
		for i := range b.Services {
			b.Services[i].ID = uint64(first) + uint64(i)
		}
	}
	return nil
}

// GetByID returns a booking with its lines, or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, classify(err)
	}
	if err := loadLines(ctx, r.db, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByReferenceTx returns the booking created under ref with its lines,
// or ErrNotFound.
func (r *BookingRepo) GetByReferenceTx(ctx context.Context, tx *sql.Tx, ref string) (*model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference = ?`, ref))
	if err != nil {
		return nil, classify(err)
	}
	if err := loadLines(ctx, tx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// LockByIDTx loads a booking row without its lines and locks it for the
// rest of the transaction.
func (r *BookingRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// UpdateStatusTx sets both status columns of a booking.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, payment model.PaymentStatus) error {
	const q = `UPDATE bookings SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), string(payment), time.Now().UTC(), id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func loadLines(ctx context.Context, q querier, b *model.Booking) error {
	const itemsQ = `SELECT id, booking_id, food_item_id, name, quantity, unit_price, line_total
                    FROM booking_items WHERE booking_id = ? ORDER BY id`
	rows, err := q.QueryContext(ctx, itemsQ, b.ID)
	if err != nil {
		return classify(err)
	}
	b.Items = []model.BookingItem{}
	for rows.Next() {
		var it model.BookingItem
		if err := rows.Scan(&it.ID, &it.BookingID, &it.FoodItemID, &it.Name, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			rows.Close()
			return classify(err)
		}
		b.Items = append(b.Items, it)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return classify(err)
	}

	const servicesQ = `SELECT id, booking_id, service_id, name, quantity, unit_price, line_total
                       FROM booking_services WHERE booking_id = ? ORDER BY id`
	rows, err = q.QueryContext(ctx, servicesQ, b.ID)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	b.Services = []model.BookingServiceLine{}
	for rows.Next() {
		var sv model.BookingServiceLine
		if err := rows.Scan(&sv.ID, &sv.BookingID, &sv.ServiceID, &sv.Name, &sv.Quantity, &sv.UnitPrice, &sv.LineTotal); err != nil {
			return classify(err)
		}
		b.Services = append(b.Services, sv)
	}
	return classify(rows.Err())
}
