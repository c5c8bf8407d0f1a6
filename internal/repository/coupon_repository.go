package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// CouponRepo reads coupons with their cart and service scopes and records
// redemptions.  Codes are stored upper-cased; lookups normalise the input
// the same way so matching is case-insensitive.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a CouponRepo bound to db.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, code, discount_type, value, min_order_amount, max_discount,
	usage_limit, valid_from, valid_until, status`

// GetByCode returns the coupon with the given code or ErrNotFound.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return getCoupon(ctx, r.db, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code)
}

// LockByCodeTx is GetByCode with the coupon row locked until the
// transaction ends.  Concurrent redemptions of one coupon serialise here,
// which keeps the usage count and the usage limit consistent.
func (r *CouponRepo) LockByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Coupon, error) {
	return getCoupon(ctx, tx, `SELECT `+couponColumns+` FROM coupons WHERE code = ? FOR UPDATE`, code)
}

// CreateUsageTx records a redemption.  coupon_usages.booking_id is unique
// so one booking redeems at most one coupon.
func (r *CouponRepo) CreateUsageTx(ctx context.Context, tx *sql.Tx, u *model.CouponUsage) error {
	const q = `INSERT INTO coupon_usages (coupon_id, booking_id, order_amount, discount_amount, used_at)
               VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, u.CouponID, u.BookingID, u.OrderAmount, u.DiscountAmount, u.UsedAt)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err)
	}
	u.ID = uint64(id)
	return nil
}

func countCouponUsage(ctx context.Context, q querier, couponID uint64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ?`, couponID).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func getCoupon(ctx context.Context, q querier, query, code string) (*model.Coupon, error) {
	var (
		c           model.Coupon
		minOrder    decimal.NullDecimal
		maxDiscount decimal.NullDecimal
		usageLimit  sql.NullInt64
	)
	err := q.QueryRowContext(ctx, query, model.NormalizeCode(code)).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &minOrder, &maxDiscount,
		&usageLimit, &c.ValidFrom, &c.ValidUntil, &c.Status,
	)
	if err != nil {
		return nil, classify(err)
	}
	if minOrder.Valid {
		v := minOrder.Decimal
		c.MinOrderAmount = &v
	}
	if maxDiscount.Valid {
		v := maxDiscount.Decimal
		c.MaxDiscount = &v
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		c.UsageLimit = &n
	}
	if c.CartIDs, err = scopeIDs(ctx, q, `SELECT cart_id FROM coupon_carts WHERE coupon_id = ?`, c.ID); err != nil {
		return nil, err
	}
	if c.ServiceIDs, err = scopeIDs(ctx, q, `SELECT service_id FROM coupon_services WHERE coupon_id = ?`, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func scopeIDs(ctx context.Context, q querier, query string, couponID uint64) (model.IDSet, error) {
	rows, err := q.QueryContext(ctx, query, couponID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	set := model.NewIDSet()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		set[id] = struct{}{}
	}
	return set, classify(rows.Err())
}
