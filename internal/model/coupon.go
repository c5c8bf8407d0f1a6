package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a coupon's value is applied.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// CouponStatus is the administrative switch of a coupon.
type CouponStatus string

const (
	CouponActive   CouponStatus = "ACTIVE"
	CouponInactive CouponStatus = "INACTIVE"
)

// NormalizeCode returns the canonical (stored) form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon is a discount code.  Optional limits are nil when unset.  An empty
// CartIDs and ServiceIDs pair means the coupon applies to every order.
type Coupon struct {
	ID             uint64           `json:"id"`
	Code           string           `json:"code"`
	Type           DiscountType     `json:"discount_type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	UsageLimit     *int             `json:"usage_limit,omitempty"`
	ValidFrom      time.Time        `json:"valid_from"`
	ValidUntil     time.Time        `json:"valid_until"`
	Status         CouponStatus     `json:"status"`
	CartIDs        IDSet            `json:"cart_ids,omitempty"`
	ServiceIDs     IDSet            `json:"service_ids,omitempty"`
}

// Scoped reports whether the coupon is restricted to specific carts or
// services.
func (c *Coupon) Scoped() bool {
	return c.CartIDs.Len() > 0 || c.ServiceIDs.Len() > 0
}

// CouponUsage records one redemption of a coupon by a booking.
type CouponUsage struct {
	ID             uint64          `json:"id"`
	CouponID       uint64          `json:"coupon_id"`
	BookingID      uint64          `json:"booking_id"`
	OrderAmount    decimal.Decimal `json:"order_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedAt         time.Time       `json:"used_at"`
}

// IDSet is a set of entity ids with membership semantics.
type IDSet map[uint64]struct{}

// NewIDSet builds a set from ids; duplicates collapse.
func NewIDSet(ids ...uint64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Len() int { return len(s) }

func (s IDSet) Contains(id uint64) bool {
	_, ok := s[id]
	return ok
}

// ContainsAny reports whether at least one of ids is in the set.
func (s IDSet) ContainsAny(ids []uint64) bool {
	for _, id := range ids {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// IDs returns the members in ascending order.
func (s IDSet) IDs() []uint64 {
	out := make([]uint64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *IDSet) UnmarshalJSON(b []byte) error {
	var ids []uint64
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
