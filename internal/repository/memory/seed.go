package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// The Add* helpers stand in for the admin side of the platform, which owns
// the catalog, coupons and slip uploads.  They assign an id when the given
// one is zero and return the stored id.

func (s *Store) AddCart(c model.Cart) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.st.nextID()
	}
	s.st.carts[c.ID] = c
	return c.ID
}

func (s *Store) AddFoodItem(it model.FoodItem) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == 0 {
		it.ID = s.st.nextID()
	}
	s.st.food[it.ID] = it
	return it.ID
}

func (s *Store) AddService(sv model.ServiceOffering) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv.ID == 0 {
		sv.ID = s.st.nextID()
	}
	s.st.services[sv.ID] = sv
	return sv.ID
}

// AddCoupon stores c under its normalised code.
func (s *Store) AddCoupon(c model.Coupon) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.st.nextID()
	}
	c.Code = model.NormalizeCode(c.Code)
	s.st.coupons[c.ID] = c
	s.st.codes[c.Code] = c.ID
	return c.ID
}

// AddPaymentSlip records an uploaded, not yet reviewed slip for a booking.
func (s *Store) AddPaymentSlip(bookingID uint64, fileURL string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := model.PaymentSlip{
		ID:        s.st.nextID(),
		BookingID: bookingID,
		FileURL:   fileURL,
		Status:    model.SlipPending,
		CreatedAt: time.Now().UTC(),
	}
	s.st.slips[sl.ID] = sl
	return sl.ID
}

// PaymentSlip returns a stored slip.
func (s *Store) PaymentSlip(id uint64) (model.PaymentSlip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.st.slips[id]
	return sl, ok
}

// Capture returns a stored capture by its processor id.
func (s *Store) Capture(captureID string) (model.PaymentCapture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.captures[captureID]
	return c, ok
}

// CouponUsages returns the redemptions of a coupon in insertion order.
func (s *Store) CouponUsages(couponID uint64) []model.CouponUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CouponUsage
	for _, u := range s.st.usages {
		if u.CouponID == couponID {
			out = append(out, u)
		}
	}
	return out
}

// BookingCount returns the number of stored bookings in any status.
func (s *Store) BookingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.bookings)
}

// SeedDemo fills an empty store with a small catalog for local runs.
func (s *Store) SeedDemo(now time.Time) {
	cart := s.AddCart(model.Cart{Name: "Taco Truck", HourlyPrice: decimal.RequireFromString("50.00"), Active: true})
	s.AddCart(model.Cart{Name: "Espresso Bike", HourlyPrice: decimal.RequireFromString("35.00"), Active: true})
	s.AddFoodItem(model.FoodItem{Name: "Taco platter", Price: decimal.RequireFromString("4.50"), Active: true})
	s.AddFoodItem(model.FoodItem{Name: "Churros", Price: decimal.RequireFromString("2.00"), Active: true})
	staff := s.AddService(model.ServiceOffering{Name: "Extra staff", Price: decimal.RequireFromString("25.00"), Active: true})
	s.AddService(model.ServiceOffering{Name: "Decoration", Price: decimal.RequireFromString("40.00"), Active: true})

	minOrder := decimal.RequireFromString("50")
	maxDiscount := decimal.RequireFromString("20")
	s.AddCoupon(model.Coupon{
		Code:           "SAVE10",
		Type:           model.DiscountPercentage,
		Value:          decimal.RequireFromString("10"),
		MinOrderAmount: &minOrder,
		MaxDiscount:    &maxDiscount,
		ValidFrom:      now.AddDate(0, -1, 0),
		ValidUntil:     now.AddDate(1, 0, 0),
		Status:         model.CouponActive,
	})
	once := 1
	s.AddCoupon(model.Coupon{
		Code:       "WELCOME15",
		Type:       model.DiscountFixedAmount,
		Value:      decimal.RequireFromString("15"),
		UsageLimit: &once,
		ValidFrom:  now.AddDate(0, -1, 0),
		ValidUntil: now.AddDate(1, 0, 0),
		Status:     model.CouponActive,
		CartIDs:    model.NewIDSet(cart),
		ServiceIDs: model.NewIDSet(staff),
	})
}
