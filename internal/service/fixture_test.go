package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type published struct {
	key   string
	event BookingEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, _ := event.(BookingEvent)
	p.events = append(p.events, published{key: key, event: ev})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

// mapCache is a SlotCache that counts its traffic.
type mapCache struct {
	mu          sync.Mutex
	days        map[string][]model.BookedSlot
	hits        int
	invalidated int
}

func newMapCache() *mapCache { return &mapCache{days: map[string][]model.BookedSlot{}} }

func cacheKey(cartID uint64, date model.Date) string { return fmt.Sprintf("%d/%s", cartID, date) }

func (c *mapCache) Get(_ context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.days[cacheKey(cartID, date)]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *mapCache) Set(_ context.Context, cartID uint64, date model.Date, slots []model.BookedSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[cacheKey(cartID, date)] = slots
}

func (c *mapCache) Invalidate(_ context.Context, cartID uint64, date model.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	delete(c.days, cacheKey(cartID, date))
}

type fixture struct {
	store  *memory.Store
	events *recordingPublisher
	cache  *mapCache

	availability *AvailabilityService
	coupons      *CouponService
	admission    *AdmissionService
	reconcile    *ReconcileService

	cartID     uint64
	closedCart uint64
	platterID  uint64
	churrosID  uint64
	staffID    uint64
	decoID     uint64
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), events: &recordingPublisher{}, cache: newMapCache()}
	f.cartID = f.store.AddCart(model.Cart{Name: "Taco Truck", HourlyPrice: dec("50.00"), Active: true})
	f.closedCart = f.store.AddCart(model.Cart{Name: "Retired Van", HourlyPrice: dec("20.00"), Active: false})
	f.platterID = f.store.AddFoodItem(model.FoodItem{Name: "Taco platter", Price: dec("4.50"), Active: true})
	f.churrosID = f.store.AddFoodItem(model.FoodItem{Name: "Churros", Price: dec("2.00"), Active: false})
	f.staffID = f.store.AddService(model.ServiceOffering{Name: "Extra staff", Price: dec("25.00"), Active: true})
	f.decoID = f.store.AddService(model.ServiceOffering{Name: "Decoration", Price: dec("40.00"), Active: true})

	cfg := Settings{
		Retry:        RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond},
		MaxRangeDays: 31,
		Clock:        func() time.Time { return testNow },
	}
	log := zaptest.NewLogger(t)
	f.availability = NewAvailabilityService(f.store, f.cache, cfg, log)
	f.coupons = NewCouponService(f.store, cfg, log)
	f.admission = NewAdmissionService(f.store, f.cache, f.events, cfg, log)
	f.reconcile = NewReconcileService(f.store, f.cache, f.events, cfg, log)
	return f
}

func window(t *testing.T, date, start, end string) model.TimeWindow {
	t.Helper()
	w, err := model.ParseWindow(date, start, end)
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	return w
}

func (f *fixture) request(w model.TimeWindow) AdmissionRequest {
	return AdmissionRequest{
		CartID: f.cartID,
		Window: w,
		Customer: model.Customer{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
			Phone:     "+1 555 0100",
		},
		PaymentMethod: model.MethodBankTransfer,
	}
}

func (f *fixture) addCoupon(c model.Coupon) uint64 {
	if c.Status == "" {
		c.Status = model.CouponActive
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = testNow.AddDate(0, -1, 0)
	}
	if c.ValidUntil.IsZero() {
		c.ValidUntil = testNow.AddDate(0, 1, 0)
	}
	return f.store.AddCoupon(c)
}

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ptrInt(n int) *int { return &n }
