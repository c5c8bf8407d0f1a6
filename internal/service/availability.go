package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

// SlotCache caches the booked slots of one cart and day.  Misses and
// failures are silent; the store stays the source of truth.
type SlotCache interface {
	Get(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, bool)
	Set(ctx context.Context, cartID uint64, date model.Date, slots []model.BookedSlot)
	Invalidate(ctx context.Context, cartID uint64, date model.Date)
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, uint64, model.Date) ([]model.BookedSlot, bool) {
	return nil, false
}
func (NopCache) Set(context.Context, uint64, model.Date, []model.BookedSlot) {}
func (NopCache) Invalidate(context.Context, uint64, model.Date)              {}

// AvailabilityQuery asks for the calendar of one cart and day, optionally
// checking a candidate window on that day.
type AvailabilityQuery struct {
	CartID uint64
	Date   model.Date
	Window *model.TimeWindow
}

// RangeQuery asks for the calendars of one cart over [From, To].
type RangeQuery struct {
	CartID uint64
	From   model.Date
	To     model.Date
}

// WindowAvailability is the verdict for one candidate window.
type WindowAvailability struct {
	Window    model.TimeWindow  `json:"window"`
	Available bool              `json:"available"`
	Conflict  *model.BookedSlot `json:"conflict,omitempty"`
}

// DayAvailability is the answer to an AvailabilityQuery.
type DayAvailability struct {
	CartID      uint64              `json:"cart_id"`
	Date        model.Date          `json:"date"`
	BookedSlots []model.BookedSlot  `json:"booked_slots"`
	Window      *WindowAvailability `json:"window,omitempty"`
}

// AvailabilityService answers read-only availability questions.  Answers
// are advisory: they take no locks and may be stale by the time a booking
// is submitted.  Admission re-checks inside its transaction.
type AvailabilityService struct {
	bookings repository.BookingReader
	cache    SlotCache
	cfg      Settings
	log      *zap.Logger
}

// NewAvailabilityService wires the checker.  A nil cache disables caching.
func NewAvailabilityService(bookings repository.BookingReader, cache SlotCache, cfg Settings, log *zap.Logger) *AvailabilityService {
	if cache == nil {
		cache = NopCache{}
	}
	return &AvailabilityService{bookings: bookings, cache: cache, cfg: cfg.withDefaults(), log: log}
}

// BookedSlots returns the active bookings of a cart on date ordered by
// start.  An unknown cart has no bookings.
func (s *AvailabilityService) BookedSlots(ctx context.Context, cartID uint64, date model.Date) ([]model.BookedSlot, error) {
	if cartID == 0 {
		return nil, invalid("cart_id", "must be positive")
	}
	if date.IsZero() {
		return nil, invalid("date", "is required")
	}
	if slots, ok := s.cache.Get(ctx, cartID, date); ok {
		return slots, nil
	}
	slots, err := retry(ctx, s.cfg.Retry, s.log, "booked slots", func() ([]model.BookedSlot, error) {
		return s.bookings.ActiveSlots(ctx, cartID, date, date)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cartID, date, slots)
	return slots, nil
}

// IsAvailable reports whether w is free on the cart's calendar and, when it
// is not, the first booked slot it overlaps.
func (s *AvailabilityService) IsAvailable(ctx context.Context, cartID uint64, w model.TimeWindow) (bool, *model.BookedSlot, error) {
	if err := w.Validate(); err != nil {
		return false, nil, invalid("window", "%v", err)
	}
	slots, err := s.BookedSlots(ctx, cartID, w.Date)
	if err != nil {
		return false, nil, err
	}
	if c := firstConflict(slots, w); c != nil {
		return false, c, nil
	}
	return true, nil, nil
}

// Day answers an AvailabilityQuery.
func (s *AvailabilityService) Day(ctx context.Context, q AvailabilityQuery) (*DayAvailability, error) {
	if q.Window != nil {
		if err := q.Window.Validate(); err != nil {
			return nil, invalid("window", "%v", err)
		}
		if !q.Window.Date.Equal(q.Date) {
			return nil, invalid("window", "must be on %s", q.Date)
		}
	}
	slots, err := s.BookedSlots(ctx, q.CartID, q.Date)
	if err != nil {
		return nil, err
	}
	out := &DayAvailability{CartID: q.CartID, Date: q.Date, BookedSlots: slots}
	if q.Window != nil {
		c := firstConflict(slots, *q.Window)
		out.Window = &WindowAvailability{Window: *q.Window, Available: c == nil, Conflict: c}
	}
	return out, nil
}

// BulkBookedSlots returns the calendar of every day in the range with a
// single storage query.  Days without bookings map to an empty slice.
func (s *AvailabilityService) BulkBookedSlots(ctx context.Context, q RangeQuery) (map[model.Date][]model.BookedSlot, error) {
	if q.CartID == 0 {
		return nil, invalid("cart_id", "must be positive")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return nil, invalid("range", "from and to are required")
	}
	if q.To.Before(q.From) {
		return nil, invalid("range", "from %s is after to %s", q.From, q.To)
	}
	if days := q.From.DaysUntil(q.To) + 1; days > s.cfg.MaxRangeDays {
		return nil, invalid("range", "%d days requested, at most %d allowed", days, s.cfg.MaxRangeDays)
	}
	slots, err := retry(ctx, s.cfg.Retry, s.log, "booked slots range", func() ([]model.BookedSlot, error) {
		return s.bookings.ActiveSlots(ctx, q.CartID, q.From, q.To)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[model.Date][]model.BookedSlot, q.From.DaysUntil(q.To)+1)
	for d := q.From; !d.After(q.To); d = d.AddDays(1) {
		out[d] = []model.BookedSlot{}
	}
	for _, sl := range slots {
		out[sl.Window.Date] = append(out[sl.Window.Date], sl)
	}
	return out, nil
}

// CheckWindows evaluates several candidate windows of one cart with one
// storage query covering all their dates.  Results keep the input order.
func (s *AvailabilityService) CheckWindows(ctx context.Context, cartID uint64, windows []model.TimeWindow) ([]WindowAvailability, error) {
	if cartID == 0 {
		return nil, invalid("cart_id", "must be positive")
	}
	if len(windows) == 0 {
		return nil, invalid("windows", "at least one window is required")
	}
	from, to := windows[0].Date, windows[0].Date
	for i, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, invalid("windows", "window %d: %v", i, err)
		}
		if w.Date.Before(from) {
			from = w.Date
		}
		if w.Date.After(to) {
			to = w.Date
		}
	}
	if days := from.DaysUntil(to) + 1; days > s.cfg.MaxRangeDays {
		return nil, invalid("windows", "dates span %d days, at most %d allowed", days, s.cfg.MaxRangeDays)
	}
	slots, err := retry(ctx, s.cfg.Retry, s.log, "check windows", func() ([]model.BookedSlot, error) {
		return s.bookings.ActiveSlots(ctx, cartID, from, to)
	})
	if err != nil {
		return nil, err
	}
	out := make([]WindowAvailability, len(windows))
	for i, w := range windows {
		c := firstConflict(slots, w)
		out[i] = WindowAvailability{Window: w, Available: c == nil, Conflict: c}
	}
	return out, nil
}

func firstConflict(slots []model.BookedSlot, w model.TimeWindow) *model.BookedSlot {
	for i := range slots {
		if model.Overlaps(slots[i].Window, w) {
			c := slots[i]
			return &c
		}
	}
	return nil
}
