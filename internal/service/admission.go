package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LineRequest asks for Quantity units of the food item or service ID.
type LineRequest struct {
	ID       uint64
	Quantity int
}

// AdmissionRequest is a booking submission.  Reference identifies the
// submission: retrying with the same reference after an ambiguous failure
// returns the booking created by the first attempt instead of a second one.
// When empty a fresh reference is generated.
type AdmissionRequest struct {
	Reference     string
	CartID        uint64
	Window        model.TimeWindow
	Items         []LineRequest
	Services      []LineRequest
	Customer      model.Customer
	PaymentMethod model.PaymentMethod
	CouponCode    string
}

// AdmissionService admits bookings.  All checks that depend on other
// bookings or on coupon usage run inside one transaction that first takes
// the per cart and day admission lock, so two concurrent submissions for
// overlapping windows cannot both commit.
type AdmissionService struct {
	store  repository.Store
	cache  SlotCache
	events EventPublisher
	cfg    Settings
	log    *zap.Logger
}

func NewAdmissionService(store repository.Store, cache SlotCache, events EventPublisher, cfg Settings, log *zap.Logger) *AdmissionService {
	if cache == nil {
		cache = NopCache{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &AdmissionService{store: store, cache: cache, events: events, cfg: cfg.withDefaults(), log: log}
}

// Get returns a booking with its lines.
func (s *AdmissionService) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	if id == 0 {
		return nil, invalid("id", "must be positive")
	}
	b, err := retry(ctx, s.cfg.Retry, s.log, "get booking", func() (*model.Booking, error) {
		return s.store.GetBooking(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("booking", id)
	}
	return b, err
}

// Admit validates req, prices it and books it atomically.  The returned
// booking is PENDING with payment PENDING.
func (s *AdmissionService) Admit(ctx context.Context, req AdmissionRequest) (*model.Booking, error) {
	if err := normalizeAdmission(&req); err != nil {
		return nil, err
	}
	draft, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		replayed bool
		attempts int
	)
	b, err := retry(ctx, s.cfg.Retry, s.log, "admit booking", func() (*model.Booking, error) {
		attempts++
		var out *model.Booking
		var err error
		out, replayed, err = s.admitOnce(ctx, cloneDraft(draft), req.CouponCode)
		return out, err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.log.Info("booking rejected: slot taken",
				zap.Uint64("cart_id", req.CartID),
				zap.Stringer("window", req.Window))
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, b.CartID, b.Window.Date)
	if replayed {
		if attempts == 1 {
			s.log.Info("booking reference replayed", zap.Uint64("booking_id", b.ID), zap.String("reference", b.Reference))
			return b, nil
		}
		// An earlier attempt committed but its commit reported a failure.
		s.log.Warn("booking commit confirmed on retry",
			zap.Uint64("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.Int("attempts", attempts))
	}

	s.log.Info("booking admitted",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("cart_id", b.CartID),
		zap.Stringer("date", b.Window.Date),
		zap.Stringer("start", b.Window.Start),
		zap.Stringer("end", b.Window.End),
		zap.String("total", b.TotalAmount.StringFixed(2)))
	publishBest(ctx, s.events, s.log, EventBookingCreated, b, s.cfg.Clock())
	return b, nil
}

// admitOnce runs one attempt of the admission transaction.
func (s *AdmissionService) admitOnce(ctx context.Context, b *model.Booking, couponCode string) (*model.Booking, bool, error) {
	var (
		out      *model.Booking
		replayed bool
	)
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		// The reference is looked up under the day lock so that a
		// concurrent submission of the same reference is seen as committed.
		if err := tx.LockCartDay(ctx, b.CartID, b.Window.Date); err != nil {
			return err
		}
		prior, err := tx.BookingByReference(ctx, b.Reference)
		if err == nil {
			out, replayed = prior, true
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		slots, err := tx.ActiveSlotsForUpdate(ctx, b.CartID, b.Window.Date)
		if err != nil {
			return err
		}
		if c := firstConflict(slots, b.Window); c != nil {
			return &ConflictError{Slot: *c}
		}

		var usage *model.CouponUsage
		if couponCode != "" {
			if usage, err = s.redeem(ctx, tx, b, couponCode); err != nil {
				return err
			}
		}

		if err := tx.CreateBooking(ctx, b); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return err
			}
			// Either the reference or the active slot key; the former is a
			// replay of a submission committed meanwhile.
			if prior, lerr := tx.BookingByReference(ctx, b.Reference); lerr == nil {
				out, replayed = prior, true
				return nil
			}
			return &ConflictError{Slot: b.Slot()}
		}
		if usage != nil {
			usage.BookingID = b.ID
			if err := tx.CreateCouponUsage(ctx, usage); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	return out, replayed, err
}

// redeem evaluates the coupon against the locked coupon row and its current
// usage count, and applies the discount to b.
func (s *AdmissionService) redeem(ctx context.Context, tx repository.Tx, b *model.Booking, code string) (*model.CouponUsage, error) {
	subtotal := b.Subtotal()
	req := CouponRequest{
		Code:        code,
		OrderAmount: subtotal,
		CartIDs:     []uint64{b.CartID},
		ServiceIDs:  make([]uint64, 0, len(b.Services)),
	}
	for _, sv := range b.Services {
		req.ServiceIDs = append(req.ServiceIDs, sv.ServiceID)
	}

	now := s.cfg.Clock()
	c, err := tx.LockCouponByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		c, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	used := 0
	if c != nil && c.UsageLimit != nil {
		if used, err = tx.CountCouponUsage(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	res := EvaluateCoupon(c, used, req, now)
	if !res.Valid {
		return nil, &CouponRejectedError{Code: res.Code, Reason: res.Reason, Message: res.Message}
	}
	couponID := c.ID
	b.CouponID = &couponID
	b.DiscountAmount = res.DiscountAmount
	b.TotalAmount = res.FinalAmount
	return &model.CouponUsage{
		CouponID:       c.ID,
		OrderAmount:    subtotal,
		DiscountAmount: res.DiscountAmount,
		UsedAt:         now.UTC(),
	}, nil
}

// price loads the catalog rows and computes every amount server side.
func (s *AdmissionService) price(ctx context.Context, req AdmissionRequest) (*model.Booking, error) {
	cart, err := retry(ctx, s.cfg.Retry, s.log, "load cart", func() (*model.Cart, error) {
		return s.store.GetCart(ctx, req.CartID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("cart", req.CartID)
	}
	if err != nil {
		return nil, err
	}
	if !cart.Active {
		return nil, invalid("cart_id", "cart %d is not available for booking", cart.ID)
	}

	b := &model.Booking{
		Reference:      req.Reference,
		CartID:         cart.ID,
		Window:         req.Window,
		Customer:       req.Customer,
		CartAmount:     cart.PriceFor(req.Window),
		ServicesAmount: decimal.Zero,
		FoodAmount:     decimal.Zero,
		DiscountAmount: decimal.Zero,
		Status:         model.BookingPending,
		PaymentStatus:  model.PaymentPending,
		PaymentMethod:  req.PaymentMethod,
		Items:          []model.BookingItem{},
		Services:       []model.BookingServiceLine{},
	}

	if len(req.Items) > 0 {
		food, err := retry(ctx, s.cfg.Retry, s.log, "load food items", func() (map[uint64]model.FoodItem, error) {
			return s.store.FoodItemsByIDs(ctx, lineIDs(req.Items))
		})
		if err != nil {
			return nil, err
		}
		for _, l := range req.Items {
			it, ok := food[l.ID]
			if !ok {
				return nil, notFound("food item", l.ID)
			}
			if !it.Active {
				return nil, invalid("items", "food item %d is not available", l.ID)
			}
			total := model.LineTotal(it.Price, l.Quantity)
			b.Items = append(b.Items, model.BookingItem{
				FoodItemID: it.ID, Name: it.Name, Quantity: l.Quantity, UnitPrice: it.Price, LineTotal: total,
			})
			b.FoodAmount = b.FoodAmount.Add(total)
		}
	}

	if len(req.Services) > 0 {
		services, err := retry(ctx, s.cfg.Retry, s.log, "load services", func() (map[uint64]model.ServiceOffering, error) {
			return s.store.ServicesByIDs(ctx, lineIDs(req.Services))
		})
		if err != nil {
			return nil, err
		}
		for _, l := range req.Services {
			sv, ok := services[l.ID]
			if !ok {
				return nil, notFound("service", l.ID)
			}
			if !sv.Active {
				return nil, invalid("services", "service %d is not available", l.ID)
			}
			total := model.LineTotal(sv.Price, l.Quantity)
			b.Services = append(b.Services, model.BookingServiceLine{
				ServiceID: sv.ID, Name: sv.Name, Quantity: l.Quantity, UnitPrice: sv.Price, LineTotal: total,
			})
			b.ServicesAmount = b.ServicesAmount.Add(total)
		}
	}

	b.TotalAmount = b.Subtotal()
	if !b.TotalAmount.IsPositive() {
		return nil, invalid("total_amount", "order total must be positive")
	}
	return b, nil
}

// normalizeAdmission trims and checks req in place.  It touches no storage.
func normalizeAdmission(req *AdmissionRequest) error {
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	} else if _, err := uuid.Parse(req.Reference); err != nil {
		return invalid("reference", "must be a UUID")
	}
	if req.CartID == 0 {
		return invalid("cart_id", "must be positive")
	}
	if err := req.Window.Validate(); err != nil {
		return invalid("window", "%v", err)
	}

	c := &req.Customer
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.EventAddress = strings.TrimSpace(c.EventAddress)
	c.Notes = strings.TrimSpace(c.Notes)
	if c.FirstName == "" {
		return invalid("first_name", "is required")
	}
	if c.LastName == "" {
		return invalid("last_name", "is required")
	}
	if err := validate.Var(c.Email, "required,email,max=255"); err != nil {
		return invalid("email", "must be a valid email address")
	}
	if err := validate.Var(c.Phone, "required,min=5,max=40"); err != nil {
		return invalid("phone", "is required")
	}

	if !req.PaymentMethod.Valid() {
		return invalid("payment_method", "must be one of bank_transfer, paypal, reservation")
	}
	req.CouponCode = model.NormalizeCode(req.CouponCode)

	var err error
	if req.Items, err = mergeLines("items", req.Items); err != nil {
		return err
	}
	if req.Services, err = mergeLines("services", req.Services); err != nil {
		return err
	}
	return nil
}

// mergeLines collapses repeated ids by summing their quantities, keeping
// the order of first appearance.
func mergeLines(field string, lines []LineRequest) ([]LineRequest, error) {
	out := make([]LineRequest, 0, len(lines))
	index := make(map[uint64]int, len(lines))
	for _, l := range lines {
		if l.ID == 0 {
			return nil, invalid(field, "id must be positive")
		}
		if l.Quantity <= 0 {
			return nil, invalid(field, "quantity for %d must be positive", l.ID)
		}
		if i, ok := index[l.ID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func lineIDs(lines []LineRequest) []uint64 {
	ids := make([]uint64, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	return ids
}

// cloneDraft gives every attempt its own copy; CreateBooking assigns ids.
func cloneDraft(b *model.Booking) *model.Booking {
	cp := *b
	cp.Items = append([]model.BookingItem{}, b.Items...)
	cp.Services = append([]model.BookingServiceLine{}, b.Services...)
	cp.CreatedAt = time.Time{}
	return &cp
}
