package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// CouponRequest describes the order a coupon is checked against.
type CouponRequest struct {
	Code        string
	OrderAmount decimal.Decimal
	CartIDs     []uint64
	ServiceIDs  []uint64
}

// CouponResult is the outcome of a coupon evaluation.  A rejected coupon is
// a normal result with Valid=false, not an error.
type CouponResult struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Reason         string          `json:"reason,omitempty"`
	Message        string          `json:"message,omitempty"`

	CouponID uint64 `json:"-"`
}

func rejected(req CouponRequest, reason, msg string) CouponResult {
	return CouponResult{
		Code:           model.NormalizeCode(req.Code),
		DiscountAmount: decimal.Zero,
		FinalAmount:    req.OrderAmount.Round(2),
		Reason:         reason,
		Message:        msg,
	}
}

// EvaluateCoupon applies the coupon rules in order and stops at the first
// failure.  used is the number of recorded redemptions.  It is pure; the
// validation endpoint and the admission transaction both call it.
func EvaluateCoupon(c *model.Coupon, used int, req CouponRequest, now time.Time) CouponResult {
	if c == nil {
		return rejected(req, ReasonCouponNotFound, "coupon does not exist")
	}
	if c.Status != model.CouponActive {
		return rejected(req, ReasonCouponInactive, "coupon is not active")
	}
	if now.Before(c.ValidFrom) {
		return rejected(req, ReasonCouponNotStarted, fmt.Sprintf("coupon is valid from %s", c.ValidFrom.UTC().Format(time.RFC3339)))
	}
	if !now.Before(c.ValidUntil) {
		return rejected(req, ReasonCouponExpired, "coupon has expired")
	}
	if c.MinOrderAmount != nil && req.OrderAmount.LessThan(*c.MinOrderAmount) {
		return rejected(req, ReasonBelowMinimumOrder, fmt.Sprintf("minimum order amount is %s", c.MinOrderAmount.StringFixed(2)))
	}
	if c.UsageLimit != nil && used >= *c.UsageLimit {
		return rejected(req, ReasonUsageLimitReached, "coupon usage limit reached")
	}
	if c.Scoped() && !c.CartIDs.ContainsAny(req.CartIDs) && !c.ServiceIDs.ContainsAny(req.ServiceIDs) {
		return rejected(req, ReasonNotApplicable, "coupon does not apply to the selected cart or services")
	}

	var discount decimal.Decimal
	switch c.Type {
	case model.DiscountPercentage:
		discount = req.OrderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
	case model.DiscountFixedAmount:
		discount = decimal.Min(c.Value, req.OrderAmount)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(req.OrderAmount) {
		discount = req.OrderAmount
	}
	discount = discount.Round(2)
	return CouponResult{
		Valid:          true,
		Code:           c.Code,
		DiscountAmount: discount,
		FinalAmount:    req.OrderAmount.Sub(discount).Round(2),
		CouponID:       c.ID,
	}
}

func validateCouponRequest(req CouponRequest) error {
	if model.NormalizeCode(req.Code) == "" {
		return invalid("code", "is required")
	}
	if req.OrderAmount.IsNegative() {
		return invalid("order_amount", "must not be negative")
	}
	return nil
}

// CouponService validates coupon codes for display before a booking is
// submitted.  It never records a redemption.
type CouponService struct {
	coupons repository.CouponReader
	cfg     Settings
	log     *zap.Logger
}

func NewCouponService(coupons repository.CouponReader, cfg Settings, log *zap.Logger) *CouponService {
	return &CouponService{coupons: coupons, cfg: cfg.withDefaults(), log: log}
}

// Validate evaluates req at the service clock's current time.
func (s *CouponService) Validate(ctx context.Context, req CouponRequest) (CouponResult, error) {
	return s.ValidateAt(ctx, req, s.cfg.Clock())
}

// ValidateAt evaluates req as of now.  It is read-only: repeating it never
// changes the usage count or the outcome.
func (s *CouponService) ValidateAt(ctx context.Context, req CouponRequest, now time.Time) (CouponResult, error) {
	if err := validateCouponRequest(req); err != nil {
		return CouponResult{}, err
	}
	c, err := retry(ctx, s.cfg.Retry, s.log, "coupon lookup", func() (*model.Coupon, error) {
		return s.coupons.GetCouponByCode(ctx, req.Code)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return EvaluateCoupon(nil, 0, req, now), nil
	}
	if err != nil {
		return CouponResult{}, err
	}
	used := 0
	if c.UsageLimit != nil {
		used, err = retry(ctx, s.cfg.Retry, s.log, "coupon usage count", func() (int, error) {
			return s.coupons.CountCouponUsage(ctx, c.ID)
		})
		if err != nil {
			return CouponResult{}, err
		}
	}
	return EvaluateCoupon(c, used, req, now), nil
}
