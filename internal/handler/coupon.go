package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/service"
)

type CouponHandler struct {
	svc *service.CouponService
	log *zap.Logger
}

func NewCouponHandler(svc *service.CouponService, log *zap.Logger) *CouponHandler {
	if svc == nil {
		panic("nil coupon service passed to NewCouponHandler")
	}
	return &CouponHandler{svc: svc, log: log}
}

type validateCouponRequest struct {
	Code        string          `json:"code" validate:"required,max=64"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	CartIDs     []uint64        `json:"cart_ids"`
	ServiceIDs  []uint64        `json:"service_ids"`
}

// Validate handles POST /v1/coupons/validate.  A rejected coupon is a 200
// with valid=false and a reason; it never records a redemption.
func (h *CouponHandler) Validate(c echo.Context) error {
	var req validateCouponRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.Validate(c.Request().Context(), service.CouponRequest{
		Code:        req.Code,
		OrderAmount: req.OrderAmount,
		CartIDs:     req.CartIDs,
		ServiceIDs:  req.ServiceIDs,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}
