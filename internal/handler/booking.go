package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// BookingHandler exposes admission and the booking lifecycle.
type BookingHandler struct {
	admission *service.AdmissionService
	lifecycle *service.ReconcileService
	log       *zap.Logger
}

func NewBookingHandler(admission *service.AdmissionService, lifecycle *service.ReconcileService, log *zap.Logger) *BookingHandler {
	if admission == nil || lifecycle == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{admission: admission, lifecycle: lifecycle, log: log}
}

type lineRequest struct {
	ID       uint64 `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=1000"`
}

type createBookingRequest struct {
	Reference     string              `json:"reference" validate:"omitempty,uuid"`
	CartID        uint64              `json:"cart_id" validate:"required"`
	Date          model.Date          `json:"date"`
	StartTime     model.Minute        `json:"start_time"`
	EndTime       model.Minute        `json:"end_time"`
	Items         []lineRequest       `json:"items" validate:"omitempty,max=100,dive"`
	Services      []lineRequest       `json:"services" validate:"omitempty,max=100,dive"`
	Customer      model.Customer      `json:"customer"`
	PaymentMethod model.PaymentMethod `json:"payment_method" validate:"required"`
	CouponCode    string              `json:"coupon_code" validate:"omitempty,max=64"`
}

func toLines(in []lineRequest) []service.LineRequest {
	out := make([]service.LineRequest, 0, len(in))
	for _, l := range in {
		out = append(out, service.LineRequest{ID: l.ID, Quantity: l.Quantity})
	}
	return out
}

// Create handles POST /v1/bookings.
//
// 201 booking, 400 validation_error, 404 not_found, 409 slot_conflict,
// 422 coupon_rejected, 503 temporarily_unavailable.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.log, err)
	}
	b, err := h.admission.Admit(c.Request().Context(), service.AdmissionRequest{
		Reference:     req.Reference,
		CartID:        req.CartID,
		Window:        model.TimeWindow{Date: req.Date, Start: req.StartTime, End: req.EndTime},
		Items:         toLines(req.Items),
		Services:      toLines(req.Services),
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid booking id")
	}
	b, err := h.admission.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid booking id")
	}
	b, err := h.lifecycle.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Complete handles POST /v1/bookings/:id/complete.
func (h *BookingHandler) Complete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid booking id")
	}
	b, err := h.lifecycle.Complete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}
