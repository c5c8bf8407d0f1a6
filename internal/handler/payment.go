package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// PaymentHandler accepts payment outcomes over HTTP.  The same outcomes can
// arrive on the payment.events queue.
type PaymentHandler struct {
	svc *service.ReconcileService
	log *zap.Logger
}

func NewPaymentHandler(svc *service.ReconcileService, log *zap.Logger) *PaymentHandler {
	if svc == nil {
		panic("nil reconcile service passed to NewPaymentHandler")
	}
	return &PaymentHandler{svc: svc, log: log}
}

type reconcileRequest struct {
	BookingID           uint64 `json:"booking_id" validate:"required"`
	Outcome             string `json:"outcome" validate:"required,oneof=verified rejected captured failed"`
	ExternalReferenceID string `json:"external_reference_id" validate:"required,max=64"`
}

// Reconcile handles POST /v1/payments/reconcile and returns the booking
// after the outcome is applied.
func (h *PaymentHandler) Reconcile(c echo.Context) error {
	var req reconcileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.log, err)
	}
	b, err := h.svc.Reconcile(c.Request().Context(), service.PaymentNotification{
		BookingID:           req.BookingID,
		Outcome:             model.PaymentOutcome(req.Outcome),
		ExternalReferenceID: req.ExternalReferenceID,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}
