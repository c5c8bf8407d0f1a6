package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/service"
)

// Error codes of the JSON error body.
const (
	codeValidation        = "validation_error"
	codeConflict          = "slot_conflict"
	codeNotFound          = "not_found"
	codeCouponRejected    = "coupon_rejected"
	codeInvalidTransition = "invalid_transition"
	codeUnavailable       = "temporarily_unavailable"
	codeInternal          = "internal_error"
)

func badRequest(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": codeValidation, "field": field, "message": msg})
}

// respondError maps a service error to its status and error body.  Anything
// outside the service taxonomy is logged and reported as a 500 without
// details.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		ve  *service.ValidationError
		vv  validator.ValidationErrors
		ce  *service.ConflictError
		nf  *service.NotFoundError
		cr  *service.CouponRejectedError
		te  *service.TransitionError
		hte *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return badRequest(c, ve.Field, ve.Message)
	case errors.As(err, &vv):
		fe := vv[0]
		return badRequest(c, fe.Field(), "failed on the '"+fe.Tag()+"' rule")
	case errors.As(err, &hte) && hte.Code == http.StatusBadRequest:
		return badRequest(c, "body", "malformed request body")
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    codeConflict,
			"message":  "the requested time window is already booked",
			"conflict": ce.Slot,
		})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": codeNotFound, "message": nf.Error()})
	case errors.As(err, &cr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":   codeCouponRejected,
			"reason":  cr.Reason,
			"code":    cr.Code,
			"message": cr.Message,
		})
	case errors.As(err, &te):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   codeInvalidTransition,
			"message": te.Error(),
			"status":  te.From,
		})
	case errors.Is(err, service.ErrTransient):
		log.Warn("request failed on a transient storage error", zap.String("path", c.Path()), zap.Error(err))
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": codeUnavailable, "message": "please retry shortly"})
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": codeInternal, "message": "internal error"})
}
