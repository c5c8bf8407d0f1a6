package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// AvailabilityHandler serves the public cart calendar.  Nothing here locks;
// a free answer is a hint, the booking endpoint decides.
type AvailabilityHandler struct {
	svc *service.AvailabilityService
	log *zap.Logger
}

func NewAvailabilityHandler(svc *service.AvailabilityService, log *zap.Logger) *AvailabilityHandler {
	if svc == nil {
		panic("nil availability service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{svc: svc, log: log}
}

// Day handles GET /v1/carts/:id/availability?date=YYYY-MM-DD.  With start
// and end (HH:MM) it also checks that window.
func (h *AvailabilityHandler) Day(c echo.Context) error {
	cartID, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid cart id")
	}
	date, err := model.ParseDate(c.QueryParam("date"))
	if err != nil {
		return badRequest(c, "date", "date must be YYYY-MM-DD")
	}
	q := service.AvailabilityQuery{CartID: cartID, Date: date}

	start, end := c.QueryParam("start"), c.QueryParam("end")
	if start != "" || end != "" {
		w, err := model.ParseWindow(c.QueryParam("date"), start, end)
		if err != nil {
			return badRequest(c, "window", err.Error())
		}
		q.Window = &w
	}

	out, err := h.svc.Day(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Range handles GET /v1/carts/:id/availability/range?from=&to=.
func (h *AvailabilityHandler) Range(c echo.Context) error {
	cartID, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid cart id")
	}
	from, err := model.ParseDate(c.QueryParam("from"))
	if err != nil {
		return badRequest(c, "from", "from must be YYYY-MM-DD")
	}
	to, err := model.ParseDate(c.QueryParam("to"))
	if err != nil {
		return badRequest(c, "to", "to must be YYYY-MM-DD")
	}
	days, err := h.svc.BulkBookedSlots(c.Request().Context(), service.RangeQuery{CartID: cartID, From: from, To: to})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cart_id": cartID, "from": from, "to": to, "days": days})
}

type checkWindowsRequest struct {
	Windows []model.TimeWindow `json:"windows" validate:"required,min=1,max=50"`
}

// Check handles POST /v1/carts/:id/availability/check.
func (h *AvailabilityHandler) Check(c echo.Context) error {
	cartID, ok := pathID(c)
	if !ok {
		return badRequest(c, "id", "invalid cart id")
	}
	var req checkWindowsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.log, err)
	}
	results, err := h.svc.CheckWindows(c.Request().Context(), cartID, req.Windows)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cart_id": cartID, "results": results})
}
