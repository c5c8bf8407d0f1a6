package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/foodcart-booking/internal/handler"
	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository/memory"
	"github.com/iliyamo/foodcart-booking/internal/router"
	"github.com/iliyamo/foodcart-booking/internal/service"
)

// Ids assigned by memory.Store.SeedDemo.
const (
	tacoTruck  = 1
	platter    = 3
	extraStaff = 5
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.New()
	store.SeedDemo(time.Now())

	cfg := service.Settings{MaxRangeDays: 31}
	avail := service.NewAvailabilityService(store, nil, cfg, log)
	coupons := service.NewCouponService(store, cfg, log)
	admission := service.NewAdmissionService(store, nil, nil, cfg, log)
	reconcile := service.NewReconcileService(store, nil, nil, cfg, log)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(nil),
		Availability: handler.NewAvailabilityHandler(avail, log),
		Bookings:     handler.NewBookingHandler(admission, reconcile, log),
		Coupons:      handler.NewCouponHandler(coupons, log),
		Payments:     handler.NewPaymentHandler(reconcile, log),
	}, nil)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const bookingBody = `{
	"cart_id": 1,
	"date": "2030-06-10",
	"start_time": "10:00",
	"end_time": "12:00",
	"items": [{"id": 3, "quantity": 10}],
	"services": [{"id": 5, "quantity": 1}],
	"customer": {"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com", "phone": "+1 555 0100"},
	"payment_method": "bank_transfer"
}`

func bookingJSON(start, end, method, coupon string) string {
	b := map[string]any{
		"cart_id":        tacoTruck,
		"date":           "2030-06-10",
		"start_time":     start,
		"end_time":       end,
		"services":       []map[string]int{{"id": extraStaff, "quantity": 1}},
		"customer":       map[string]string{"first_name": "Sam", "last_name": "Lee", "email": "sam@example.com", "phone": "+1 555 0199"},
		"payment_method": method,
	}
	if coupon != "" {
		b["coupon_code"] = coupon
	}
	out, _ := json.Marshal(b)
	return string(out)
}

func TestCreateBooking(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/v1/bookings", bookingBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[model.Booking](t, rec)
	assert.NotZero(t, b.ID)
	assert.NotEmpty(t, b.Reference)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, "100.00", b.CartAmount.StringFixed(2))
	assert.Equal(t, "45.00", b.FoodAmount.StringFixed(2))
	assert.Equal(t, "170.00", b.TotalAmount.StringFixed(2))
	require.Len(t, b.Items, 1)
	assert.Equal(t, uint64(platter), b.Items[0].FoodItemID)

	rec = do(e, http.MethodGet, "/v1/bookings/"+jsonID(b.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, b.Reference, decode[model.Booking](t, rec).Reference)
}

func TestCreateBookingConflict(t *testing.T) {
	e := newServer(t)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/bookings", bookingBody).Code)

	rec := do(e, http.MethodPost, "/v1/bookings", bookingJSON("11:00", "13:00", "paypal", ""))
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "slot_conflict", body["error"])
	conflict, ok := body["conflict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jane D.", conflict["customer_display_name"])

	rec = do(e, http.MethodPost, "/v1/bookings", bookingJSON("12:00", "13:00", "paypal", ""))
	assert.Equal(t, http.StatusCreated, rec.Code, "back-to-back windows do not overlap")
}

func TestCreateBookingValidation(t *testing.T) {
	e := newServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing cart", strings.Replace(bookingBody, `"cart_id": 1,`, ``, 1), "cart_id"},
		{"bad quantity", strings.Replace(bookingBody, `"quantity": 10`, `"quantity": 0`, 1), "quantity"},
		{"end before start", bookingJSON("12:00", "10:00", "paypal", ""), "window"},
		{"unknown payment method", bookingJSON("10:00", "12:00", "cheque", ""), "payment_method"},
		{"malformed date", strings.Replace(bookingBody, "2030-06-10", "2030-13-01", 1), "body"},
		{"not json", `{"cart_id":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/v1/bookings", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decode[map[string]any](t, rec)
			assert.Equal(t, "validation_error", body["error"])
			assert.Equal(t, tt.field, body["field"])
		})
	}
}

func TestCreateBookingUnknownCart(t *testing.T) {
	e := newServer(t)
	body := strings.Replace(bookingBody, `"cart_id": 1`, `"cart_id": 999`, 1)
	rec := do(e, http.MethodPost, "/v1/bookings", body)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, rec)["error"])
}

func TestCreateBookingCouponRejected(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/v1/bookings", bookingJSON("10:00", "12:00", "paypal", "welcome15"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[model.Booking](t, rec)
	assert.Equal(t, "15.00", b.DiscountAmount.StringFixed(2))
	assert.Equal(t, "110.00", b.TotalAmount.StringFixed(2))

	rec = do(e, http.MethodPost, "/v1/bookings", bookingJSON("14:00", "16:00", "paypal", "WELCOME15"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "coupon_rejected", body["error"])
	assert.Equal(t, service.ReasonUsageLimitReached, body["reason"])

	rec = do(e, http.MethodGet, "/v1/carts/1/availability?date=2030-06-10&start=14:00&end=16:00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[service.DayAvailability](t, rec)
	require.NotNil(t, day.Window)
	assert.True(t, day.Window.Available, "a rejected coupon leaves no booking behind")
}

func TestGetBookingErrors(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/bookings/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/bookings/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/bookings/0", "").Code)
}

func TestAvailabilityEndpoints(t *testing.T) {
	e := newServer(t)
	require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/bookings", bookingBody).Code)

	rec := do(e, http.MethodGet, "/v1/carts/1/availability?date=2030-06-10&start=11:00&end=13:00", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[service.DayAvailability](t, rec)
	assert.Len(t, day.BookedSlots, 1)
	require.NotNil(t, day.Window)
	assert.False(t, day.Window.Available)
	require.NotNil(t, day.Window.Conflict)
	assert.Equal(t, "Jane D.", day.Window.Conflict.CustomerDisplayName)

	rec = do(e, http.MethodGet, "/v1/carts/1/availability?date=10-06-2030", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/carts/1/availability/range?from=2030-06-10&to=2030-06-11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rng struct {
		Days map[string][]model.BookedSlot `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rng))
	assert.Len(t, rng.Days, 2)
	assert.Len(t, rng.Days["2030-06-10"], 1)
	assert.Empty(t, rng.Days["2030-06-11"])

	rec = do(e, http.MethodGet, "/v1/carts/1/availability/range?from=2030-06-01&to=2030-08-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "range longer than the configured maximum")

	rec = do(e, http.MethodPost, "/v1/carts/1/availability/check", `{"windows": [
		{"date": "2030-06-10", "start_time": "09:00", "end_time": "10:00"},
		{"date": "2030-06-10", "start_time": "11:30", "end_time": "12:30"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var check struct {
		Results []service.WindowAvailability `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	require.Len(t, check.Results, 2)
	assert.True(t, check.Results[0].Available)
	assert.False(t, check.Results[1].Available)

	rec = do(e, http.MethodPost, "/v1/carts/1/availability/check", `{"windows": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateCoupon(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/v1/coupons/validate", `{"code": "save10", "order_amount": 100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.CouponResult](t, rec)
	assert.True(t, res.Valid)
	assert.Equal(t, "SAVE10", res.Code)
	assert.Equal(t, "10.00", res.DiscountAmount.StringFixed(2))
	assert.Equal(t, "90.00", res.FinalAmount.StringFixed(2))

	rec = do(e, http.MethodPost, "/v1/coupons/validate", `{"code": "save10", "order_amount": "20"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[service.CouponResult](t, rec)
	assert.False(t, res.Valid)
	assert.Equal(t, service.ReasonBelowMinimumOrder, res.Reason)

	rec = do(e, http.MethodPost, "/v1/coupons/validate", `{"order_amount": 20}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconcileAndLifecycle(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodPost, "/v1/bookings", bookingJSON("10:00", "12:00", "paypal", ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Booking](t, rec).ID

	rec = do(e, http.MethodPost, "/v1/bookings/"+jsonID(id)+"/complete", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[map[string]any](t, rec)["error"])

	capture := `{"booking_id": ` + jsonID(id) + `, "outcome": "captured", "external_reference_id": "CAP-1"}`
	rec = do(e, http.MethodPost, "/v1/payments/reconcile", capture)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decode[model.Booking](t, rec)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, model.PaymentPaid, b.PaymentStatus)

	rec = do(e, http.MethodPost, "/v1/payments/reconcile", capture)
	require.Equal(t, http.StatusOK, rec.Code, "a replayed event is accepted")

	rec = do(e, http.MethodPost, "/v1/bookings/"+jsonID(id)+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingCompleted, decode[model.Booking](t, rec).Status)

	rec = do(e, http.MethodPost, "/v1/bookings/"+jsonID(id)+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/v1/payments/reconcile", `{"booking_id": 1, "outcome": "settled", "external_reference_id": "x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "outcome", decode[map[string]any](t, rec)["field"])

	rec = do(e, http.MethodPost, "/v1/payments/reconcile", `{"booking_id": 999, "outcome": "failed", "external_reference_id": "CAP-9"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelFreesWindow(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodPost, "/v1/bookings", bookingBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Booking](t, rec).ID

	rec = do(e, http.MethodPost, "/v1/bookings/"+jsonID(id)+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingCancelled, decode[model.Booking](t, rec).Status)

	rec = do(e, http.MethodPost, "/v1/bookings", bookingBody)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	e := newServer(t)
	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	e = echo.New()
	e.GET("/healthz", handler.Health(downDB{}))
	rec = do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
