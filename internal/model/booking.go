package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// BookingStatus is the confirmation state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Active reports whether a booking in this status occupies its window.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

// ActiveStatuses lists the statuses that block a window.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

// PaymentStatus is the payment state of a booking.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodPayPal       PaymentMethod = "paypal"
	MethodReservation  PaymentMethod = "reservation" // pay on site
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodPayPal, MethodReservation:
		return true
	}
	return false
}

// Customer holds the contact fields submitted with a booking.
type Customer struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	EventAddress string `json:"event_address,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// DisplayName is the public label of a customer on a calendar: first name
// plus last initial, e.g. "Jane D.".
func (c Customer) DisplayName() string {
	first := strings.TrimSpace(c.FirstName)
	last := strings.TrimSpace(c.LastName)
	if last == "" {
		return first
	}
	r, _ := utf8.DecodeRuneInString(last)
	initial := strings.ToUpper(string(r))
	if first == "" {
		return initial + "."
	}
	return first + " " + initial + "."
}

// Booking is the aggregate root of a cart reservation.  Items and Services
// are owned exclusively by the booking and are written in the same
// transaction.
//
// Fields:
//
//	ID             – bookings.id
//	Reference      – public UUID, unique; used to make admission retries idempotent
//	CartID         – cart being rented
//	Window         – booking_date, start_minute, end_minute
//	CartAmount     – hourly price × duration
//	ServicesAmount – sum of service line totals
//	FoodAmount     – sum of food item line totals
//	DiscountAmount – coupon discount, zero without a coupon
//	TotalAmount    – CartAmount + ServicesAmount + FoodAmount − DiscountAmount
type Booking struct {
	ID             uint64               `json:"id"`
	Reference      string               `json:"reference"`
	CartID         uint64               `json:"cart_id"`
	Window         TimeWindow           `json:"window"`
	Customer       Customer             `json:"customer"`
	CartAmount     decimal.Decimal      `json:"cart_amount"`
	ServicesAmount decimal.Decimal      `json:"services_amount"`
	FoodAmount     decimal.Decimal      `json:"food_amount"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	CouponID       *uint64              `json:"coupon_id,omitempty"`
	Status         BookingStatus        `json:"status"`
	PaymentStatus  PaymentStatus        `json:"payment_status"`
	PaymentMethod  PaymentMethod        `json:"payment_method"`
	Items          []BookingItem        `json:"items"`
	Services       []BookingServiceLine `json:"services"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Subtotal is the pre-discount amount of the booking.
func (b *Booking) Subtotal() decimal.Decimal {
	return b.CartAmount.Add(b.ServicesAmount).Add(b.FoodAmount)
}

// Slot returns the calendar view of the booking.
func (b *Booking) Slot() BookedSlot {
	return BookedSlot{
		Window:              b.Window,
		BookingID:           b.ID,
		CustomerDisplayName: b.Customer.DisplayName(),
		Status:              b.Status,
	}
}

// BookingItem is a food item line of a booking.
type BookingItem struct {
	ID         uint64          `json:"id"`
	BookingID  uint64          `json:"booking_id"`
	FoodItemID uint64          `json:"food_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// BookingServiceLine is an extra service line of a booking.
type BookingServiceLine struct {
	ID        uint64          `json:"id"`
	BookingID uint64          `json:"booking_id"`
	ServiceID uint64          `json:"service_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// LineTotal computes quantity × unit price rounded to cents.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// BookedSlot is a busy window on a cart's calendar.
type BookedSlot struct {
	Window              TimeWindow    `json:"window"`
	BookingID           uint64        `json:"booking_id"`
	CustomerDisplayName string        `json:"customer_display_name"`
	Status              BookingStatus `json:"status"`
}
