package model

import "github.com/shopspring/decimal"

// Cart is a rentable food cart.  Carts are managed by the admin side of the
// platform; the booking core only reads them.
type Cart struct {
	ID          uint64          `json:"id"`           // carts.id
	Name        string          `json:"name"`         // carts.name
	HourlyPrice decimal.Decimal `json:"hourly_price"` // carts.hourly_price
	Active      bool            `json:"active"`       // carts.is_active
}

// PriceFor is the rental price of the cart for the window, rounded to cents.
func (c Cart) PriceFor(w TimeWindow) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(w.End - w.Start))
	return c.HourlyPrice.Mul(minutes).Div(decimal.NewFromInt(60)).Round(2)
}

// FoodItem is a menu item that can be added to a booking.
type FoodItem struct {
	ID     uint64          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

// ServiceOffering is an extra service (staff, decoration, delivery) that can
// be added to a booking.
type ServiceOffering struct {
	ID     uint64          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}
