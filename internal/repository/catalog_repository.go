package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// CatalogRepo reads carts, food items and services.  These tables are
// maintained by the admin side of the platform; the booking core never
// writes to them.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a CatalogRepo bound to db.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// GetCart returns the cart with the given id or ErrNotFound.
func (r *CatalogRepo) GetCart(ctx context.Context, id uint64) (*model.Cart, error) {
	const q = `SELECT id, name, hourly_price, is_active FROM carts WHERE id = ?`
	var c model.Cart
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.HourlyPrice, &c.Active); err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

// FoodItemsByIDs returns the food items among ids keyed by id.  Unknown ids
// are simply absent from the map.
func (r *CatalogRepo) FoodItemsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error) {
	out := make(map[uint64]model.FoodItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, price, is_active FROM food_items WHERE id IN `+in, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var it model.FoodItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Active); err != nil {
			return nil, classify(err)
		}
		out[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ServicesByIDs is FoodItemsByIDs for the services table.
func (r *CatalogRepo) ServicesByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceOffering, error) {
	out := make(map[uint64]model.ServiceOffering, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, price, is_active FROM services WHERE id IN `+in, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var s model.ServiceOffering
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Active); err != nil {
			return nil, classify(err)
		}
		out[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
