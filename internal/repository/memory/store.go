// Package memory is an in-process implementation of repository.Store.  It is
// used by tests and by STORE_DRIVER=memory for local runs without MySQL.
//
// A transaction holds the store's write lock from start to finish and works
// on a private copy of the state which replaces the live state only on
// commit, so a failed transaction leaves no trace and concurrent admissions
// are fully serialised.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/foodcart-booking/internal/model"
	"github.com/iliyamo/foodcart-booking/internal/repository"
)

type eventKey struct {
	ref     string
	outcome model.PaymentOutcome
}

type state struct {
	carts    map[uint64]model.Cart
	food     map[uint64]model.FoodItem
	services map[uint64]model.ServiceOffering

	bookings map[uint64]model.Booking
	refs     map[string]uint64
	dayLocks map[string]time.Time

	coupons map[uint64]model.Coupon
	codes   map[string]uint64
	usages  []model.CouponUsage

	slips    map[uint64]model.PaymentSlip
	captures map[string]model.PaymentCapture
	events   map[eventKey]model.PaymentEvent

	seq uint64
}

func newState() *state {
	return &state{
		carts:    map[uint64]model.Cart{},
		food:     map[uint64]model.FoodItem{},
		services: map[uint64]model.ServiceOffering{},
		bookings: map[uint64]model.Booking{},
		refs:     map[string]uint64{},
		dayLocks: map[string]time.Time{},
		coupons:  map[uint64]model.Coupon{},
		codes:    map[string]uint64{},
		slips:    map[uint64]model.PaymentSlip{},
		captures: map[string]model.PaymentCapture{},
		events:   map[eventKey]model.PaymentEvent{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table.  Values are stored by value and their slices
// are never mutated in place, so a shallow map copy is enough.
func (s *state) clone() *state {
	return &state{
		carts:    cloneMap(s.carts),
		food:     cloneMap(s.food),
		services: cloneMap(s.services),
		bookings: cloneMap(s.bookings),
		refs:     cloneMap(s.refs),
		dayLocks: cloneMap(s.dayLocks),
		coupons:  cloneMap(s.coupons),
		codes:    cloneMap(s.codes),
		usages:   append([]model.CouponUsage(nil), s.usages...),
		slips:    cloneMap(s.slips),
		captures: cloneMap(s.captures),
		events:   cloneMap(s.events),
		seq:      s.seq,
	}
}

func (s *state) nextID() uint64 {
	s.seq++
	return s.seq
}

// Store is a concurrency-safe in-memory repository.Store.
type Store struct {
	mu sync.RWMutex
	st *state

	failCommits int
	lostAcks    int
	txCount     int
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// FailCommits makes the next n transactions fail at commit time with a
// transient error, after their body has run.
func (s *Store) FailCommits(n int) {
	s.mu.Lock()
	s.failCommits = n
	s.mu.Unlock()
}

// LoseCommitAcks makes the next n transactions commit and then report a
// transient error, as when the connection drops after COMMIT reached the
// server.
func (s *Store) LoseCommitAcks(n int) {
	s.mu.Lock()
	s.lostAcks = n
	s.mu.Unlock()
}

// TxCount reports how many transactions have been started.
func (s *Store) TxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txCount
}

// RunInTx runs fn against a private copy of the state under the write
// lock and publishes the copy if fn and the commit succeed.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	if err := ctxErr(ctx); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if s.failCommits > 0 {
		s.failCommits--
		return fmt.Errorf("%w: injected commit failure", repository.ErrTransient)
	}
	s.st = work
	if s.lostAcks > 0 {
		s.lostAcks--
		return fmt.Errorf("%w: commit acknowledgement lost", repository.ErrTransient)
	}
	return nil
}

// ctxErr maps an expired context the way the MySQL store does: a deadline
// is transient, a cancellation is returned as is.
func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repository.ErrTransient, err)
	}
	return err
}

func (s *Store) GetCart(ctx context.Context, id uint64) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FoodItemsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]model.FoodItem, len(ids))
	for _, id := range ids {
		if it, ok := s.st.food[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (s *Store) ServicesByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]model.ServiceOffering, len(ids))
	for _, id := range ids {
		if sv, ok := s.st.services[id]; ok {
			out[id] = sv
		}
	}
	return out, nil
}

func (s *Store) ActiveSlots(ctx context.Context, cartID uint64, from, to model.Date) ([]model.BookedSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.activeSlots(cartID, from, to), nil
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.couponByCode(code)
}

func (s *Store) CountCouponUsage(ctx context.Context, couponID uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.countUsage(couponID), nil
}

func (s *state) activeSlots(cartID uint64, from, to model.Date) []model.BookedSlot {
	slots := []model.BookedSlot{}
	for _, b := range s.bookings {
		if b.CartID != cartID || !b.Status.Active() {
			continue
		}
		d := b.Window.Date
		if d.Before(from) || d.After(to) {
			continue
		}
		slots = append(slots, b.Slot())
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i].Window, slots[j].Window
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return slots[i].BookingID < slots[j].BookingID
	})
	return slots
}

func (s *state) couponByCode(code string) (*model.Coupon, error) {
	id, ok := s.codes[model.NormalizeCode(code)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := s.coupons[id]
	return &c, nil
}

func (s *state) countUsage(couponID uint64) int {
	n := 0
	for _, u := range s.usages {
		if u.CouponID == couponID {
			n++
		}
	}
	return n
}

func copyBooking(b model.Booking) *model.Booking {
	b.Items = append([]model.BookingItem{}, b.Items...)
	b.Services = append([]model.BookingServiceLine{}, b.Services...)
	return &b
}

var _ repository.Store = (*Store)(nil)
