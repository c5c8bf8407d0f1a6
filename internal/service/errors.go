// Package service implements the booking core: availability checks, coupon
// evaluation, the admission transaction and payment reconciliation.  Every
// failure returned to callers belongs to the taxonomy below so the HTTP and
// queue layers can map it without inspecting storage errors.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

// Sentinel errors.  Typed errors below match them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("slot already booked")
	ErrNotFound          = errors.New("not found")
	ErrCouponRejected    = errors.New("coupon rejected")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTransient         = errors.New("temporarily unavailable")
)

// ValidationError reports malformed input.  No storage is touched when it
// is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError carries the booked slot that blocked an admission.
type ConflictError struct {
	Slot model.BookedSlot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot already booked: %s", e.Slot.Window)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// Coupon rejection reasons, checked in this order.
const (
	ReasonCouponNotFound    = "COUPON_NOT_FOUND"
	ReasonCouponInactive    = "COUPON_INACTIVE"
	ReasonCouponNotStarted  = "COUPON_NOT_STARTED"
	ReasonCouponExpired     = "COUPON_EXPIRED"
	ReasonBelowMinimumOrder = "BELOW_MINIMUM_ORDER"
	ReasonUsageLimitReached = "USAGE_LIMIT_REACHED"
	ReasonNotApplicable     = "NOT_APPLICABLE"
)

// CouponRejectedError is returned by admission when the submitted coupon
// fails evaluation inside the transaction.
type CouponRejectedError struct {
	Code    string
	Reason  string
	Message string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

func (e *CouponRejectedError) Is(target error) bool { return target == ErrCouponRejected }

// TransitionError describes a status change the lifecycle does not allow.
type TransitionError struct {
	BookingID uint64
	From      model.BookingStatus
	Action    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking %d: cannot %s from %s", e.BookingID, e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
