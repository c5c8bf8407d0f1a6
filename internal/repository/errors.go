// Package repository defines the storage contracts of the booking core and
// their MySQL implementation.  The sentinel values below allow the service
// layer to distinguish between failure scenarios without inspecting driver
// errors.  For example, ErrDuplicate signals that a unique key rejected an
// insert (a replayed payment event, or a second active booking for the same
// slot), while ErrTransient marks failures that are safe to retry such as
// deadlocks and lock wait timeouts.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrTransient is returned for failures that may succeed when the whole
// transaction is retried.
var ErrTransient = errors.New("transient storage failure")

// MySQL server error numbers used for classification.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify maps driver errors onto the package sentinels, keeping the
// original error in the chain.  Errors it does not recognise are returned
// unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
