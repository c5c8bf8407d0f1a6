package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/foodcart-booking/internal/model"
)

func newMock(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db, time.Second), mock
}

var slotRowColumns = []string{"id", "booking_date", "start_minute", "end_minute", "first_name", "last_name", "status"}

func TestClassify(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrDuplicate},
		{"deadlock", &mysql.MySQLError{Number: 1213}, ErrTransient},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205}, ErrTransient},
		{"bad conn", driver.ErrBadConn, ErrTransient},
		{"deadline", context.DeadlineExceeded, ErrTransient},
		{"unknown", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in, "the driver error stays in the chain")
		})
	}
	assert.NoError(t, classify(nil))
	assert.False(t, IsTransient(classify(&mysql.MySQLError{Number: 1062})))
}

func TestActiveSlots(t *testing.T) {
	s, mock := newMock(t)
	from, to := model.NewDate(2025, 6, 10), model.NewDate(2025, 6, 11)

	rows := sqlmock.NewRows(slotRowColumns).
		AddRow(7, "2025-06-10", 840, 960, "Jane", "Doe", "CONFIRMED").
		AddRow(9, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), 600, 660, "Sam", "", "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).
		WithArgs(1, "2025-06-10", "2025-06-11").
		WillReturnRows(rows)

	slots, err := s.ActiveSlots(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, uint64(7), slots[0].BookingID)
	assert.Equal(t, from, slots[0].Window.Date)
	assert.Equal(t, model.Minute(840), slots[0].Window.Start)
	assert.Equal(t, model.Minute(960), slots[0].Window.End)
	assert.Equal(t, "Jane D.", slots[0].CustomerDisplayName)
	assert.Equal(t, model.BookingConfirmed, slots[0].Status)
	assert.Equal(t, to, slots[1].Window.Date)
	assert.Equal(t, "Sam", slots[1].CustomerDisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSlotsEmpty(t *testing.T) {
	s, mock := newMock(t)
	d := model.NewDate(2025, 6, 10)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings")).WillReturnRows(sqlmock.NewRows(slotRowColumns))

	slots, err := s.ActiveSlots(context.Background(), 1, d, d)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestRunInTxCommits(t *testing.T) {
	s, mock := newMock(t)
	d := model.NewDate(2025, 6, 10)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cart_day_locks")).
		WithArgs(1, "2025-06-10", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(1, "2025-06-10").
		WillReturnRows(sqlmock.NewRows(slotRowColumns).AddRow(3, "2025-06-10", 600, 720, "Ann", "Lee", "PENDING"))
	mock.ExpectCommit()

	var slots []model.BookedSlot
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		if err := tx.LockCartDay(context.Background(), 1, d); err != nil {
			return err
		}
		var err error
		slots, err = tx.ActiveSlotsForUpdate(context.Background(), 1, d)
		return err
	})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, uint64(3), slots[0].BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cart_day_locks")).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.LockCartDay(context.Background(), 1, model.NewDate(2025, 6, 10))
	})
	assert.True(t, IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxCommitFailureIsClassified(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(driver.ErrBadConn)

	err := s.RunInTx(context.Background(), func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingAssignsIDs(t *testing.T) {
	s, mock := newMock(t)
	b := &model.Booking{
		Reference: "0b5ad1f4-2a57-4a3e-9d59-3f2f1b7b0c11",
		CartID:    1,
		Window:    model.TimeWindow{Date: model.NewDate(2025, 6, 10), Start: 600, End: 720},
		Customer:  model.Customer{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "555"},
		Items: []model.BookingItem{
			{FoodItemID: 3, Name: "Taco platter", Quantity: 10, UnitPrice: decimal.RequireFromString("4.50"), LineTotal: decimal.RequireFromString("45.00")},
			{FoodItemID: 4, Name: "Nachos", Quantity: 1, UnitPrice: decimal.RequireFromString("6.00"), LineTotal: decimal.RequireFromString("6.00")},
		},
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: model.MethodBankTransfer,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_items")).
		WithArgs(
			41, 3, "Taco platter", 10, "4.5", "45",
			41, 4, "Nachos", 1, "6", "6",
		).
		WillReturnResult(sqlmock.NewResult(100, 2))
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(tx Tx) error { return tx.CreateBooking(context.Background(), b) })
	require.NoError(t, err)
	assert.Equal(t, uint64(41), b.ID)
	assert.Equal(t, uint64(100), b.Items[0].ID)
	assert.Equal(t, uint64(101), b.Items[1].ID)
	assert.Equal(t, uint64(41), b.Items[1].BookingID)
	assert.False(t, b.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingDuplicateSlot(t *testing.T) {
	s, mock := newMock(t)
	b := &model.Booking{
		CartID: 1,
		Window: model.TimeWindow{Date: model.NewDate(2025, 6, 10), Start: 600, End: 720},
		Status: model.BookingPending,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'active_slot_key'"})
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error { return tx.CreateBooking(context.Background(), b) })
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Zero(t, b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatusMissingRow(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status")).
		WithArgs("CONFIRMED", "PAID", sqlmock.AnyArg(), 404).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.UpdateBookingStatus(context.Background(), 404, model.BookingConfirmed, model.PaymentPaid)
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPaymentEventReplay(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_events")).
		WithArgs("CAP-1", "captured", 7, sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.RecordPaymentEvent(context.Background(), &model.PaymentEvent{
			ExternalReferenceID: "CAP-1",
			Outcome:             model.OutcomeCaptured,
			BookingID:           7,
		})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolvePendingSlip(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_slips")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_slips SET status")).
		WithArgs("VERIFIED", at, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_slips")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(tx Tx) error {
		return tx.ResolvePendingSlip(ctx, 7, model.SlipVerified, at)
	}))
	err := s.RunInTx(ctx, func(tx Tx) error {
		return tx.ResolvePendingSlip(ctx, 8, model.SlipVerified, at)
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
