package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/model"
)

func appointment(clock string) *model.Appointment {
	return &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: clock, CustomerID: "cust-1", PatientName: "Maria"}
}

func TestIncreaseDeposit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	d, err := db.GetDeposit(ctx, "cust-1", 1)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.False(t, d.HasBalance())

	d, applied, err := db.IncreaseDeposit(ctx, "cust-1", 1, 3, "pay-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 3, d.RemainingSessions)
	assert.Equal(t, 3, d.TotalPurchased)

	d, applied, err = db.IncreaseDeposit(ctx, "cust-1", 1, 3, "pay-1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 3, d.RemainingSessions)

	d, applied, err = db.IncreaseDeposit(ctx, "cust-1", 1, 2, "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 5, d.RemainingSessions)
	assert.Equal(t, 5, d.TotalPurchased)

	_, _, err = db.IncreaseDeposit(ctx, "cust-1", 1, 0, "pay-2")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	deposits, err := db.ListDeposits(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, deposits, 1)
}

func TestIncreaseDepositPaymentRefCollision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)
	seedDoctor(t, db, 2)

	_, _, err := db.IncreaseDeposit(ctx, "cust-1", 1, 3, "pay-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		customer string
		doctor   int64
		sessions int
	}{
		{name: "other customer", customer: "cust-2", doctor: 1, sessions: 3},
		{name: "other doctor", customer: "cust-1", doctor: 2, sessions: 3},
		{name: "other amount", customer: "cust-1", doctor: 1, sessions: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, applied, err := db.IncreaseDeposit(ctx, tt.customer, tt.doctor, tt.sessions, "pay-1")
			assert.ErrorIs(t, err, model.ErrPaymentConflict)
			assert.False(t, applied)
			assert.Nil(t, d)
		})
	}

	d, err := db.GetDeposit(ctx, "cust-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, d.RemainingSessions)

	other, err := db.GetDeposit(ctx, "cust-2", 1)
	require.NoError(t, err)
	assert.Nil(t, other, "a rejected credit leaves no row behind")
}

func TestBookWithDeposit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	_, _, err := db.IncreaseDeposit(ctx, "cust-1", 1, 2, "")
	require.NoError(t, err)

	a := appointment("15:00")
	remaining, err := db.BookWithDeposit(ctx, BookingTx{Appointment: a})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.NotZero(t, a.ID)
	assert.Equal(t, model.AppointmentSourceDeposit, a.Source)

	times, err := db.BookedTimes(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"15:00"}, times)
}

func TestBookWithDepositRollsBack(t *testing.T) {
	tests := []struct {
		name     string
		balance  int
		existing string
		booking  BookingTx
		wantErr  error
	}{
		{
			name:    "no deposit row",
			booking: BookingTx{Appointment: appointment("09:00")},
			wantErr: model.ErrNoDeposit,
		},
		{
			name:     "slot already taken",
			balance:  1,
			existing: "09:00",
			booking:  BookingTx{Appointment: appointment("09:00")},
			wantErr:  model.ErrSlotUnavailable,
		},
		{
			name:     "sibling inside guard range",
			balance:  1,
			existing: "09:00",
			booking:  BookingTx{Appointment: appointment("09:30"), GuardFrom: "09:00", GuardTo: "10:00"},
			wantErr:  model.ErrSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			seedDoctor(t, db, 1)

			if tt.balance > 0 {
				_, _, err := db.IncreaseDeposit(ctx, "cust-1", 1, tt.balance, "")
				require.NoError(t, err)
			}
			if tt.existing != "" {
				require.NoError(t, db.CreateAppointment(ctx, &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: tt.existing, PatientName: "Other"}))
			}

			_, err := db.BookWithDeposit(ctx, tt.booking)
			assert.ErrorIs(t, err, tt.wantErr)

			d, err := db.GetDeposit(ctx, "cust-1", 1)
			require.NoError(t, err)
			if tt.balance > 0 {
				assert.Equal(t, tt.balance, d.RemainingSessions, "decrement must roll back")
			} else {
				assert.Nil(t, d)
			}

			list, err := db.ListAppointments(ctx, 1, "2025-03-10")
			require.NoError(t, err)
			for _, a := range list {
				assert.Equal(t, "Other", a.PatientName)
			}
		})
	}
}

func TestBookWithDepositZeroBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	_, _, err := db.IncreaseDeposit(ctx, "cust-1", 1, 1, "")
	require.NoError(t, err)
	_, err = db.BookWithDeposit(ctx, BookingTx{Appointment: appointment("09:00")})
	require.NoError(t, err)

	_, err = db.BookWithDeposit(ctx, BookingTx{Appointment: appointment("10:00")})
	assert.ErrorIs(t, err, model.ErrNoDeposit)

	d, err := db.GetDeposit(ctx, "cust-1", 1)
	require.NoError(t, err)
	require.NotNil(t, d, "row is kept at zero")
	assert.Equal(t, 0, d.RemainingSessions)
}

func TestBookWithDepositConcurrentBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	_, _, err := db.IncreaseDeposit(ctx, "cust-1", 1, 1, "")
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, clock := range []string{"09:00", "11:00"} {
		wg.Add(1)
		go func(i int, clock string) {
			defer wg.Done()
			_, errs[i] = db.BookWithDeposit(ctx, BookingTx{Appointment: appointment(clock)})
		}(i, clock)
	}
	wg.Wait()

	successes, noDeposit := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, model.ErrNoDeposit):
			noDeposit++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, noDeposit)

	d, err := db.GetDeposit(ctx, "cust-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, d.RemainingSessions)

	times, err := db.BookedTimes(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, times, 1)
}

func TestBookWithDepositConcurrentSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	for _, customer := range []string{"cust-1", "cust-2"} {
		_, _, err := db.IncreaseDeposit(ctx, customer, 1, 1, "")
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, customer := range []string{"cust-1", "cust-2"} {
		wg.Add(1)
		go func(i int, customer string) {
			defer wg.Done()
			a := appointment("09:00")
			a.CustomerID = customer
			_, errs[i] = db.BookWithDeposit(ctx, BookingTx{Appointment: a})
		}(i, customer)
	}
	wg.Wait()

	var winner string
	for i, err := range errs {
		if err == nil {
			winner = []string{"cust-1", "cust-2"}[i]
			continue
		}
		assert.ErrorIs(t, err, model.ErrSlotUnavailable)
	}
	require.NotEmpty(t, winner)

	total := 0
	for _, customer := range []string{"cust-1", "cust-2"} {
		d, err := db.GetDeposit(ctx, customer, 1)
		require.NoError(t, err)
		total += d.RemainingSessions
		if customer == winner {
			assert.Equal(t, 0, d.RemainingSessions)
		}
	}
	assert.Equal(t, 1, total)
}
