package booking

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/db"
	"clinicbook/internal/lock"
	"clinicbook/internal/model"
	"clinicbook/internal/slots"
	"clinicbook/internal/tz"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Doctor), args.Error(1)
}

func (m *mockStore) GetDeposit(ctx context.Context, customerID string, doctorID int64) (*model.SessionDeposit, error) {
	args := m.Called(ctx, customerID, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionDeposit), args.Error(1)
}

func (m *mockStore) ListDeposits(ctx context.Context, customerID string) ([]model.SessionDeposit, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).([]model.SessionDeposit), args.Error(1)
}

func (m *mockStore) BookWithDeposit(ctx context.Context, b db.BookingTx) (int, error) {
	args := m.Called(ctx, b)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) IncreaseDeposit(ctx context.Context, customerID string, doctorID int64, sessions int, paymentRef string) (*model.SessionDeposit, bool, error) {
	args := m.Called(ctx, customerID, doctorID, sessions, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.SessionDeposit), args.Bool(1), args.Error(2)
}

func (m *mockStore) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Appointment), args.Error(1)
}

func (m *mockStore) DeleteAppointment(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) CreateManualDeposit(ctx context.Context, d *model.ManualDeposit) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockStore) ListManualDeposits(ctx context.Context, status model.ManualDepositStatus) ([]model.ManualDeposit, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]model.ManualDeposit), args.Error(1)
}

func (m *mockStore) DecideManualDeposit(ctx context.Context, id int64, next model.ManualDepositStatus, decidedBy string) (*model.ManualDeposit, *model.SessionDeposit, error) {
	args := m.Called(ctx, id, next, decidedBy)
	var (
		decided *model.ManualDeposit
		balance *model.SessionDeposit
	)
	if v := args.Get(0); v != nil {
		decided = v.(*model.ManualDeposit)
	}
	if v := args.Get(1); v != nil {
		balance = v.(*model.SessionDeposit)
	}
	return decided, balance, args.Error(2)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, doctorID int64, date string, lockAdjacentHalfHour bool) (*slots.Resolution, error) {
	args := m.Called(ctx, doctorID, date, lockAdjacentHalfHour)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slots.Resolution), args.Error(1)
}

func newMockedService(lockPolicy bool) (*Service, *mockStore, *mockResolver) {
	store := new(mockStore)
	resolver := new(mockResolver)
	logger := zerolog.New(io.Discard)
	clock := tz.NewTranslatorWithClock(func() time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	})
	svc := NewService(store, resolver, lock.NewLocalLocker(time.Second), clock, nil,
		Config{LockAdjacentHalfHour: lockPolicy}, &logger)
	return svc, store, resolver
}

func TestGuardRange(t *testing.T) {
	tests := []struct {
		name     string
		lock     bool
		slot     slots.Slot
		from, to string
	}{
		{name: "half hour with lock", lock: true, slot: slots.Slot{Time: "09:30", Increment: 30}, from: "09:00", to: "10:00"},
		{name: "half hour without lock", slot: slots.Slot{Time: "09:30", Increment: 30}},
		{name: "hourly on the hour", slot: slots.Slot{Time: "09:00", Increment: 60}, from: "09:00", to: "10:00"},
		{name: "hourly on the half hour", slot: slots.Slot{Time: "09:30", Increment: 60}, from: "09:30", to: "10:30"},
		{name: "hourly on the half hour with lock", lock: true, slot: slots.Slot{Time: "09:30", Increment: 60}, from: "09:00", to: "10:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newMockedService(tt.lock)
			m, err := model.ParseClock(tt.slot.Time)
			require.NoError(t, err)
			from, to := svc.guardRange(tt.slot, m)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestBookWithDepositStoreFailures(t *testing.T) {
	doctor := &model.Doctor{ID: 1, Timezone: tz.Athens, IsActive: true}
	deposit := &model.SessionDeposit{CustomerID: "cust-1", DoctorID: 1, RemainingSessions: 1}
	open := &slots.Resolution{DoctorID: 1, Date: testDate, Slots: []slots.Slot{
		{Time: "09:00", Available: true, Increment: 30},
		{Time: "09:30", Available: true, Increment: 30},
	}}

	t.Run("deposit lookup is transient", func(t *testing.T) {
		svc, store, resolver := newMockedService(false)
		store.On("GetDoctor", mock.Anything, int64(1)).Return(doctor, nil)
		store.On("GetDeposit", mock.Anything, "cust-1", int64(1)).Return(nil, model.ErrTransient)

		_, err := svc.BookWithDeposit(context.Background(), request("cust-1", "09:00"))
		assert.ErrorIs(t, err, model.ErrTransient)
		resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "BookWithDeposit", mock.Anything, mock.Anything)
	})

	t.Run("lost race at commit reports booked", func(t *testing.T) {
		svc, store, resolver := newMockedService(true)
		store.On("GetDoctor", mock.Anything, int64(1)).Return(doctor, nil)
		store.On("GetDeposit", mock.Anything, "cust-1", int64(1)).Return(deposit, nil)
		resolver.On("Resolve", mock.Anything, int64(1), testDate, true).Return(open, nil)
		store.On("BookWithDeposit", mock.Anything, mock.MatchedBy(func(b db.BookingTx) bool {
			return b.Appointment.Time == "09:30" && b.GuardFrom == "09:00" && b.GuardTo == "10:00"
		})).Return(0, model.ErrSlotUnavailable)

		_, err := svc.BookWithDeposit(context.Background(), request("cust-1", "09:30"))
		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, slots.ReasonBooked, unavailable.Reason)
		store.AssertExpectations(t)
		resolver.AssertExpectations(t)
	})

	t.Run("resolver failure is transient", func(t *testing.T) {
		svc, store, resolver := newMockedService(false)
		store.On("GetDoctor", mock.Anything, int64(1)).Return(doctor, nil)
		store.On("GetDeposit", mock.Anything, "cust-1", int64(1)).Return(deposit, nil)
		resolver.On("Resolve", mock.Anything, int64(1), testDate, false).
			Return(nil, errors.Join(model.ErrTransient, errors.New("database is locked")))

		_, err := svc.BookWithDeposit(context.Background(), request("cust-1", "09:00"))
		assert.ErrorIs(t, err, model.ErrTransient)
		store.AssertNotCalled(t, "BookWithDeposit", mock.Anything, mock.Anything)
	})

	t.Run("half hour without lock policy has no guard", func(t *testing.T) {
		svc, store, resolver := newMockedService(false)
		store.On("GetDoctor", mock.Anything, int64(1)).Return(doctor, nil)
		store.On("GetDeposit", mock.Anything, "cust-1", int64(1)).Return(deposit, nil)
		resolver.On("Resolve", mock.Anything, int64(1), testDate, false).Return(open, nil)
		store.On("BookWithDeposit", mock.Anything, mock.MatchedBy(func(b db.BookingTx) bool {
			return b.GuardFrom == "" && b.GuardTo == ""
		})).Return(0, nil)

		appt, err := svc.BookWithDeposit(context.Background(), request("cust-1", "09:00"))
		require.NoError(t, err)
		assert.Equal(t, "09:00", appt.Time)
		store.AssertExpectations(t)
	})

	t.Run("inactive doctor", func(t *testing.T) {
		svc, store, _ := newMockedService(false)
		store.On("GetDoctor", mock.Anything, int64(1)).Return(&model.Doctor{ID: 1, IsActive: false}, nil)

		_, err := svc.BookWithDeposit(context.Background(), request("cust-1", "09:00"))
		assert.ErrorIs(t, err, model.ErrNotFound)
		store.AssertNotCalled(t, "GetDeposit", mock.Anything, mock.Anything, mock.Anything)
	})
}
