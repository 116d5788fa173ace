package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityWindow_Usable(t *testing.T) {
	tests := []struct {
		name string
		w    AvailabilityWindow
		want bool
	}{
		{"half hour", AvailabilityWindow{StartTime: "09:00", EndTime: "12:00", IncrementMinutes: 30}, true},
		{"hourly", AvailabilityWindow{StartTime: "14:00", EndTime: "16:00", IncrementMinutes: 60}, true},
		{"unsupported increment", AvailabilityWindow{StartTime: "09:00", EndTime: "12:00", IncrementMinutes: 45}, false},
		{"start equals end", AvailabilityWindow{StartTime: "09:00", EndTime: "09:00", IncrementMinutes: 30}, false},
		{"start after end", AvailabilityWindow{StartTime: "12:00", EndTime: "09:00", IncrementMinutes: 30}, false},
		{"garbage time", AvailabilityWindow{StartTime: "9am", EndTime: "12:00", IncrementMinutes: 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.Usable())
		})
	}
}

func TestClockRoundTrip(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)
	assert.Equal(t, "09:30", FormatClock(m))

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHourSiblings(t *testing.T) {
	tests := []struct {
		clock     string
		top, half string
	}{
		{"09:30", "09:00", "09:30"},
		{"14:00", "14:00", "14:30"},
		{"23:45", "23:00", "23:30"},
	}
	for _, tt := range tests {
		m, err := ParseClock(tt.clock)
		require.NoError(t, err)
		top, half := HourSiblings(m)
		assert.Equal(t, tt.top, FormatClock(top), tt.clock)
		assert.Equal(t, tt.half, FormatClock(half), tt.clock)
	}
}

func TestClosure_AppliesAndCovers(t *testing.T) {
	doctor := int64(7)
	global := Closure{DateFrom: "2025-08-01", DateTo: "2025-08-15"}
	specific := Closure{DoctorID: &doctor, DateFrom: "2025-03-10", DateTo: "2025-03-10"}

	assert.True(t, global.AppliesTo(1))
	assert.True(t, global.AppliesTo(7))
	assert.True(t, specific.AppliesTo(7))
	assert.False(t, specific.AppliesTo(8))

	assert.True(t, global.Covers("2025-08-01"))
	assert.True(t, global.Covers("2025-08-15"))
	assert.False(t, global.Covers("2025-08-16"))
	assert.True(t, specific.Covers("2025-03-10"))
	assert.False(t, specific.Covers("2025-03-09"))
}

func TestManualDepositStatus_CanTransition(t *testing.T) {
	assert.True(t, ManualDepositPending.CanTransition(ManualDepositCompleted))
	assert.True(t, ManualDepositPending.CanTransition(ManualDepositRejected))
	assert.False(t, ManualDepositCompleted.CanTransition(ManualDepositRejected))
	assert.False(t, ManualDepositRejected.CanTransition(ManualDepositCompleted))
	assert.False(t, ManualDepositPending.CanTransition(ManualDepositPending))
}

func TestSessionDeposit_HasBalance(t *testing.T) {
	var missing *SessionDeposit
	assert.False(t, missing.HasBalance())
	assert.False(t, (&SessionDeposit{RemainingSessions: 0}).HasBalance())
	assert.True(t, (&SessionDeposit{RemainingSessions: 2}).HasBalance())
}
