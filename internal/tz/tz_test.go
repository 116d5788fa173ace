package tz

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name               string
		date, clock        string
		from, to           string
		wantDate, wantTime string
	}{
		{"zurich to athens", "2025-03-10", "16:00", Zurich, Athens, "2025-03-10", "17:00"},
		{"athens to zurich", "2025-03-10", "17:00", Athens, Zurich, "2025-03-10", "16:00"},
		{"same zone", "2025-03-10", "16:00", Athens, Athens, "2025-03-10", "16:00"},
		{"crosses midnight", "2025-03-10", "23:30", Zurich, Athens, "2025-03-11", "00:30"},
		{"crosses year backwards", "2025-01-01", "00:30", Athens, Zurich, "2024-12-31", "23:30"},
		{"crosses month", "2025-04-30", "23:15", Zurich, Athens, "2025-05-01", "00:15"},
		{"summer time both zones", "2025-07-15", "09:00", Zurich, Athens, "2025-07-15", "10:00"},
		{"utc to athens summer", "2025-07-15", "09:00", "UTC", Athens, "2025-07-15", "12:00"},
		{"utc to athens winter", "2025-01-15", "09:00", "UTC", Athens, "2025-01-15", "11:00"},
		{"new york to zurich in dst gap week", "2025-03-10", "10:00", "America/New_York", Zurich, "2025-03-10", "15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, c, err := Convert(tt.date, tt.clock, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, d)
			assert.Equal(t, tt.wantTime, c)
		})
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	d, c, err := Convert("2025-03-10", "16:00", Zurich, Athens)
	require.NoError(t, err)

	back, backClock, err := Convert(d, c, Athens, Zurich)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", back)
	assert.Equal(t, "16:00", backClock)
}

func TestConvert_InvalidTimezone(t *testing.T) {
	_, _, err := Convert("2025-03-10", "16:00", "Mars/Olympus", Athens)
	assert.True(t, errors.Is(err, ErrInvalidTimezone))

	_, _, err = Convert("2025-03-10", "16:00", Zurich, "")
	assert.True(t, errors.Is(err, ErrInvalidTimezone))

	_, _, err = Convert("2025-03-10", "16:00", "Local", Athens)
	assert.True(t, errors.Is(err, ErrInvalidTimezone))
}

func TestConvert_BadInput(t *testing.T) {
	_, _, err := Convert("10.03.2025", "16:00", Zurich, Athens)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidTimezone))
}

func TestResolveZone(t *testing.T) {
	zone, fellBack, err := ResolveZone(Zurich, Athens)
	require.NoError(t, err)
	assert.Equal(t, Zurich, zone)
	assert.False(t, fellBack)

	zone, fellBack, err = ResolveZone("", Athens)
	require.NoError(t, err)
	assert.Equal(t, Athens, zone)
	assert.True(t, fellBack)

	zone, fellBack, err = ResolveZone("Nowhere/Town", Athens)
	require.NoError(t, err)
	assert.Equal(t, Athens, zone)
	assert.True(t, fellBack)

	_, _, err = ResolveZone("", "")
	assert.True(t, errors.Is(err, ErrInvalidTimezone))
}

func TestTranslator_CurrentDate(t *testing.T) {
	// 22:30 UTC is already the next day in Athens but not in Zurich (winter).
	fixed := time.Date(2025, 1, 15, 22, 30, 0, 0, time.UTC)
	tr := NewTranslatorWithClock(func() time.Time { return fixed })

	athens, err := tr.CurrentDate(Athens)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-16", athens)

	zurich, err := tr.CurrentDate(Zurich)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", zurich)

	_, err = tr.CurrentDate("bogus")
	assert.True(t, errors.Is(err, ErrInvalidTimezone))
}

func TestTranslator_IsFutureDate(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 22, 30, 0, 0, time.UTC)
	tr := NewTranslatorWithClock(func() time.Time { return fixed })

	ok, err := tr.IsFutureDate("2025-01-16", Athens)
	require.NoError(t, err)
	assert.True(t, ok, "today counts as bookable")

	ok, err = tr.IsFutureDate("2025-01-15", Athens)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tr.IsFutureDate("2025-01-15", Zurich)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = tr.IsFutureDate("15/01/2025", Zurich)
	assert.Error(t, err)
}
