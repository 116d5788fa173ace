package closure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/model"
)

type stubStore struct {
	closures []model.Closure
	err      error
}

func (s *stubStore) ListClosuresOn(_ context.Context, date string) ([]model.Closure, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Closure
	for _, c := range s.closures {
		if c.Covers(date) {
			out = append(out, c)
		}
	}
	return out, nil
}

func doctorRef(id int64) *int64 { return &id }

func TestCalendar_IsClosed(t *testing.T) {
	store := &stubStore{closures: []model.Closure{
		{ID: 3, DateFrom: "2025-08-01", DateTo: "2025-08-15", Reasons: map[string]string{"en": "Summer break"}},
		{ID: 1, DoctorID: doctorRef(2), DateFrom: "2025-08-10", DateTo: "2025-08-12", Reasons: map[string]string{"el": "Συνέδριο"}},
		{ID: 5, DoctorID: doctorRef(4), DateFrom: "2025-03-10", DateTo: "2025-03-10"},
	}}
	cal := NewCalendar(store)
	ctx := context.Background()

	t.Run("open day", func(t *testing.T) {
		info, err := cal.IsClosed(ctx, 2, "2025-03-10")
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("global closure applies to every doctor", func(t *testing.T) {
		info, err := cal.IsClosed(ctx, 9, "2025-08-05")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, int64(3), info.ClosureID)
		assert.Equal(t, "2025-08-01", info.DateFrom)
		assert.Equal(t, "2025-08-15", info.DateTo)
	})

	t.Run("overlap picks lowest id", func(t *testing.T) {
		info, err := cal.IsClosed(ctx, 2, "2025-08-11")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, int64(1), info.ClosureID)
	})

	t.Run("doctor specific closure does not leak", func(t *testing.T) {
		info, err := cal.IsClosed(ctx, 2, "2025-03-10")
		require.NoError(t, err)
		assert.Nil(t, info)

		info, err = cal.IsClosed(ctx, 4, "2025-03-10")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, int64(5), info.ClosureID)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := cal.IsClosed(ctx, 2, "10.03.2025")
		assert.Error(t, err)
	})
}

func TestCalendar_StoreError(t *testing.T) {
	boom := errors.New("disk on fire")
	cal := NewCalendar(&stubStore{err: boom})

	_, err := cal.IsClosed(context.Background(), 1, "2025-03-10")
	assert.ErrorIs(t, err, boom)
}

func TestInfo_Reason(t *testing.T) {
	info := &Info{Reasons: map[string]string{
		"el": "Κλειστό",
		"en": "Closed for holidays",
		"fr": "Fermé",
		"de": "Geschlossen",
	}}

	assert.Equal(t, "Geschlossen", info.Reason("de"))
	assert.Equal(t, "Κλειστό", info.Reason("it"))
	assert.Equal(t, "Κλειστό", info.Reason(""))

	noGreek := &Info{Reasons: map[string]string{"en": "Closed", "fr": "Fermé"}}
	assert.Equal(t, "Closed", noGreek.Reason("de"))

	frenchOnly := &Info{Reasons: map[string]string{"fr": "Fermé"}}
	assert.Equal(t, "Fermé", frenchOnly.Reason("en"))

	empty := &Info{}
	assert.Equal(t, FallbackReason, empty.Reason("en"))

	var missing *Info
	assert.Equal(t, "", missing.Reason("en"))
}
