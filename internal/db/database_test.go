package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedDoctor(t *testing.T, db *DB, id int64) {
	t.Helper()
	require.NoError(t, db.UpsertDoctor(context.Background(), &model.Doctor{
		ID: id, Name: "Dr. Test", Timezone: "Europe/Athens", IsActive: true,
	}))
}

func TestDoctors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertDoctor(ctx, &model.Doctor{ID: 1, Name: "Dr. Papadopoulos", Timezone: "Europe/Athens", IsActive: true}))
	require.NoError(t, db.UpsertDoctor(ctx, &model.Doctor{ID: 2, Name: "Dr. Keller", Specialty: "Dermatology", Timezone: "Europe/Zurich", IsActive: true}))

	created := &model.Doctor{Name: "Dr. Dubois", IsActive: false}
	require.NoError(t, db.UpsertDoctor(ctx, created))
	assert.Equal(t, int64(3), created.ID)

	d, err := db.GetDoctor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Dermatology", d.Specialty)
	assert.Equal(t, "Europe/Zurich", d.Timezone)

	require.NoError(t, db.UpsertDoctor(ctx, &model.Doctor{ID: 2, Name: "Dr. Keller-Meier", Timezone: "Europe/Zurich", IsActive: true}))
	d, err = db.GetDoctor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Keller-Meier", d.Name)

	active, err := db.ListDoctors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := db.ListDoctors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, db.SetDoctorActive(ctx, 1, false))
	active, err = db.ListDoctors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = db.GetDoctor(ctx, 99)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, db.SetDoctorActive(ctx, 99, true), model.ErrNotFound)
}

func TestWindows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	w := &model.AvailabilityWindow{DoctorID: 1, Date: "2025-03-10", StartTime: "14:00", EndTime: "16:00", IncrementMinutes: 60}
	require.NoError(t, db.CreateWindow(ctx, w))
	assert.NotZero(t, w.ID)
	assert.Equal(t, model.SourceAdmin, w.Source)

	// Stored even though it yields no slots.
	require.NoError(t, db.CreateWindow(ctx, &model.AvailabilityWindow{DoctorID: 1, Date: "2025-03-10", StartTime: "12:00", EndTime: "09:00", IncrementMinutes: 30}))

	windows, err := db.ListWindows(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "12:00", windows[0].StartTime)
	assert.Equal(t, "14:00", windows[1].StartTime)

	windows, err = db.ListWindows(ctx, 1, "2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, windows)

	err = db.CreateWindow(ctx, &model.AvailabilityWindow{DoctorID: 1, Date: "10.03.2025", StartTime: "09:00", EndTime: "10:00", IncrementMinutes: 30})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	require.NoError(t, db.DeleteWindow(ctx, w.ID))
	assert.ErrorIs(t, db.DeleteWindow(ctx, w.ID), model.ErrNotFound)
}

func TestClosures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)
	doctor := int64(1)

	global := &model.Closure{DateFrom: "2025-04-18", DateTo: "2025-04-21", Reasons: map[string]string{"el": "Πάσχα", "en": "Easter"}}
	require.NoError(t, db.CreateClosure(ctx, global))
	vacation := &model.Closure{DoctorID: &doctor, DateFrom: "2025-04-20", DateTo: "2025-04-30"}
	require.NoError(t, db.CreateClosure(ctx, vacation))

	closures, err := db.ListClosuresOn(ctx, "2025-04-20")
	require.NoError(t, err)
	require.Len(t, closures, 2)
	assert.Nil(t, closures[0].DoctorID)
	assert.Equal(t, "Easter", closures[0].Reasons["en"])
	require.NotNil(t, closures[1].DoctorID)
	assert.Equal(t, int64(1), *closures[1].DoctorID)

	closures, err = db.ListClosuresOn(ctx, "2025-04-25")
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Equal(t, vacation.ID, closures[0].ID)

	closures, err = db.ListClosuresOn(ctx, "2025-05-01")
	require.NoError(t, err)
	assert.Empty(t, closures)

	err = db.CreateClosure(ctx, &model.Closure{DateFrom: "2025-05-02", DateTo: "2025-05-01"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	all, err := db.ListClosures(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteClosure(ctx, global.ID))
	assert.ErrorIs(t, db.DeleteClosure(ctx, global.ID), model.ErrNotFound)
}

func TestAppointments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	a := &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: "15:00", PatientName: "Maria"}
	require.NoError(t, db.CreateAppointment(ctx, a))
	assert.Equal(t, model.AppointmentSourceAdmin, a.Source)

	err := db.CreateAppointment(ctx, &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: "15:00", PatientName: "Eleni"})
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)

	require.NoError(t, db.CreateAppointment(ctx, &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: "14:00", PatientName: "Nikos"}))

	times, err := db.BookedTimes(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00", "15:00"}, times)

	got, err := db.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria", got.PatientName)
	assert.Empty(t, got.CustomerID)

	list, err := db.ListAppointments(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, db.DeleteAppointment(ctx, a.ID))
	_, err = db.GetAppointment(ctx, a.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// The freed slot can be booked again.
	require.NoError(t, db.CreateAppointment(ctx, &model.Appointment{DoctorID: 1, Date: "2025-03-10", Time: "15:00", PatientName: "Eleni"}))
}

func TestAuditTableData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDoctor(t, db, 1)

	names, err := db.GetTableNames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "appointments")

	rows, columns, err := db.GetTableData(ctx, "doctors")
	require.NoError(t, err)
	assert.Contains(t, columns, "timezone")
	require.Len(t, rows, 1)
	assert.Equal(t, "Dr. Test", rows[0]["name"])

	_, _, err = db.GetTableData(ctx, "sqlite_master")
	assert.Error(t, err)
}
