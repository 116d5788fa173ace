package api

import (
	"fmt"
	"net/http"
	"strconv"

	"clinicbook/internal/booking"
	"clinicbook/internal/model"
	"clinicbook/internal/slots"
	"clinicbook/internal/tz"
)

// SlotView is a slot plus its wall-clock time in the client's zone.
type SlotView struct {
	slots.Slot
	ClientDate string `json:"client_date,omitempty"`
	ClientTime string `json:"client_time,omitempty"`
}

// SlotsResponse is the body of GET /api/doctors/{id}/slots.
type SlotsResponse struct {
	DoctorID             int64        `json:"doctor_id"`
	Date                 string       `json:"date"`
	Timezone             string       `json:"timezone"`
	ClientTimezone       string       `json:"client_timezone,omitempty"`
	LockAdjacentHalfHour bool         `json:"lock_adjacent_half_hour"`
	Slots                []SlotView   `json:"slots"`
	Closure              *ClosureView `json:"closure,omitempty"`
}

// ClosureResponse is the body of GET /api/doctors/{id}/closure.
type ClosureResponse struct {
	DoctorID int64        `json:"doctor_id"`
	Date     string       `json:"date"`
	Closed   bool         `json:"closed"`
	Closure  *ClosureView `json:"closure,omitempty"`
}

// ConvertResponse is the body of GET /api/time/convert.
type ConvertResponse struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// IncreaseDepositRequest is the payment completion callback body.
type IncreaseDepositRequest struct {
	CustomerID string `json:"customer_id"`
	DoctorID   int64  `json:"doctor_id"`
	Sessions   int    `json:"sessions"`
	PaymentRef string `json:"payment_ref"`
}

// GET /api/doctors
func (s *Server) handleDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := s.store.ListDoctors(r.Context(), true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if doctors == nil {
		doctors = []model.Doctor{}
	}
	writeJSON(w, http.StatusOK, doctors)
}

// GET /api/doctors/{id}/slots?date=YYYY-MM-DD&tz=Europe/Zurich
//
// The listing always uses the lock policy bookings are validated with.
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	s.serveSlots(w, r, false)
}

// GET /api/admin/doctors/{id}/slots?date=YYYY-MM-DD&lock=false
//
// Preview of the listing under another lock policy. Bookings still follow
// the service policy.
func (s *Server) handleSlotsPreview(w http.ResponseWriter, r *http.Request) {
	s.serveSlots(w, r, true)
}

func (s *Server) serveSlots(w http.ResponseWriter, r *http.Request, allowLockOverride bool) {
	doctorID, err := idParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	date, err := requireQuery(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var lockOverride *bool
	if raw := r.URL.Query().Get("lock"); raw != "" {
		if !allowLockOverride {
			s.writeServiceError(w, r, fmt.Errorf("%w: lock override is only available on the admin slots route", model.ErrInvalidInput))
			return
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeServiceError(w, r, fmt.Errorf("%w: invalid lock flag", model.ErrInvalidInput))
			return
		}
		lockOverride = &v
	}

	clientZone := r.URL.Query().Get("tz")
	if clientZone != "" {
		if _, err := tz.Location(clientZone); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	doctor, err := s.store.GetDoctor(r.Context(), doctorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	zone, err := s.booking.DoctorZone(doctor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.booking.ResolveSlots(r.Context(), doctorID, date, lockOverride)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := SlotsResponse{
		DoctorID:             doctorID,
		Date:                 date,
		Timezone:             zone,
		ClientTimezone:       clientZone,
		LockAdjacentHalfHour: s.booking.LockAdjacentHalfHour(),
		Slots:                make([]SlotView, 0, len(res.Slots)),
		Closure:              newClosureView(res.Closure, r.URL.Query().Get("lang")),
	}
	if lockOverride != nil {
		resp.LockAdjacentHalfHour = *lockOverride
	}
	for _, slot := range res.Slots {
		view := SlotView{Slot: slot}
		if clientZone != "" {
			view.ClientDate, view.ClientTime, err = tz.Convert(date, slot.Time, zone, clientZone)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
		}
		resp.Slots = append(resp.Slots, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/doctors/{id}/closure?date=YYYY-MM-DD&lang=el
func (s *Server) handleClosure(w http.ResponseWriter, r *http.Request) {
	doctorID, err := idParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	date, err := requireQuery(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := model.ParseDate(date); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	info, err := s.closures.IsClosed(r.Context(), doctorID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClosureResponse{
		DoctorID: doctorID,
		Date:     date,
		Closed:   info != nil,
		Closure:  newClosureView(info, r.URL.Query().Get("lang")),
	})
}

// POST /api/bookings/deposit
func (s *Server) handleBookWithDeposit(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	appt, err := s.booking.BookWithDeposit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// GET /api/deposits?customer_id=...
func (s *Server) handleDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := s.booking.Deposits(r.Context(), r.URL.Query().Get("customer_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if deposits == nil {
		deposits = []model.SessionDeposit{}
	}
	writeJSON(w, http.StatusOK, deposits)
}

// POST /api/deposits
func (s *Server) handleIncreaseDeposit(w http.ResponseWriter, r *http.Request) {
	var req IncreaseDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	deposit, err := s.booking.IncreaseDeposit(r.Context(), req.CustomerID, req.DoctorID, req.Sessions, req.PaymentRef)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

// GET /api/time/convert?date=&time=&from=&to=
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, name := range []string{"date", "time", "from", "to"} {
		if q.Get(name) == "" {
			s.writeServiceError(w, r, fmt.Errorf("%w: %s is required", model.ErrInvalidInput, name))
			return
		}
	}

	if _, err := model.ParseDate(q.Get("date")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := model.ParseClock(q.Get("time")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	date, clock, err := tz.Convert(q.Get("date"), q.Get("time"), q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{Date: date, Time: clock, Timezone: q.Get("to")})
}
