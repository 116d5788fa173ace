package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"clinicbook/internal/audit"
	"clinicbook/internal/model"
)

// ManualDepositRequest is the body of POST /api/admin/manual-deposits.
type ManualDepositRequest struct {
	CustomerID string `json:"customer_id"`
	DoctorID   int64  `json:"doctor_id"`
	Sessions   int    `json:"sessions"`
	Note       string `json:"note,omitempty"`
}

// DecisionRequest is the optional body of approve and reject.
type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	doctorID, err := queryID(r, "doctor_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	date, err := requireQuery(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	windows, err := s.store.ListWindows(r.Context(), doctorID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if windows == nil {
		windows = []model.AvailabilityWindow{}
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleCreateWindow(w http.ResponseWriter, r *http.Request) {
	var window model.AvailabilityWindow
	if err := decodeJSON(r, &window); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if _, err := s.store.GetDoctor(r.Context(), window.DoctorID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	window.ID = 0
	window.Source = model.SourceAdmin

	if err := s.store.CreateWindow(r.Context(), &window); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !window.Usable() {
		s.logger.Warn().Int64("window_id", window.ID).Msg("Stored window cannot produce slots")
	}
	writeJSON(w, http.StatusCreated, window)
}

func (s *Server) handleDeleteWindow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.store.DeleteWindow(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListClosures(w http.ResponseWriter, r *http.Request) {
	closures, err := s.store.ListClosures(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if closures == nil {
		closures = []model.Closure{}
	}
	writeJSON(w, http.StatusOK, closures)
}

func (s *Server) handleCreateClosure(w http.ResponseWriter, r *http.Request) {
	var c model.Closure
	if err := decodeJSON(r, &c); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if c.DoctorID != nil {
		if _, err := s.store.GetDoctor(r.Context(), *c.DoctorID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	c.ID = 0
	c.Source = model.SourceAdmin

	if err := s.store.CreateClosure(r.Context(), &c); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteClosure(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.store.DeleteClosure(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID, err := queryID(r, "doctor_id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	date, err := requireQuery(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	appointments, err := s.store.ListAppointments(r.Context(), doctorID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if appointments == nil {
		appointments = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appointments)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.booking.CancelAppointment(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListManualDeposits(w http.ResponseWriter, r *http.Request) {
	status := model.ManualDepositStatus(r.URL.Query().Get("status"))
	deposits, err := s.booking.ListManualDeposits(r.Context(), status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if deposits == nil {
		deposits = []model.ManualDeposit{}
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (s *Server) handleRequestManualDeposit(w http.ResponseWriter, r *http.Request) {
	var req ManualDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	m, err := s.booking.RequestManualDeposit(r.Context(), req.CustomerID, req.DoctorID, req.Sessions, req.Note)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDecideManualDeposit(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		var req DecisionRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
		}
		if req.DecidedBy == "" {
			req.DecidedBy = "admin"
		}

		decide := s.booking.RejectManualDeposit
		if approve {
			decide = s.booking.ApproveManualDeposit
		}
		m, err := decide(r.Context(), id, req.DecidedBy)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// GET /api/admin/export streams the xlsx audit workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "export disabled")
		return
	}

	var buf bytes.Buffer
	if err := s.exporter.Export(r.Context(), &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	filename := audit.Filename(time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
