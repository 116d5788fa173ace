package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/booking"
	"clinicbook/internal/closure"
	"clinicbook/internal/model"
	"clinicbook/internal/tz"
)

// Error codes carried next to the message.
const (
	codeInvalid         = "invalid_request"
	codeInvalidTimezone = "invalid_timezone"
	codeNoDeposit       = "no_deposit"
	codeSlotUnavailable = "slot_unavailable"
	codeClinicClosed    = "clinic_closed"
	codeNotFound        = "not_found"
	codeConflict        = "invalid_transition"
	codePaymentConflict = "payment_conflict"
	codeTransient       = "temporarily_unavailable"
	codeInternal        = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Closure *ClosureView `json:"closure,omitempty"`
}

// ClosureView is a closure rendered for one language.
type ClosureView struct {
	ClosureID int64  `json:"closure_id"`
	DoctorID  *int64 `json:"doctor_id,omitempty"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Reason    string `json:"reason"`
}

func newClosureView(info *closure.Info, lang string) *ClosureView {
	if info == nil {
		return nil
	}
	return &ClosureView{
		ClosureID: info.ClosureID,
		DoctorID:  info.DoctorID,
		DateFrom:  info.DateFrom,
		DateTo:    info.DateTo,
		Reason:    info.Reason(lang),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps domain errors to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var closed *booking.ClosedError
	var unavailable *booking.UnavailableError

	switch {
	case errors.As(err, &closed):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    codeClinicClosed,
			Closure: newClosureView(closed.Closure, r.URL.Query().Get("lang")),
		})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: codeSlotUnavailable, Reason: unavailable.Reason})
	case errors.Is(err, model.ErrNoDeposit):
		writeJSON(w, http.StatusPaymentRequired, ErrorResponse{Error: err.Error(), Code: codeNoDeposit})
	case errors.Is(err, model.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: codeSlotUnavailable})
	case errors.Is(err, tz.ErrInvalidTimezone):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeInvalidTimezone})
	case errors.Is(err, model.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: codeInvalid})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: codeNotFound})
	case errors.Is(err, model.ErrPaymentConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: codePaymentConflict})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: codeConflict})
	case errors.Is(err, model.ErrTransient):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Transient failure")
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "temporarily unavailable, retry", Code: codeTransient})
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: codeInternal})
	}
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", model.ErrInvalidInput, err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrInvalidInput, name)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", model.ErrInvalidInput, name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrInvalidInput, name)
	}
	return id, nil
}

func requireQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", model.ErrInvalidInput, name)
	}
	return v, nil
}
