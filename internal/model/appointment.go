package model

import "time"

// Appointment sources.
const (
	AppointmentSourceDeposit = "deposit"
	AppointmentSourceAdmin   = "admin"
)

// Appointment is a confirmed booking of one slot.
type Appointment struct {
	ID           int64     `json:"id"`
	DoctorID     int64     `json:"doctor_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	CustomerID   string    `json:"customer_id,omitempty"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email,omitempty"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}
