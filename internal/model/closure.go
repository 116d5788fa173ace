package model

import "time"

// Closure is an inclusive date range in which no slots exist. A nil DoctorID
// closes the whole clinic.
type Closure struct {
	ID        int64             `json:"id"`
	DoctorID  *int64            `json:"doctor_id,omitempty"`
	DateFrom  string            `json:"date_from"`
	DateTo    string            `json:"date_to"`
	Reasons   map[string]string `json:"reasons,omitempty"` // language code -> text
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}

// AppliesTo reports whether the closure affects doctorID.
func (c *Closure) AppliesTo(doctorID int64) bool {
	return c.DoctorID == nil || *c.DoctorID == doctorID
}

// Covers reports whether date ("YYYY-MM-DD") lies within the range.
// ISO dates compare correctly as strings.
func (c *Closure) Covers(date string) bool {
	return c.DateFrom <= date && date <= c.DateTo
}
