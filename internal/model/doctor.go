package model

import "time"

// Doctor is a bookable practitioner.
type Doctor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Timezone  string    `json:"timezone"` // IANA zone, e.g. "Europe/Athens"
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
