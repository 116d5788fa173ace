package model

import "time"

// SessionDeposit is the prepaid session balance of a customer with a doctor.
type SessionDeposit struct {
	CustomerID        string    `json:"customer_id"`
	DoctorID          int64     `json:"doctor_id"`
	RemainingSessions int       `json:"remaining_sessions"`
	TotalPurchased    int       `json:"total_purchased"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasBalance reports whether a session can be redeemed.
func (d *SessionDeposit) HasBalance() bool {
	return d != nil && d.RemainingSessions > 0
}

// ManualDepositStatus is the approval state of an admin-entered deposit.
type ManualDepositStatus string

const (
	ManualDepositPending   ManualDepositStatus = "pending"
	ManualDepositCompleted ManualDepositStatus = "completed"
	ManualDepositRejected  ManualDepositStatus = "rejected"
)

// CanTransition reports whether the status may move to next.
func (s ManualDepositStatus) CanTransition(next ManualDepositStatus) bool {
	return s == ManualDepositPending && (next == ManualDepositCompleted || next == ManualDepositRejected)
}

// ManualDeposit is a deposit entered outside the checkout flow. It credits
// the balance only once an admin completes it.
type ManualDeposit struct {
	ID         int64               `json:"id"`
	Reference  string              `json:"reference"`
	CustomerID string              `json:"customer_id"`
	DoctorID   int64               `json:"doctor_id"`
	Sessions   int                 `json:"sessions"`
	Status     ManualDepositStatus `json:"status"`
	Note       string              `json:"note,omitempty"`
	DecidedBy  string              `json:"decided_by,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	DecidedAt  *time.Time          `json:"decided_at,omitempty"`
}
