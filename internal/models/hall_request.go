package models

import "time"

// HallRequestStatus tracks the lifecycle of a hall booking request.
type HallRequestStatus string

const (
	HallRequestPending  HallRequestStatus = "pending"
	HallRequestApproved HallRequestStatus = "approved"
	HallRequestRejected HallRequestStatus = "rejected"
)

// Valid reports whether the status is a known request state.
func (s HallRequestStatus) Valid() bool {
	switch s {
	case HallRequestPending, HallRequestApproved, HallRequestRejected:
		return true
	}
	return false
}

// HallBookingRequest is an officer's request to book a hall for a
// training. Approval materialises the booking; the training itself
// carries the date and time window.
type HallBookingRequest struct {
	ID          string            `db:"id" json:"id"`
	TrainingID  string            `db:"training_id" json:"training_id"`
	HallID      string            `db:"hall_id" json:"hall_id"`
	RequestedBy string            `db:"requested_by" json:"requested_by"`
	Priority    string            `db:"priority" json:"priority,omitempty"`
	Remarks     string            `db:"remarks" json:"remarks,omitempty"`
	Status      HallRequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// HallBookingRequestDetail joins the display fields a request list needs.
type HallBookingRequestDetail struct {
	HallBookingRequest
	TrainingTitle  string    `db:"training_title" json:"training_title"`
	TrainingDate   time.Time `db:"training_date" json:"training_date"`
	HallName       string    `db:"hall_name" json:"hall_name"`
	RequesterName  string    `db:"requester_name" json:"requester_name"`
	RequesterEmail string    `db:"requester_email" json:"requester_email"`
}
