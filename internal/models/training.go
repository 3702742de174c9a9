package models

import (
	"time"

	"github.com/dhtms/tms-api/internal/schedule"
)

// TrainingStatus is the lifecycle state of a training.
type TrainingStatus string

const (
	TrainingDraft     TrainingStatus = "draft"
	TrainingScheduled TrainingStatus = "scheduled"
	TrainingOngoing   TrainingStatus = "ongoing"
	TrainingCompleted TrainingStatus = "completed"
	TrainingCancelled TrainingStatus = "cancelled"
)

var allTrainingStatuses = []TrainingStatus{
	TrainingDraft, TrainingScheduled, TrainingOngoing, TrainingCompleted, TrainingCancelled,
}

// Valid reports whether the status is a known lifecycle state.
func (s TrainingStatus) Valid() bool {
	for _, known := range allTrainingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OccupiesHall reports whether a training in this status counts as
// using its hall when listing or explaining availability.
func (s TrainingStatus) OccupiesHall() bool {
	switch s {
	case TrainingScheduled, TrainingOngoing, TrainingCompleted:
		return true
	}
	return false
}

// BlocksBooking reports whether a training in this status rejects new
// bookings at write time. Completed trainings are in the past and no
// longer guard the write path.
func (s TrainingStatus) BlocksBooking() bool {
	return s == TrainingScheduled || s == TrainingOngoing
}

// OccupyingStatuses are the statuses counted by the read-path
// availability queries, derived from OccupiesHall.
func OccupyingStatuses() []TrainingStatus {
	var statuses []TrainingStatus
	for _, s := range allTrainingStatuses {
		if s.OccupiesHall() {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// BookingGuardStatuses are the statuses checked by the write-path
// conflict guard, derived from BlocksBooking.
func BookingGuardStatuses() []TrainingStatus {
	var statuses []TrainingStatus
	for _, s := range allTrainingStatuses {
		if s.BlocksBooking() {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// Training is a scheduled event occupying a hall for a date and time
// window.
type Training struct {
	ID                    string         `db:"id" json:"id"`
	Title                 string         `db:"title" json:"title"`
	Description           string         `db:"description" json:"description"`
	Program               string         `db:"program" json:"program"`
	Date                  time.Time      `db:"date" json:"date"`
	StartTime             schedule.Clock `db:"start_min" json:"start_time"`
	EndTime               schedule.Clock `db:"end_min" json:"end_time"`
	HallID                string         `db:"hall_id" json:"hall_id"`
	Capacity              int            `db:"capacity" json:"capacity"`
	TrainerID             string         `db:"trainer_id" json:"trainer_id"`
	TargetAudience        string         `db:"target_audience" json:"target_audience,omitempty"`
	CreatedByID           string         `db:"created_by_id" json:"created_by_id"`
	CreatedByName         string         `db:"created_by_name" json:"created_by_name,omitempty"`
	Status                TrainingStatus `db:"status" json:"status"`
	RequiredInstitutions  []string       `db:"-" json:"required_institutions,omitempty"`
	CertificatesGenerated bool           `db:"certificates_generated" json:"certificates_generated"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Window returns the training's time window.
func (t Training) Window() schedule.Window {
	return schedule.Window{Start: t.StartTime, End: t.EndTime}
}

// TrainingFilter describes query params for listing trainings.
type TrainingFilter struct {
	CreatedByID   string
	InstitutionID string
	ParticipantID string
	Status        *TrainingStatus
	From          *time.Time
	To            *time.Time
}

// BookingConflict describes the record that caused a booking to be
// rejected.
type BookingConflict struct {
	Type       string         `json:"type"`
	TrainingID string         `json:"training_id,omitempty"`
	BlockID    string         `json:"block_id,omitempty"`
	HallID     string         `json:"hall_id"`
	Date       time.Time      `json:"date"`
	StartTime  schedule.Clock `json:"start_time"`
	EndTime    schedule.Clock `json:"end_time"`
	Title      string         `json:"title,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// BookingConflictError is returned when a booking collides with an
// existing training or block.
type BookingConflictError struct {
	Message  string          `json:"message"`
	Conflict BookingConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
