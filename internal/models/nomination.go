package models

import "time"

// NominationStatus is the approval lifecycle of a nomination.
type NominationStatus string

const (
	NominationNominated NominationStatus = "nominated"
	NominationApproved  NominationStatus = "approved"
	NominationRejected  NominationStatus = "rejected"
	NominationAttended  NominationStatus = "attended"
)

// Active reports whether the nomination commits the participant for
// conflict purposes.
func (s NominationStatus) Active() bool {
	switch s {
	case NominationNominated, NominationApproved, NominationAttended:
		return true
	}
	return false
}

// ActiveNominationStatuses are the states that count for participant
// double-booking checks, derived from Active.
func ActiveNominationStatuses() []NominationStatus {
	all := []NominationStatus{NominationNominated, NominationApproved, NominationRejected, NominationAttended}
	var statuses []NominationStatus
	for _, s := range all {
		if s.Active() {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// Nomination links a participant to a training.
type Nomination struct {
	ID              string           `db:"id" json:"id"`
	TrainingID      string           `db:"training_id" json:"training_id"`
	ParticipantID   string           `db:"participant_id" json:"participant_id"`
	InstitutionID   string           `db:"institution_id" json:"institution_id"`
	Status          NominationStatus `db:"status" json:"status"`
	NominatedBy     string           `db:"nominated_by" json:"nominated_by"`
	NominatedAt     time.Time        `db:"nominated_at" json:"nominated_at"`
	ApprovedBy      *string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// NominationFilter describes query params for listing nominations.
type NominationFilter struct {
	TrainingID          string
	InstitutionID       string
	ParticipantID       string
	TrainingCreatedByID string
}

// NominationDetail decorates a nomination with display fields joined
// from the participant, training and institution records.
type NominationDetail struct {
	Nomination
	ParticipantName  string    `db:"participant_name" json:"participant_name"`
	ParticipantEmail string    `db:"participant_email" json:"participant_email"`
	TrainingTitle    string    `db:"training_title" json:"training_title"`
	TrainingDate     time.Time `db:"training_date" json:"training_date"`
	InstitutionName  string    `db:"institution_name" json:"institution_name"`
}
