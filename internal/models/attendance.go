package models

import "time"

// Attendance marking methods.
const (
	AttendanceMethodManual = "manual"
	AttendanceMethodQR     = "qr"
)

// Attendance records a participant's presence at a training.
type Attendance struct {
	ID            string    `db:"id" json:"id"`
	TrainingID    string    `db:"training_id" json:"training_id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	Method        string    `db:"method" json:"method"`
	MarkedBy      string    `db:"marked_by" json:"marked_by"`
	MarkedAt      time.Time `db:"marked_at" json:"marked_at"`
}

// AttendanceSession is the live QR check-in session for a training,
// held in redis for its lifetime.
type AttendanceSession struct {
	TrainingID string    `json:"training_id"`
	Token      string    `json:"token"`
	StartedBy  string    `json:"started_by"`
	StartedAt  time.Time `json:"started_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
