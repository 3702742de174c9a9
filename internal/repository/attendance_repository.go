package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhtms/tms-api/internal/models"
)

// AttendanceRepository provides persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create stores an attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, attendance *models.Attendance) error {
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	if attendance.MarkedAt.IsZero() {
		attendance.MarkedAt = time.Now().UTC()
	}

	const query = `INSERT INTO attendance (id, training_id, participant_id, method, marked_by, marked_at)
		VALUES (:id, :training_id, :participant_id, :method, :marked_by, :marked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attendance); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Exists reports whether the participant is already marked present.
func (r *AttendanceRepository) Exists(ctx context.Context, trainingID, participantID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM attendance WHERE training_id = $1 AND participant_id = $2`, trainingID, participantID); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return count > 0, nil
}

// ListByTraining returns a training's attendance records.
func (r *AttendanceRepository) ListByTraining(ctx context.Context, trainingID string) ([]models.Attendance, error) {
	const query = `SELECT id, training_id, participant_id, method, marked_by, marked_at FROM attendance WHERE training_id = $1 ORDER BY marked_at ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, trainingID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
