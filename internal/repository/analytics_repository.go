package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dhtms/tms-api/internal/models"
)

// AnalyticsRepository runs the aggregate queries behind dashboards and
// reports. All methods are read-only.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TrainingCounts returns total, upcoming and completed training counts.
// A non-empty createdByID scopes the figures to one officer's trainings.
func (r *AnalyticsRepository) TrainingCounts(ctx context.Context, createdByID string, today time.Time) (total, upcoming, completed int, err error) {
	query := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE date > $1 AND status <> $2) AS upcoming,
		COUNT(*) FILTER (WHERE status = $3) AS completed
		FROM trainings`
	args := []interface{}{today, models.TrainingCancelled, models.TrainingCompleted}
	if createdByID != "" {
		query += fmt.Sprintf(" WHERE created_by_id = $%d", len(args)+1)
		args = append(args, createdByID)
	}

	var row struct {
		Total     int `db:"total"`
		Upcoming  int `db:"upcoming"`
		Completed int `db:"completed"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, 0, fmt.Errorf("training counts: %w", err)
	}
	return row.Total, row.Upcoming, row.Completed, nil
}

// ParticipantCount counts active participant accounts district-wide.
func (r *AnalyticsRepository) ParticipantCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE role = $1 AND active`, models.RoleParticipant); err != nil {
		return 0, fmt.Errorf("participant count: %w", err)
	}
	return count, nil
}

// NominationOutcomes returns the decided nomination pool (approved or
// attended), how many of those attended, and the distinct attendees.
func (r *AnalyticsRepository) NominationOutcomes(ctx context.Context, createdByID string) (pool, attended, trained int, err error) {
	query := `SELECT COUNT(*) FILTER (WHERE n.status IN ($1, $2)) AS pool,
		COUNT(*) FILTER (WHERE n.status = $2) AS attended,
		COUNT(DISTINCT n.participant_id) FILTER (WHERE n.status = $2) AS trained
		FROM nominations n
		JOIN trainings t ON t.id = n.training_id`
	args := []interface{}{models.NominationApproved, models.NominationAttended}
	if createdByID != "" {
		query += fmt.Sprintf(" WHERE t.created_by_id = $%d", len(args)+1)
		args = append(args, createdByID)
	}

	var row struct {
		Pool     int `db:"pool"`
		Attended int `db:"attended"`
		Trained  int `db:"trained"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, 0, fmt.Errorf("nomination outcomes: %w", err)
	}
	return row.Pool, row.Attended, row.Trained, nil
}

// TrainingOutcomes totals one training's nominations by outcome.
func (r *AnalyticsRepository) TrainingOutcomes(ctx context.Context, trainingID string) (nominated, approved, attended int, err error) {
	const query = `SELECT COUNT(*) AS nominated,
		COUNT(*) FILTER (WHERE status IN ($2, $3)) AS approved,
		COUNT(*) FILTER (WHERE status = $3) AS attended
		FROM nominations WHERE training_id = $1`

	var row struct {
		Nominated int `db:"nominated"`
		Approved  int `db:"approved"`
		Attended  int `db:"attended"`
	}
	if err := r.db.GetContext(ctx, &row, query, trainingID, models.NominationApproved, models.NominationAttended); err != nil {
		return 0, 0, 0, fmt.Errorf("training outcomes: %w", err)
	}
	return row.Nominated, row.Approved, row.Attended, nil
}

// TrainingInstitutionBreakdown splits a training's nominations per
// nominating institution.
func (r *AnalyticsRepository) TrainingInstitutionBreakdown(ctx context.Context, trainingID string) ([]models.InstitutionNominationRow, error) {
	const query = `SELECT i.id AS institution_id, i.name AS institution_name,
		COUNT(*) AS nominated,
		COUNT(*) FILTER (WHERE n.status IN ($2, $3)) AS approved,
		COUNT(*) FILTER (WHERE n.status = $3) AS attended
		FROM nominations n
		JOIN institutions i ON i.id = n.institution_id
		WHERE n.training_id = $1
		GROUP BY i.id, i.name
		ORDER BY i.name`

	var rows []models.InstitutionNominationRow
	if err := r.db.SelectContext(ctx, &rows, query, trainingID, models.NominationApproved, models.NominationAttended); err != nil {
		return nil, fmt.Errorf("training institution breakdown: %w", err)
	}
	return rows, nil
}

// InstitutionStaffCounts counts an institution's active participants and
// how many of them have attended at least one training.
func (r *AnalyticsRepository) InstitutionStaffCounts(ctx context.Context, institutionID string) (total, trained int, err error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE EXISTS (
			SELECT 1 FROM nominations n WHERE n.participant_id = u.id AND n.status = $2
		)) AS trained
		FROM users u
		WHERE u.institution_id = $1 AND u.role = $3 AND u.active`

	var row struct {
		Total   int `db:"total"`
		Trained int `db:"trained"`
	}
	if err := r.db.GetContext(ctx, &row, query, institutionID, models.NominationAttended, models.RoleParticipant); err != nil {
		return 0, 0, fmt.Errorf("institution staff counts: %w", err)
	}
	return row.Total, row.Trained, nil
}

// InstitutionProgramBreakdown counts an institution's trainings and
// participants per program, over approved and attended nominations.
func (r *AnalyticsRepository) InstitutionProgramBreakdown(ctx context.Context, institutionID string) ([]models.ProgramRow, error) {
	const query = `SELECT t.program,
		COUNT(DISTINCT t.id) AS trainings,
		COUNT(DISTINCT n.participant_id) AS participants
		FROM nominations n
		JOIN trainings t ON t.id = n.training_id
		WHERE n.institution_id = $1 AND n.status IN ($2, $3)
		GROUP BY t.program
		ORDER BY t.program`

	var rows []models.ProgramRow
	if err := r.db.SelectContext(ctx, &rows, query, institutionID, models.NominationApproved, models.NominationAttended); err != nil {
		return nil, fmt.Errorf("institution program breakdown: %w", err)
	}
	return rows, nil
}
