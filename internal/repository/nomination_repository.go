package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
)

// NominationRepository provides persistence for nominations.
type NominationRepository struct {
	db *sqlx.DB
}

// NewNominationRepository creates a new nomination repository.
func NewNominationRepository(db *sqlx.DB) *NominationRepository {
	return &NominationRepository{db: db}
}

const nominationColumns = `n.id, n.training_id, n.participant_id, n.institution_id, n.status, n.nominated_by, n.nominated_at, n.approved_by, n.approved_at, n.rejection_reason`

// Create stores a new nomination.
func (r *NominationRepository) Create(ctx context.Context, nomination *models.Nomination) error {
	if nomination.ID == "" {
		nomination.ID = uuid.NewString()
	}
	if nomination.NominatedAt.IsZero() {
		nomination.NominatedAt = time.Now().UTC()
	}
	if nomination.Status == "" {
		nomination.Status = models.NominationNominated
	}

	const query = `INSERT INTO nominations (id, training_id, participant_id, institution_id, status, nominated_by, nominated_at)
		VALUES (:id, :training_id, :participant_id, :institution_id, :status, :nominated_by, :nominated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, nomination); err != nil {
		return fmt.Errorf("create nomination: %w", err)
	}
	return nil
}

// FindByID loads a nomination by id.
func (r *NominationRepository) FindByID(ctx context.Context, id string) (*models.Nomination, error) {
	query := `SELECT ` + nominationColumns + ` FROM nominations n WHERE n.id = $1`
	var nomination models.Nomination
	if err := r.db.GetContext(ctx, &nomination, query, id); err != nil {
		return nil, err
	}
	return &nomination, nil
}

// FindActive returns the participant's active nomination for a
// training, or nil.
func (r *NominationRepository) FindActive(ctx context.Context, trainingID, participantID string) (*models.Nomination, error) {
	query, args, err := sqlx.In(`SELECT `+nominationColumns+` FROM nominations n
		WHERE n.training_id = ? AND n.participant_id = ? AND n.status IN (?) LIMIT 1`,
		trainingID, participantID, models.ActiveNominationStatuses())
	if err != nil {
		return nil, fmt.Errorf("build active nomination query: %w", err)
	}
	query = r.db.Rebind(query)

	var nomination models.Nomination
	if err := r.db.GetContext(ctx, &nomination, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active nomination: %w", err)
	}
	return &nomination, nil
}

// FindActiveForTrainings returns one active nomination the
// participant holds on any of the given trainings, or nil.
func (r *NominationRepository) FindActiveForTrainings(ctx context.Context, participantID string, trainingIDs []string) (*models.Nomination, error) {
	if len(trainingIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+nominationColumns+` FROM nominations n
		WHERE n.participant_id = ? AND n.status IN (?) AND n.training_id IN (?) LIMIT 1`,
		participantID, models.ActiveNominationStatuses(), trainingIDs)
	if err != nil {
		return nil, fmt.Errorf("build conflicting nomination query: %w", err)
	}
	query = r.db.Rebind(query)

	var nomination models.Nomination
	if err := r.db.GetContext(ctx, &nomination, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find conflicting nomination: %w", err)
	}
	return &nomination, nil
}

// List returns nominations with joined display fields.
func (r *NominationRepository) List(ctx context.Context, filter models.NominationFilter) ([]models.NominationDetail, error) {
	query := `SELECT ` + nominationColumns + `,
		u.name AS participant_name, u.email AS participant_email,
		t.title AS training_title, t.date AS training_date,
		i.name AS institution_name
		FROM nominations n
		JOIN users u ON u.id = n.participant_id
		JOIN trainings t ON t.id = n.training_id
		JOIN institutions i ON i.id = n.institution_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TrainingID != "" {
		conditions = append(conditions, fmt.Sprintf("n.training_id = $%d", len(args)+1))
		args = append(args, filter.TrainingID)
	}
	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("n.institution_id = $%d", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.ParticipantID != "" {
		conditions = append(conditions, fmt.Sprintf("n.participant_id = $%d", len(args)+1))
		args = append(args, filter.ParticipantID)
	}
	if filter.TrainingCreatedByID != "" {
		conditions = append(conditions, fmt.Sprintf("t.created_by_id = $%d", len(args)+1))
		args = append(args, filter.TrainingCreatedByID)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY n.nominated_at DESC"

	var nominations []models.NominationDetail
	if err := r.db.SelectContext(ctx, &nominations, query, args...); err != nil {
		return nil, fmt.Errorf("list nominations: %w", err)
	}
	return nominations, nil
}

// ListAttended returns attended nominations for a training with
// participant display fields, for certificate issuance.
func (r *NominationRepository) ListAttended(ctx context.Context, trainingID string) ([]models.NominationDetail, error) {
	query := `SELECT ` + nominationColumns + `,
		u.name AS participant_name, u.email AS participant_email,
		t.title AS training_title, t.date AS training_date,
		i.name AS institution_name
		FROM nominations n
		JOIN users u ON u.id = n.participant_id
		JOIN trainings t ON t.id = n.training_id
		JOIN institutions i ON i.id = n.institution_id
		WHERE n.training_id = $1 AND n.status = 'attended'
		ORDER BY u.name ASC`
	var nominations []models.NominationDetail
	if err := r.db.SelectContext(ctx, &nominations, query, trainingID); err != nil {
		return nil, fmt.Errorf("list attended nominations: %w", err)
	}
	return nominations, nil
}

// ListBusyParticipantIDs returns the participants holding an active
// nomination for any non-cancelled training on the given day,
// excluding excludeTrainingID.
func (r *NominationRepository) ListBusyParticipantIDs(ctx context.Context, date time.Time, excludeTrainingID string) ([]string, error) {
	query := `SELECT DISTINCT n.participant_id FROM nominations n
		JOIN trainings t ON t.id = n.training_id
		WHERE t.date = ? AND t.status <> 'cancelled' AND n.status IN (?)`
	args := []interface{}{schedule.Day(date), models.ActiveNominationStatuses()}
	if excludeTrainingID != "" {
		query += ` AND n.training_id <> ?`
		args = append(args, excludeTrainingID)
	}

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build busy participants query: %w", err)
	}
	query = r.db.Rebind(query)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, inArgs...); err != nil {
		return nil, fmt.Errorf("list busy participants: %w", err)
	}
	return ids, nil
}

// UpdateStatus applies an approval decision.
func (r *NominationRepository) UpdateStatus(ctx context.Context, id string, status models.NominationStatus, approvedBy *string, rejectionReason *string) error {
	var approvedAt *time.Time
	if status == models.NominationApproved {
		now := time.Now().UTC()
		approvedAt = &now
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE nominations SET status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4 WHERE id = $5`,
		status, approvedBy, approvedAt, rejectionReason, id)
	if err != nil {
		return fmt.Errorf("update nomination status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAttended flips the participant's active nomination for the
// training to attended.
func (r *NominationRepository) MarkAttended(ctx context.Context, trainingID, participantID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nominations SET status = 'attended' WHERE training_id = $1 AND participant_id = $2 AND status IN ('nominated', 'approved')`,
		trainingID, participantID)
	if err != nil {
		return fmt.Errorf("mark nomination attended: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
