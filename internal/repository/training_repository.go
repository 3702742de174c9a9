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

// TrainingRepository provides persistence for trainings.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository creates a new training repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// Begin opens a transaction for the booking conflict guard.
func (r *TrainingRepository) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	return tx, nil
}

// LockHallDay takes a transaction-scoped advisory lock keyed on the
// hall and calendar day, serializing concurrent bookings for the same
// hall/date so the check-then-insert sequence cannot race.
func (r *TrainingRepository) LockHallDay(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time) error {
	key := fmt.Sprintf("%s|%s", hallID, schedule.Day(date).Format("2006-01-02"))
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock hall day: %w", err)
	}
	return nil
}

func (r *TrainingRepository) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

const trainingColumns = `t.id, t.title, t.description, t.program, t.date, t.start_min, t.end_min, t.hall_id, t.capacity, t.trainer_id, t.target_audience, t.created_by_id, t.status, t.certificates_generated, t.created_at, t.updated_at`

// List returns trainings matching the filter, ordered by date.
func (r *TrainingRepository) List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, error) {
	query := `SELECT ` + trainingColumns + `, u.name AS created_by_name FROM trainings t JOIN users u ON u.id = t.created_by_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CreatedByID != "" {
		conditions = append(conditions, fmt.Sprintf("t.created_by_id = $%d", len(args)+1))
		args = append(args, filter.CreatedByID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.InstitutionID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM training_institutions ti WHERE ti.training_id = t.id AND ti.institution_id = $%d)", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.ParticipantID != "" {
		statuses := models.ActiveNominationStatuses()
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		args = append(args, filter.ParticipantID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM nominations n WHERE n.training_id = t.id AND n.participant_id = $%d AND n.status IN (%s))", len(args), strings.Join(placeholders, ", ")))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("t.date >= $%d", len(args)+1))
		args = append(args, schedule.Day(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("t.date <= $%d", len(args)+1))
		args = append(args, schedule.Day(*filter.To))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.date ASC, t.start_min ASC"

	var trainings []models.Training
	if err := r.db.SelectContext(ctx, &trainings, query, args...); err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	return trainings, nil
}

// FindByID loads a training with its required institutions.
func (r *TrainingRepository) FindByID(ctx context.Context, id string) (*models.Training, error) {
	query := `SELECT ` + trainingColumns + `, u.name AS created_by_name FROM trainings t JOIN users u ON u.id = t.created_by_id WHERE t.id = $1`
	var training models.Training
	if err := r.db.GetContext(ctx, &training, query, id); err != nil {
		return nil, err
	}

	institutions, err := r.listInstitutions(ctx, id)
	if err != nil {
		return nil, err
	}
	training.RequiredInstitutions = institutions
	return &training, nil
}

func (r *TrainingRepository) listInstitutions(ctx context.Context, trainingID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT institution_id FROM training_institutions WHERE training_id = $1`, trainingID); err != nil {
		return nil, fmt.Errorf("list training institutions: %w", err)
	}
	return ids, nil
}

// FindOverlapping returns one training for the hall whose half-open
// window intersects the given one on the same UTC day, restricted to
// the provided statuses and excluding excludeID. Returns nil when
// there is no overlap. Runs inside tx when non-nil.
func (r *TrainingRepository) FindOverlapping(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window, statuses []models.TrainingStatus, excludeID string) (*models.Training, error) {
	query := `SELECT ` + trainingColumns + `, u.name AS created_by_name FROM trainings t JOIN users u ON u.id = t.created_by_id
		WHERE t.hall_id = ? AND t.date = ? AND t.start_min < ? AND t.end_min > ? AND t.status IN (?)`
	args := []interface{}{hallID, schedule.Day(date), int(w.End), int(w.Start), statuses}
	if excludeID != "" {
		query += ` AND t.id <> ?`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build overlap query: %w", err)
	}
	q := r.ext(tx)
	query = q.Rebind(query)

	var training models.Training
	if err := sqlx.GetContext(ctx, q, &training, query, inArgs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find overlapping training: %w", err)
	}
	return &training, nil
}

// ListHallIDsOverlapping returns the distinct halls occupied by a
// training overlapping the window on the given day.
func (r *TrainingRepository) ListHallIDsOverlapping(ctx context.Context, date time.Time, w schedule.Window, statuses []models.TrainingStatus) ([]string, error) {
	query, args, err := sqlx.In(
		`SELECT DISTINCT hall_id FROM trainings WHERE date = ? AND start_min < ? AND end_min > ? AND status IN (?)`,
		schedule.Day(date), int(w.End), int(w.Start), statuses,
	)
	if err != nil {
		return nil, fmt.Errorf("build occupied halls query: %w", err)
	}
	query = r.db.Rebind(query)

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list occupied halls: %w", err)
	}
	return ids, nil
}

// ListIDsOverlappingOnDate returns ids of non-cancelled trainings on
// the day whose window intersects the given one, excluding excludeID.
// Used for participant double-booking checks across halls.
func (r *TrainingRepository) ListIDsOverlappingOnDate(ctx context.Context, date time.Time, w schedule.Window, excludeID string) ([]string, error) {
	query := `SELECT id FROM trainings WHERE date = $1 AND start_min < $2 AND end_min > $3 AND status <> 'cancelled'`
	args := []interface{}{schedule.Day(date), int(w.End), int(w.Start)}
	if excludeID != "" {
		query += ` AND id <> $4`
		args = append(args, excludeID)
	}

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping trainings: %w", err)
	}
	return ids, nil
}

// Create stores a new training record. Runs inside tx when non-nil.
func (r *TrainingRepository) Create(ctx context.Context, tx *sqlx.Tx, training *models.Training) error {
	if training.ID == "" {
		training.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if training.CreatedAt.IsZero() {
		training.CreatedAt = now
	}
	training.UpdatedAt = now
	training.Date = schedule.Day(training.Date)

	const query = `INSERT INTO trainings (id, title, description, program, date, start_min, end_min, hall_id, capacity, trainer_id, target_audience, created_by_id, status, certificates_generated, created_at, updated_at)
		VALUES (:id, :title, :description, :program, :date, :start_min, :end_min, :hall_id, :capacity, :trainer_id, :target_audience, :created_by_id, :status, :certificates_generated, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(tx), query, training); err != nil {
		return fmt.Errorf("create training: %w", err)
	}
	return r.replaceInstitutions(ctx, r.ext(tx), training.ID, training.RequiredInstitutions)
}

// Update modifies a training record. Runs inside tx when non-nil.
func (r *TrainingRepository) Update(ctx context.Context, tx *sqlx.Tx, training *models.Training) error {
	training.UpdatedAt = time.Now().UTC()
	training.Date = schedule.Day(training.Date)

	const query = `UPDATE trainings SET title = :title, description = :description, program = :program, date = :date, start_min = :start_min, end_min = :end_min, hall_id = :hall_id, capacity = :capacity, trainer_id = :trainer_id, target_audience = :target_audience, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(tx), query, training); err != nil {
		return fmt.Errorf("update training: %w", err)
	}
	return r.replaceInstitutions(ctx, r.ext(tx), training.ID, training.RequiredInstitutions)
}

func (r *TrainingRepository) replaceInstitutions(ctx context.Context, q sqlx.ExtContext, trainingID string, institutionIDs []string) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM training_institutions WHERE training_id = ?`), trainingID); err != nil {
		return fmt.Errorf("clear training institutions: %w", err)
	}
	for _, instID := range institutionIDs {
		if _, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO training_institutions (training_id, institution_id) VALUES (?, ?)`), trainingID, instID); err != nil {
			return fmt.Errorf("add training institution: %w", err)
		}
	}
	return nil
}

// UpdateStatus changes only the lifecycle status.
func (r *TrainingRepository) UpdateStatus(ctx context.Context, id string, status models.TrainingStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE trainings SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update training status: %w", err)
	}
	return nil
}

// SetCertificatesGenerated marks certificates as issued.
func (r *TrainingRepository) SetCertificatesGenerated(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE trainings SET certificates_generated = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark certificates generated: %w", err)
	}
	return nil
}

// Delete removes a training by id.
func (r *TrainingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trainings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
