package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhtms/tms-api/internal/models"
)

// HallRequestRepository provides persistence for hall booking requests.
type HallRequestRepository struct {
	db *sqlx.DB
}

// NewHallRequestRepository creates a new hall request repository.
func NewHallRequestRepository(db *sqlx.DB) *HallRequestRepository {
	return &HallRequestRepository{db: db}
}

func (r *HallRequestRepository) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

const hallRequestColumns = `id, training_id, hall_id, requested_by, priority, remarks, status, created_at, updated_at`

// Create stores a new pending request.
func (r *HallRequestRepository) Create(ctx context.Context, request *models.HallBookingRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	const query = `INSERT INTO hall_requests (id, training_id, hall_id, requested_by, priority, remarks, status, created_at, updated_at)
		VALUES (:id, :training_id, :hall_id, :requested_by, :priority, :remarks, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create hall request: %w", err)
	}
	return nil
}

// FindByID loads a request by id.
func (r *HallRequestRepository) FindByID(ctx context.Context, id string) (*models.HallBookingRequest, error) {
	var request models.HallBookingRequest
	if err := r.db.GetContext(ctx, &request, `SELECT `+hallRequestColumns+` FROM hall_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests newest first, optionally filtered by status,
// joined with the training, hall and requester display fields.
func (r *HallRequestRepository) List(ctx context.Context, status *models.HallRequestStatus) ([]models.HallBookingRequestDetail, error) {
	query := `SELECT hr.id, hr.training_id, hr.hall_id, hr.requested_by, hr.priority, hr.remarks, hr.status, hr.created_at, hr.updated_at,
		t.title AS training_title, t.date AS training_date,
		h.name AS hall_name,
		u.name AS requester_name, u.email AS requester_email
		FROM hall_requests hr
		JOIN trainings t ON t.id = hr.training_id
		JOIN halls h ON h.id = hr.hall_id
		JOIN users u ON u.id = hr.requested_by`
	var args []interface{}
	if status != nil {
		query += " WHERE hr.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY hr.created_at DESC"

	var requests []models.HallBookingRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list hall requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus moves a request out of pending. Runs inside tx when
// non-nil so an approval commits atomically with the booking it
// materialises.
func (r *HallRequestRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.HallRequestStatus) error {
	q := r.ext(tx)
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE hall_requests SET status = $1, updated_at = $2 WHERE id = $3`), status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update hall request status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
