package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
)

// HallBlockRepository provides persistence for administrative hall
// blocks.
type HallBlockRepository struct {
	db *sqlx.DB
}

// NewHallBlockRepository creates a new hall block repository.
func NewHallBlockRepository(db *sqlx.DB) *HallBlockRepository {
	return &HallBlockRepository{db: db}
}

func (r *HallBlockRepository) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

// FindOverlapping returns one block for the hall whose window
// intersects the given one on the same UTC day, or nil. Runs inside
// tx when non-nil.
func (r *HallBlockRepository) FindOverlapping(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window) (*models.HallBlock, error) {
	const query = `SELECT id, hall_id, date, start_min, end_min, reason, created_by, created_at FROM hall_blocks
		WHERE hall_id = $1 AND date = $2 AND start_min < $3 AND end_min > $4 LIMIT 1`

	q := r.ext(tx)
	var block models.HallBlock
	if err := sqlx.GetContext(ctx, q, &block, q.Rebind(query), hallID, schedule.Day(date), int(w.End), int(w.Start)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find overlapping block: %w", err)
	}
	return &block, nil
}

// ListHallIDsOverlapping returns the distinct halls blocked during
// the window on the given day. Blocks have no status, so every block
// counts.
func (r *HallBlockRepository) ListHallIDsOverlapping(ctx context.Context, date time.Time, w schedule.Window) ([]string, error) {
	const query = `SELECT DISTINCT hall_id FROM hall_blocks WHERE date = $1 AND start_min < $2 AND end_min > $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, schedule.Day(date), int(w.End), int(w.Start)); err != nil {
		return nil, fmt.Errorf("list blocked halls: %w", err)
	}
	return ids, nil
}

// ListByHall returns a hall's blocks ordered by start time, optionally
// restricted to one day.
func (r *HallBlockRepository) ListByHall(ctx context.Context, hallID string, date *time.Time) ([]models.HallBlock, error) {
	query := `SELECT id, hall_id, date, start_min, end_min, reason, created_by, created_at FROM hall_blocks WHERE hall_id = $1`
	args := []interface{}{hallID}
	if date != nil {
		query += ` AND date = $2`
		args = append(args, schedule.Day(*date))
	}
	query += ` ORDER BY date ASC, start_min ASC`

	var blocks []models.HallBlock
	if err := r.db.SelectContext(ctx, &blocks, query, args...); err != nil {
		return nil, fmt.Errorf("list hall blocks: %w", err)
	}
	return blocks, nil
}

// Create stores a new block. Runs inside tx when non-nil.
func (r *HallBlockRepository) Create(ctx context.Context, tx *sqlx.Tx, block *models.HallBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	if block.Reason == "" {
		block.Reason = models.DefaultBlockReason
	}
	block.Date = schedule.Day(block.Date)

	const query = `INSERT INTO hall_blocks (id, hall_id, date, start_min, end_min, reason, created_by, created_at)
		VALUES (:id, :hall_id, :date, :start_min, :end_min, :reason, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(tx), query, block); err != nil {
		return fmt.Errorf("create hall block: %w", err)
	}
	return nil
}

// Delete removes a block by id.
func (r *HallBlockRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hall_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete hall block: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
