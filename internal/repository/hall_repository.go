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

// HallRepository provides persistence for halls and their
// opening-hours slots.
type HallRepository struct {
	db *sqlx.DB
}

// NewHallRepository creates a new hall repository.
func NewHallRepository(db *sqlx.DB) *HallRepository {
	return &HallRepository{db: db}
}

// List returns all halls sorted by display name, case-insensitive.
func (r *HallRepository) List(ctx context.Context) ([]models.Hall, error) {
	const query = `SELECT id, name, location, capacity, created_at FROM halls ORDER BY lower(name) ASC`
	var halls []models.Hall
	if err := r.db.SelectContext(ctx, &halls, query); err != nil {
		return nil, fmt.Errorf("list halls: %w", err)
	}
	return halls, nil
}

// ListWithAvailability returns all halls with their slots attached,
// sorted by display name.
func (r *HallRepository) ListWithAvailability(ctx context.Context) ([]models.Hall, error) {
	halls, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	const slotQuery = `SELECT id, hall_id, day_of_week, specific_date, start_min, end_min, created_at FROM hall_availability ORDER BY day_of_week ASC NULLS LAST, start_min ASC`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, slotQuery); err != nil {
		return nil, fmt.Errorf("list hall availability: %w", err)
	}

	byHall := make(map[string][]models.AvailabilitySlot, len(halls))
	for _, slot := range slots {
		byHall[slot.HallID] = append(byHall[slot.HallID], slot)
	}
	for i := range halls {
		halls[i].Availability = byHall[halls[i].ID]
	}
	return halls, nil
}

// FindByID loads a hall and its slots.
func (r *HallRepository) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	const query = `SELECT id, name, location, capacity, created_at FROM halls WHERE id = $1`
	var hall models.Hall
	if err := r.db.GetContext(ctx, &hall, query, id); err != nil {
		return nil, err
	}

	slots, err := r.ListSlots(ctx, id)
	if err != nil {
		return nil, err
	}
	hall.Availability = slots
	return &hall, nil
}

// Create stores a new hall record.
func (r *HallRepository) Create(ctx context.Context, hall *models.Hall) error {
	if hall.ID == "" {
		hall.ID = uuid.NewString()
	}
	if hall.CreatedAt.IsZero() {
		hall.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO halls (id, name, location, capacity, created_at) VALUES (:id, :name, :location, :capacity, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hall); err != nil {
		return fmt.Errorf("create hall: %w", err)
	}
	return nil
}

// Delete removes a hall by id.
func (r *HallRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM halls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete hall: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSlots returns a hall's opening-hours slots ordered by weekday
// then start time.
func (r *HallRepository) ListSlots(ctx context.Context, hallID string) ([]models.AvailabilitySlot, error) {
	const query = `SELECT id, hall_id, day_of_week, specific_date, start_min, end_min, created_at FROM hall_availability WHERE hall_id = $1 ORDER BY day_of_week ASC NULLS LAST, start_min ASC`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, hallID); err != nil {
		return nil, fmt.Errorf("list availability slots: %w", err)
	}
	return slots, nil
}

// AddSlot stores a new availability slot for a hall.
func (r *HallRepository) AddSlot(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO hall_availability (id, hall_id, day_of_week, specific_date, start_min, end_min, created_at) VALUES (:id, :hall_id, :day_of_week, :specific_date, :start_min, :end_min, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("add availability slot: %w", err)
	}
	return nil
}

// RemoveSlot deletes an availability slot by id.
func (r *HallRepository) RemoveSlot(ctx context.Context, slotID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hall_availability WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("remove availability slot: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
