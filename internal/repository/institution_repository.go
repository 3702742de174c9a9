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

// InstitutionRepository provides persistence for institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository creates a new institution repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// List returns all institutions ordered by name.
func (r *InstitutionRepository) List(ctx context.Context) ([]models.Institution, error) {
	const query = `SELECT id, name, type, address, created_at, updated_at FROM institutions ORDER BY lower(name) ASC`
	var institutions []models.Institution
	if err := r.db.SelectContext(ctx, &institutions, query); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return institutions, nil
}

// FindByID loads an institution by id.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	var institution models.Institution
	if err := r.db.GetContext(ctx, &institution, `SELECT id, name, type, address, created_at, updated_at FROM institutions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &institution, nil
}

// Create stores a new institution record.
func (r *InstitutionRepository) Create(ctx context.Context, institution *models.Institution) error {
	if institution.ID == "" {
		institution.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if institution.CreatedAt.IsZero() {
		institution.CreatedAt = now
	}
	institution.UpdatedAt = now

	const query = `INSERT INTO institutions (id, name, type, address, created_at, updated_at)
		VALUES (:id, :name, :type, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, institution); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// Update modifies an institution record.
func (r *InstitutionRepository) Update(ctx context.Context, institution *models.Institution) error {
	institution.UpdatedAt = time.Now().UTC()
	const query = `UPDATE institutions SET name = :name, type = :type, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, institution); err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	return nil
}

// Delete removes an institution by id.
func (r *InstitutionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM institutions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete institution: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
