package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type institutionRepository interface {
	List(ctx context.Context) ([]models.Institution, error)
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	Create(ctx context.Context, institution *models.Institution) error
	Update(ctx context.Context, institution *models.Institution) error
	Delete(ctx context.Context, id string) error
}

// InstitutionRequest payload for creating or updating an institution.
type InstitutionRequest struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

// InstitutionService manages the institution registry.
type InstitutionService struct {
	repo      institutionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstitutionService constructs an InstitutionService.
func NewInstitutionService(repo institutionRepository, validate *validator.Validate, logger *zap.Logger) *InstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstitutionService{repo: repo, validator: validate, logger: logger}
}

// List returns all institutions.
func (s *InstitutionService) List(ctx context.Context) ([]models.Institution, error) {
	institutions, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	return institutions, nil
}

// Get loads an institution by id.
func (s *InstitutionService) Get(ctx context.Context, id string) (*models.Institution, error) {
	institution, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	return institution, nil
}

// Create registers a new institution.
func (s *InstitutionService) Create(ctx context.Context, req InstitutionRequest) (*models.Institution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}

	institution := models.Institution{Name: req.Name, Type: req.Type, Address: req.Address}
	if err := s.repo.Create(ctx, &institution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution")
	}
	return &institution, nil
}

// Update modifies an institution.
func (s *InstitutionService) Update(ctx context.Context, id string, req InstitutionRequest) (*models.Institution, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}

	institution, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	institution.Name = req.Name
	institution.Type = req.Type
	institution.Address = req.Address
	if err := s.repo.Update(ctx, institution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution")
	}
	return institution, nil
}

// Delete removes an institution.
func (s *InstitutionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete institution")
	}
	return nil
}
