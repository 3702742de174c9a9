package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type hallRepository interface {
	List(ctx context.Context) ([]models.Hall, error)
	FindByID(ctx context.Context, id string) (*models.Hall, error)
	Create(ctx context.Context, hall *models.Hall) error
	Delete(ctx context.Context, id string) error
	ListSlots(ctx context.Context, hallID string) ([]models.AvailabilitySlot, error)
	AddSlot(ctx context.Context, slot *models.AvailabilitySlot) error
	RemoveSlot(ctx context.Context, slotID string) error
}

// CreateHallRequest describes payload for creating a hall.
type CreateHallRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

// AddAvailabilityRequest adds one opening-hours slot to a hall.
// Exactly one of DayOfWeek or SpecificDate must be set.
type AddAvailabilityRequest struct {
	DayOfWeek    *int   `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	SpecificDate string `json:"specific_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
}

// HallService coordinates hall management.
type HallService struct {
	repo      hallRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHallService instantiates HallService.
func NewHallService(repo hallRepository, validate *validator.Validate, logger *zap.Logger) *HallService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HallService{repo: repo, validator: validate, logger: logger}
}

// List returns all halls sorted by name.
func (s *HallService) List(ctx context.Context) ([]models.Hall, error) {
	halls, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list halls")
	}
	return halls, nil
}

// Get loads one hall with its availability slots.
func (s *HallService) Get(ctx context.Context, id string) (*models.Hall, error) {
	hall, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}
	return hall, nil
}

// Create inserts a new hall.
func (s *HallService) Create(ctx context.Context, req CreateHallRequest) (*models.Hall, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hall payload")
	}

	hall := models.Hall{Name: req.Name, Location: req.Location, Capacity: req.Capacity}
	if err := s.repo.Create(ctx, &hall); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create hall")
	}
	return &hall, nil
}

// Delete removes a hall.
func (s *HallService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete hall")
	}
	return nil
}

// ListAvailability returns a hall's opening-hours slots.
func (s *HallService) ListAvailability(ctx context.Context, hallID string) ([]models.AvailabilitySlot, error) {
	if _, err := s.Get(ctx, hallID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlots(ctx, hallID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return slots, nil
}

// AddAvailability appends one opening-hours slot to a hall.
func (s *HallService) AddAvailability(ctx context.Context, hallID string, req AddAvailabilityRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if (req.DayOfWeek == nil) == (req.SpecificDate == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of day_of_week or specific_date is required")
	}

	window, err := schedule.NewWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability window")
	}

	if _, err := s.Get(ctx, hallID); err != nil {
		return nil, err
	}

	slot := models.AvailabilitySlot{
		HallID:    hallID,
		DayOfWeek: req.DayOfWeek,
		StartTime: window.Start,
		EndTime:   window.End,
	}
	if req.SpecificDate != "" {
		day, err := schedule.ParseDay(req.SpecificDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid specific date")
		}
		slot.SpecificDate = &day
	}

	if err := s.repo.AddSlot(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add availability")
	}
	return &slot, nil
}

// RemoveAvailability deletes an opening-hours slot.
func (s *HallService) RemoveAvailability(ctx context.Context, slotID string) error {
	if err := s.repo.RemoveSlot(ctx, slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove availability")
	}
	return nil
}
