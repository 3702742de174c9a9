package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type trainingRepository interface {
	List(ctx context.Context, filter models.TrainingFilter) ([]models.Training, error)
	FindByID(ctx context.Context, id string) (*models.Training, error)
	Begin(ctx context.Context) (*sqlx.Tx, error)
	LockHallDay(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time) error
	Create(ctx context.Context, tx *sqlx.Tx, training *models.Training) error
	Update(ctx context.Context, tx *sqlx.Tx, training *models.Training) error
	UpdateStatus(ctx context.Context, id string, status models.TrainingStatus) error
	SetCertificatesGenerated(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type trainingHallRepository interface {
	FindByID(ctx context.Context, id string) (*models.Hall, error)
}

type bookingGuard interface {
	CheckBookingConflict(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window, excludeTrainingID string) (*models.BookingConflict, error)
}

type trainingNominationRepository interface {
	List(ctx context.Context, filter models.NominationFilter) ([]models.NominationDetail, error)
}

// CreateTrainingRequest describes payload for creating a training.
type CreateTrainingRequest struct {
	Title                string   `json:"title" validate:"required"`
	Description          string   `json:"description" validate:"required"`
	Program              string   `json:"program" validate:"required"`
	Date                 string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime            string   `json:"start_time" validate:"required"`
	EndTime              string   `json:"end_time" validate:"required"`
	HallID               string   `json:"hall_id" validate:"required"`
	Capacity             int      `json:"capacity" validate:"required,gt=0"`
	TrainerID            string   `json:"trainer_id" validate:"required"`
	TargetAudience       string   `json:"target_audience"`
	RequiredInstitutions []string `json:"required_institutions"`
	Status               string   `json:"status"`
}

// UpdateTrainingRequest updates an existing training.
type UpdateTrainingRequest struct {
	Title                string   `json:"title" validate:"required"`
	Description          string   `json:"description" validate:"required"`
	Program              string   `json:"program" validate:"required"`
	Date                 string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime            string   `json:"start_time" validate:"required"`
	EndTime              string   `json:"end_time" validate:"required"`
	HallID               string   `json:"hall_id" validate:"required"`
	Capacity             int      `json:"capacity" validate:"required,gt=0"`
	TargetAudience       string   `json:"target_audience"`
	RequiredInstitutions []string `json:"required_institutions"`
	Status               string   `json:"status" validate:"required"`
}

// TrainingListItem decorates a training with the requesting
// participant's own nomination status.
type TrainingListItem struct {
	models.Training
	UserStatus *models.NominationStatus `json:"user_status,omitempty"`
}

// TrainingService coordinates training lifecycle and hall booking.
type TrainingService struct {
	repo        trainingRepository
	halls       trainingHallRepository
	guard       bookingGuard
	nominations trainingNominationRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTrainingService instantiates TrainingService.
func NewTrainingService(repo trainingRepository, halls trainingHallRepository, guard bookingGuard, nominations trainingNominationRepository, validate *validator.Validate, logger *zap.Logger) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{repo: repo, halls: halls, guard: guard, nominations: nominations, validator: validate, logger: logger}
}

// List returns trainings visible to the actor. Program officers see
// only their own; participants see only trainings they are nominated
// to, decorated with their nomination status.
func (s *TrainingService) List(ctx context.Context, actor *models.JWTClaims, filter models.TrainingFilter) ([]TrainingListItem, error) {
	switch actor.Role {
	case models.RoleProgramOfficer:
		filter.CreatedByID = actor.UserID
	case models.RoleParticipant:
		filter.ParticipantID = actor.UserID
	}

	trainings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trainings")
	}

	items := make([]TrainingListItem, 0, len(trainings))
	var statusByTraining map[string]models.NominationStatus
	if actor.Role == models.RoleParticipant {
		nominations, err := s.nominations.List(ctx, models.NominationFilter{ParticipantID: actor.UserID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load nomination statuses")
		}
		statusByTraining = make(map[string]models.NominationStatus, len(nominations))
		for _, n := range nominations {
			statusByTraining[n.TrainingID] = n.Status
		}
	}

	for _, t := range trainings {
		item := TrainingListItem{Training: t}
		if statusByTraining != nil {
			if status, ok := statusByTraining[t.ID]; ok {
				st := status
				item.UserStatus = &st
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Get loads a training, enforcing program-officer ownership.
func (s *TrainingService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Training, error) {
	training, err := s.findTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleProgramOfficer && training.CreatedByID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to view this training")
	}
	return training, nil
}

// Create inserts a new training. Non-draft bookings run the hall
// conflict guard and the insert inside one transaction.
func (s *TrainingService) Create(ctx context.Context, actor *models.JWTClaims, req CreateTrainingRequest) (*models.Training, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}

	status := models.TrainingStatus(req.Status)
	if req.Status == "" {
		status = models.TrainingScheduled
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown training status %q", req.Status))
	}

	day, window, err := parseDayWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.halls.FindByID(ctx, req.HallID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}

	training := models.Training{
		Title:                req.Title,
		Description:          req.Description,
		Program:              req.Program,
		Date:                 day,
		StartTime:            window.Start,
		EndTime:              window.End,
		HallID:               req.HallID,
		Capacity:             req.Capacity,
		TrainerID:            req.TrainerID,
		TargetAudience:       req.TargetAudience,
		CreatedByID:          actor.UserID,
		Status:               status,
		RequiredInstitutions: req.RequiredInstitutions,
	}

	if status == models.TrainingDraft {
		if err := s.repo.Create(ctx, nil, &training); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create training")
		}
		return &training, nil
	}

	if err := s.writeGuarded(ctx, training.HallID, day, window, "", func(tx *sqlx.Tx) error {
		return s.repo.Create(ctx, tx, &training)
	}); err != nil {
		return nil, err
	}
	return &training, nil
}

// Update modifies a training, re-running the conflict guard with the
// training's own prior record excluded.
func (s *TrainingService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateTrainingRequest) (*models.Training, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}

	existing, err := s.findTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, existing.CreatedByID); err != nil {
		return nil, err
	}

	status := models.TrainingStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown training status %q", req.Status))
	}

	day, window, err := parseDayWindow(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	updated := models.Training{
		ID:                    existing.ID,
		Title:                 req.Title,
		Description:           req.Description,
		Program:               req.Program,
		Date:                  day,
		StartTime:             window.Start,
		EndTime:               window.End,
		HallID:                req.HallID,
		Capacity:              req.Capacity,
		TrainerID:             existing.TrainerID,
		TargetAudience:        req.TargetAudience,
		CreatedByID:           existing.CreatedByID,
		Status:                status,
		RequiredInstitutions:  req.RequiredInstitutions,
		CertificatesGenerated: existing.CertificatesGenerated,
		CreatedAt:             existing.CreatedAt,
	}

	if status == models.TrainingDraft || status == models.TrainingCancelled {
		if err := s.repo.Update(ctx, nil, &updated); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training")
		}
		return &updated, nil
	}

	if err := s.writeGuarded(ctx, updated.HallID, day, window, existing.ID, func(tx *sqlx.Tx) error {
		return s.repo.Update(ctx, tx, &updated)
	}); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateStatus patches the lifecycle status, re-running the conflict
// guard when the training becomes booking-relevant.
func (s *TrainingService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, rawStatus string) (*models.Training, error) {
	status := models.TrainingStatus(rawStatus)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown training status %q", rawStatus))
	}

	training, err := s.findTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return nil, err
	}

	if status.BlocksBooking() && !training.Status.BlocksBooking() {
		if err := s.writeGuarded(ctx, training.HallID, training.Date, training.Window(), training.ID, func(tx *sqlx.Tx) error {
			training.Status = status
			return s.repo.Update(ctx, tx, training)
		}); err != nil {
			return nil, err
		}
		return training, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update training status")
	}
	training.Status = status
	return training, nil
}

// Delete removes a training.
func (s *TrainingService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	training, err := s.findTraining(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete training")
	}
	return nil
}

// writeGuarded serializes the guard and the write behind a hall/day
// advisory lock so concurrent bookings cannot both pass the check.
func (s *TrainingService) writeGuarded(ctx context.Context, hallID string, day time.Time, window schedule.Window, excludeID string, write func(tx *sqlx.Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start booking")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.repo.LockHallDay(ctx, tx, hallID, day); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock hall slot")
	}

	conflict, err := s.guard.CheckBookingConflict(ctx, tx, hallID, day, window, excludeID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return bookingConflictError(conflict)
	}

	if err := write(tx); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save training")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
	}
	return nil
}

func (s *TrainingService) findTraining(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}

func requireOwnerOrAdmin(actor *models.JWTClaims, ownerID string) error {
	if actor.Role == models.RoleMasterAdmin || actor.UserID == ownerID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized to modify this training")
}

func parseDayWindow(date, start, end string) (time.Time, schedule.Window, error) {
	day, err := schedule.ParseDay(date)
	if err != nil {
		return time.Time{}, schedule.Window{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	window, err := schedule.NewWindow(start, end)
	if err != nil {
		return time.Time{}, schedule.Window{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time window")
	}
	return day, window, nil
}

func bookingConflictError(conflict *models.BookingConflict) error {
	message := "Hall is already booked for this time slot."
	if conflict.Type == models.ConflictTypeBlock {
		message = "This hall slot is blocked by admin and cannot be booked."
	}
	domainErr := &models.BookingConflictError{Message: message, Conflict: *conflict}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}
