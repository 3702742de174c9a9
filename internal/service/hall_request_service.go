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
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type hallRequestRepository interface {
	Create(ctx context.Context, request *models.HallBookingRequest) error
	FindByID(ctx context.Context, id string) (*models.HallBookingRequest, error)
	List(ctx context.Context, status *models.HallRequestStatus) ([]models.HallBookingRequestDetail, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.HallRequestStatus) error
}

type hallRequestTrainingRepository interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
	LockHallDay(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time) error
	FindByID(ctx context.Context, id string) (*models.Training, error)
	Update(ctx context.Context, tx *sqlx.Tx, training *models.Training) error
}

// CreateHallRequestRequest asks for a hall to host a training.
type CreateHallRequestRequest struct {
	TrainingID string `json:"training_id" validate:"required"`
	HallID     string `json:"hall_id" validate:"required"`
	Priority   string `json:"priority" validate:"omitempty,oneof=low normal high"`
	Remarks    string `json:"remarks"`
}

// DecideHallRequestRequest applies an admin decision to a request.
type DecideHallRequestRequest struct {
	Status  string `json:"status" validate:"required,oneof=approved rejected"`
	Remarks string `json:"remarks"`
}

// HallRequestService manages the request-then-approve booking flow.
// Approval materialises the booking through the same hall/day guard
// that direct bookings go through, so a request can never sidestep a
// conflict.
type HallRequestService struct {
	repo      hallRequestRepository
	trainings hallRequestTrainingRepository
	halls     trainingHallRepository
	guard     bookingGuard
	notifier  notificationPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHallRequestService instantiates HallRequestService.
func NewHallRequestService(repo hallRequestRepository, trainings hallRequestTrainingRepository, halls trainingHallRepository, guard bookingGuard, notifier notificationPublisher, validate *validator.Validate, logger *zap.Logger) *HallRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HallRequestService{repo: repo, trainings: trainings, halls: halls, guard: guard, notifier: notifier, validator: validate, logger: logger}
}

// List returns requests newest first, optionally filtered by status.
func (s *HallRequestService) List(ctx context.Context, status string) ([]models.HallBookingRequestDetail, error) {
	var filter *models.HallRequestStatus
	if status != "" {
		st := models.HallRequestStatus(status)
		if !st.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request status %q", status))
		}
		filter = &st
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hall requests")
	}
	return requests, nil
}

// Create files a pending request for an existing training and hall.
func (s *HallRequestService) Create(ctx context.Context, actor *models.JWTClaims, req CreateHallRequestRequest) (*models.HallBookingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hall request payload")
	}

	training, err := s.findRequestTraining(ctx, req.TrainingID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleProgramOfficer && training.CreatedByID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only request halls for your own trainings")
	}
	if _, err := s.halls.FindByID(ctx, req.HallID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}

	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}
	request := models.HallBookingRequest{
		TrainingID:  req.TrainingID,
		HallID:      req.HallID,
		RequestedBy: actor.UserID,
		Priority:    priority,
		Remarks:     req.Remarks,
		Status:      models.HallRequestPending,
	}
	if err := s.repo.Create(ctx, &request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create hall request")
	}
	return &request, nil
}

// Decide approves or rejects a pending request. Approval books the
// requested hall for the training behind the hall/day advisory lock,
// re-running the conflict check: a slot taken since the request was
// filed surfaces as a conflict, not a double booking.
func (s *HallRequestService) Decide(ctx context.Context, actor *models.JWTClaims, id string, req DecideHallRequestRequest) (*models.HallBookingRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall request")
	}
	if request.Status != models.HallRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "hall request has already been processed")
	}

	training, err := s.findRequestTraining(ctx, request.TrainingID)
	if err != nil {
		return nil, err
	}

	if models.HallRequestStatus(req.Status) == models.HallRequestRejected {
		if err := s.repo.UpdateStatus(ctx, nil, request.ID, models.HallRequestRejected); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject hall request")
		}
		request.Status = models.HallRequestRejected
		s.notifyRequester(ctx, request, training,
			"Hall request rejected",
			fmt.Sprintf("Your hall request for %q was rejected.", training.Title),
			models.NotificationWarning)
		return request, nil
	}

	if err := s.approve(ctx, request, training); err != nil {
		return nil, err
	}
	request.Status = models.HallRequestApproved
	s.notifyRequester(ctx, request, training,
		"Hall request approved",
		fmt.Sprintf("Your hall request for %q was approved.", training.Title),
		models.NotificationSuccess)
	return request, nil
}

func (s *HallRequestService) approve(ctx context.Context, request *models.HallBookingRequest, training *models.Training) error {
	tx, err := s.trainings.Begin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start approval")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.trainings.LockHallDay(ctx, tx, request.HallID, training.Date); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock hall slot")
	}

	conflict, err := s.guard.CheckBookingConflict(ctx, tx, request.HallID, training.Date, training.Window(), training.ID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return bookingConflictError(conflict)
	}

	training.HallID = request.HallID
	training.Status = models.TrainingScheduled
	if err := s.trainings.Update(ctx, tx, training); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book hall")
	}
	if err := s.repo.UpdateStatus(ctx, tx, request.ID, models.HallRequestApproved); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve hall request")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
	}
	return nil
}

func (s *HallRequestService) findRequestTraining(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.trainings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}

func (s *HallRequestService) notifyRequester(ctx context.Context, request *models.HallBookingRequest, training *models.Training, title, message, notifType string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, models.Notification{
		UserID:    request.RequestedBy,
		Title:     title,
		Message:   message,
		Type:      notifType,
		RelatedID: &training.ID,
	})
}
