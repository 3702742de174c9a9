package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type nominationRepository interface {
	Create(ctx context.Context, nomination *models.Nomination) error
	FindByID(ctx context.Context, id string) (*models.Nomination, error)
	FindActive(ctx context.Context, trainingID, participantID string) (*models.Nomination, error)
	FindActiveForTrainings(ctx context.Context, participantID string, trainingIDs []string) (*models.Nomination, error)
	List(ctx context.Context, filter models.NominationFilter) ([]models.NominationDetail, error)
	ListBusyParticipantIDs(ctx context.Context, date time.Time, excludeTrainingID string) ([]string, error)
	UpdateStatus(ctx context.Context, id string, status models.NominationStatus, approvedBy *string, rejectionReason *string) error
}

type nominationTrainingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Training, error)
	ListIDsOverlappingOnDate(ctx context.Context, date time.Time, w schedule.Window, excludeID string) ([]string, error)
}

type nominationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type notificationPublisher interface {
	Publish(ctx context.Context, notification models.Notification)
}

// NominateRequest nominates a participant for a training.
type NominateRequest struct {
	TrainingID    string `json:"training_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// DecideNominationRequest applies an approval decision.
type DecideNominationRequest struct {
	Status          string `json:"status" validate:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejection_reason"`
}

// NominationService manages participant nominations.
type NominationService struct {
	repo      nominationRepository
	trainings nominationTrainingRepository
	users     nominationUserRepository
	notifier  notificationPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNominationService instantiates NominationService.
func NewNominationService(repo nominationRepository, trainings nominationTrainingRepository, users nominationUserRepository, notifier notificationPublisher, validate *validator.Validate, logger *zap.Logger) *NominationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NominationService{repo: repo, trainings: trainings, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Nominate registers a participant for a training after duplicate and
// double-booking checks.
func (s *NominationService) Nominate(ctx context.Context, actor *models.JWTClaims, req NominateRequest) (*models.Nomination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid nomination payload")
	}

	training, err := s.trainings.FindByID(ctx, req.TrainingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	if training.Status == models.TrainingCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot nominate for a cancelled training")
	}

	participant, err := s.users.FindByID(ctx, req.ParticipantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	if participant.Role != models.RoleParticipant {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nominated user is not a participant")
	}
	if participant.InstitutionID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "participant has no institution")
	}
	if actor.Role == models.RoleInstitutionalAdmin && (actor.InstitutionID == nil || *actor.InstitutionID != *participant.InstitutionID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "participant belongs to another institution")
	}

	existing, err := s.repo.FindActive(ctx, req.TrainingID, req.ParticipantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing nomination")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "participant is already nominated for this training")
	}

	busy, conflicting, err := s.participantBusy(ctx, req.ParticipantID, training)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("participant is already committed to another training at this time (nomination %s)", conflicting.ID))
	}

	nomination := models.Nomination{
		TrainingID:    req.TrainingID,
		ParticipantID: req.ParticipantID,
		InstitutionID: *participant.InstitutionID,
		Status:        models.NominationNominated,
		NominatedBy:   actor.UserID,
	}
	if err := s.repo.Create(ctx, &nomination); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create nomination")
	}

	s.notify(ctx, req.ParticipantID, "New training nomination",
		fmt.Sprintf("You have been nominated for %q on %s.", training.Title, training.Date.Format("2006-01-02")),
		models.NotificationInfo, training.ID)

	return &nomination, nil
}

// List returns nominations visible to the actor.
func (s *NominationService) List(ctx context.Context, actor *models.JWTClaims, filter models.NominationFilter) ([]models.NominationDetail, error) {
	switch actor.Role {
	case models.RoleProgramOfficer:
		filter.TrainingCreatedByID = actor.UserID
	case models.RoleInstitutionalAdmin:
		if actor.InstitutionID == nil {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account has no institution")
		}
		filter.InstitutionID = *actor.InstitutionID
	case models.RoleParticipant:
		filter.ParticipantID = actor.UserID
	}

	nominations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list nominations")
	}
	return nominations, nil
}

// Decide approves or rejects a nomination.
func (s *NominationService) Decide(ctx context.Context, actor *models.JWTClaims, id string, req DecideNominationRequest) (*models.Nomination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	nomination, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "nomination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load nomination")
	}
	if nomination.Status != models.NominationNominated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nomination has already been decided")
	}

	training, err := s.trainings.FindByID(ctx, nomination.TrainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	if actor.Role != models.RoleMasterAdmin && training.CreatedByID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to decide this nomination")
	}

	status := models.NominationStatus(req.Status)
	var reason *string
	switch status {
	case models.NominationApproved:
		nomination.ApprovedBy = &actor.UserID
	case models.NominationRejected:
		if req.RejectionReason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires a reason")
		}
		reason = &req.RejectionReason
		nomination.RejectionReason = reason
	}

	if err := s.repo.UpdateStatus(ctx, id, status, nomination.ApprovedBy, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "nomination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update nomination")
	}
	nomination.Status = status

	title := "Nomination approved"
	message := fmt.Sprintf("Your nomination for %q has been approved.", training.Title)
	notifType := models.NotificationSuccess
	if status == models.NominationRejected {
		title = "Nomination rejected"
		message = fmt.Sprintf("Your nomination for %q has been rejected: %s", training.Title, req.RejectionReason)
		notifType = models.NotificationWarning
	}
	s.notify(ctx, nomination.ParticipantID, title, message, notifType, training.ID)

	return nomination, nil
}

// IsParticipantBusy reports whether the participant already holds an
// active nomination overlapping the training's slot.
func (s *NominationService) IsParticipantBusy(ctx context.Context, participantID, trainingID string) (bool, error) {
	training, err := s.trainings.FindByID(ctx, trainingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	busy, _, err := s.participantBusy(ctx, participantID, training)
	return busy, err
}

// ListBusyParticipants returns the ids of participants committed to
// any non-cancelled training on the given date, excluding
// excludeTrainingID.
func (s *NominationService) ListBusyParticipants(ctx context.Context, date string, excludeTrainingID string) ([]string, error) {
	day, err := schedule.ParseDay(date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	ids, err := s.repo.ListBusyParticipantIDs(ctx, day, excludeTrainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list busy participants")
	}
	return ids, nil
}

func (s *NominationService) participantBusy(ctx context.Context, participantID string, training *models.Training) (bool, *models.Nomination, error) {
	overlapping, err := s.trainings.ListIDsOverlappingOnDate(ctx, training.Date, training.Window(), training.ID)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find overlapping trainings")
	}
	conflicting, err := s.repo.FindActiveForTrainings(ctx, participantID, overlapping)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participant schedule")
	}
	return conflicting != nil, conflicting, nil
}

func (s *NominationService) notify(ctx context.Context, userID, title, message, notifType, relatedID string) {
	if s.notifier == nil {
		return
	}
	related := relatedID
	s.notifier.Publish(ctx, models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		RelatedID: &related,
	})
}
