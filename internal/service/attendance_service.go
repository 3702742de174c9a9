package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, attendance *models.Attendance) error
	Exists(ctx context.Context, trainingID, participantID string) (bool, error)
	ListByTraining(ctx context.Context, trainingID string) ([]models.Attendance, error)
}

type attendanceTrainingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Training, error)
}

type attendanceNominationRepository interface {
	FindActive(ctx context.Context, trainingID, participantID string) (*models.Nomination, error)
	MarkAttended(ctx context.Context, trainingID, participantID string) error
}

// MarkAttendanceRequest manually marks a participant present.
type MarkAttendanceRequest struct {
	TrainingID    string `json:"training_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// ScanRequest checks a participant in against a live QR session.
type ScanRequest struct {
	TrainingID string `json:"training_id" validate:"required"`
	Token      string `json:"token" validate:"required"`
}

// AttendanceService records training attendance. Live QR check-in
// sessions are held in redis with a TTL so a stale token cannot be
// replayed after the session ends.
type AttendanceService struct {
	repo        attendanceRepository
	trainings   attendanceTrainingRepository
	nominations attendanceNominationRepository
	redis       *redis.Client
	sessionTTL  time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, trainings attendanceTrainingRepository, nominations attendanceNominationRepository, redisClient *redis.Client, sessionTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	return &AttendanceService{
		repo:        repo,
		trainings:   trainings,
		nominations: nominations,
		redis:       redisClient,
		sessionTTL:  sessionTTL,
		validator:   validate,
		logger:      logger,
	}
}

func sessionKey(trainingID string) string {
	return fmt.Sprintf("attendance:session:%s", trainingID)
}

// StartSession opens a QR check-in session for an ongoing training and
// returns the token participants must scan.
func (s *AttendanceService) StartSession(ctx context.Context, actor *models.JWTClaims, trainingID string) (*models.AttendanceSession, error) {
	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if training.Status != models.TrainingOngoing && training.Status != models.TrainingScheduled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance can only be taken for scheduled or ongoing trainings")
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return nil, err
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session token")
	}

	now := time.Now().UTC()
	session := models.AttendanceSession{
		TrainingID: trainingID,
		Token:      base64.RawURLEncoding.EncodeToString(buf),
		StartedBy:  actor.UserID,
		StartedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode session")
	}
	if err := s.redis.Set(ctx, sessionKey(trainingID), payload, s.sessionTTL).Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session")
	}
	return &session, nil
}

// StopSession closes the QR session for a training.
func (s *AttendanceService) StopSession(ctx context.Context, actor *models.JWTClaims, trainingID string) error {
	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return err
	}
	if err := s.redis.Del(ctx, sessionKey(trainingID)).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close session")
	}
	return nil
}

// Scan checks the participant in against the live session token.
func (s *AttendanceService) Scan(ctx context.Context, actor *models.JWTClaims, req ScanRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scan payload")
	}

	raw, err := s.redis.Get(ctx, sessionKey(req.TrainingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active attendance session for this training")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	var session models.AttendanceSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode session")
	}
	if session.Token != req.Token {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid attendance token")
	}

	return s.mark(ctx, req.TrainingID, actor.UserID, models.AttendanceMethodQR, actor.UserID)
}

// Mark manually records a participant's presence.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	training, err := s.loadTraining(ctx, req.TrainingID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return nil, err
	}

	return s.mark(ctx, req.TrainingID, req.ParticipantID, models.AttendanceMethodManual, actor.UserID)
}

// ListByTraining returns the attendance records for a training.
func (s *AttendanceService) ListByTraining(ctx context.Context, trainingID string) ([]models.Attendance, error) {
	records, err := s.repo.ListByTraining(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

func (s *AttendanceService) mark(ctx context.Context, trainingID, participantID, method, markedBy string) (*models.Attendance, error) {
	nomination, err := s.nominations.FindActive(ctx, trainingID, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nomination")
	}
	if nomination == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "participant is not nominated for this training")
	}

	exists, err := s.repo.Exists(ctx, trainingID, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance is already recorded")
	}

	attendance := models.Attendance{
		TrainingID:    trainingID,
		ParticipantID: participantID,
		Method:        method,
		MarkedBy:      markedBy,
	}
	if err := s.repo.Create(ctx, &attendance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if err := s.nominations.MarkAttended(ctx, trainingID, participantID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to flip nomination to attended",
			zap.String("training_id", trainingID), zap.String("participant_id", participantID), zap.Error(err))
	}
	return &attendance, nil
}

func (s *AttendanceService) loadTraining(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.trainings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}
