package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/export"
)

type certificateTrainingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Training, error)
	SetCertificatesGenerated(ctx context.Context, id string) error
}

type certificateNominationRepository interface {
	ListAttended(ctx context.Context, trainingID string) ([]models.NominationDetail, error)
	FindActive(ctx context.Context, trainingID, participantID string) (*models.Nomination, error)
}

// CertificateService issues participation certificates for completed
// trainings.
type CertificateService struct {
	trainings   certificateTrainingRepository
	nominations certificateNominationRepository
	renderer    *export.CertificateRenderer
	notifier    notificationPublisher
	issuerName  string
	logger      *zap.Logger
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(trainings certificateTrainingRepository, nominations certificateNominationRepository, renderer *export.CertificateRenderer, notifier notificationPublisher, issuerName string, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = export.NewCertificateRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		trainings:   trainings,
		nominations: nominations,
		renderer:    renderer,
		notifier:    notifier,
		issuerName:  issuerName,
		logger:      logger,
	}
}

// Generate marks certificates as issued for every attended participant
// of a completed training and notifies each of them.
func (s *CertificateService) Generate(ctx context.Context, actor *models.JWTClaims, trainingID string) (int, error) {
	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return 0, err
	}
	if err := requireOwnerOrAdmin(actor, training.CreatedByID); err != nil {
		return 0, err
	}
	if training.Status != models.TrainingCompleted {
		return 0, appErrors.Clone(appErrors.ErrValidation, "certificates require a completed training")
	}
	if training.CertificatesGenerated {
		return 0, appErrors.Clone(appErrors.ErrConflict, "certificates have already been generated")
	}

	attended, err := s.nominations.ListAttended(ctx, trainingID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attended participants")
	}
	if len(attended) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no attended participants to certify")
	}

	if err := s.trainings.SetCertificatesGenerated(ctx, trainingID); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag certificates")
	}

	if s.notifier != nil {
		related := trainingID
		for _, nomination := range attended {
			s.notifier.Publish(ctx, models.Notification{
				UserID:    nomination.ParticipantID,
				Title:     "Certificate available",
				Message:   fmt.Sprintf("Your certificate for %q is ready to download.", training.Title),
				Type:      models.NotificationSuccess,
				RelatedID: &related,
			})
		}
	}
	return len(attended), nil
}

// Render produces the PDF certificate for one participant of a
// training. The participant must have attended and certificates must
// have been generated.
func (s *CertificateService) Render(ctx context.Context, actor *models.JWTClaims, trainingID, participantID string) ([]byte, error) {
	if actor.Role == models.RoleParticipant && actor.UserID != participantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot download another participant's certificate")
	}

	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if !training.CertificatesGenerated {
		return nil, appErrors.Clone(appErrors.ErrValidation, "certificates have not been generated for this training")
	}

	nomination, err := s.nominations.FindActive(ctx, trainingID, participantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load nomination")
	}
	if nomination == nil || nomination.Status != models.NominationAttended {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "participant did not attend this training")
	}

	attended, err := s.nominations.ListAttended(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant details")
	}
	var participantName string
	for _, detail := range attended {
		if detail.ParticipantID == participantID {
			participantName = detail.ParticipantName
			break
		}
	}
	if participantName == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "participant record not found")
	}

	pdf, err := s.renderer.Render(export.Certificate{
		ParticipantName: participantName,
		TrainingTitle:   training.Title,
		Program:         training.Program,
		TrainingDate:    training.Date.Format("02 January 2006"),
		Issuer:          s.issuerName,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return pdf, nil
}

func (s *CertificateService) loadTraining(ctx context.Context, id string) (*models.Training, error) {
	training, err := s.trainings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	return training, nil
}
