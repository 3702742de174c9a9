package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockCertTrainings struct {
	trainings map[string]*models.Training
	flagged   []string
}

func (m *mockCertTrainings) FindByID(ctx context.Context, id string) (*models.Training, error) {
	if t, ok := m.trainings[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertTrainings) SetCertificatesGenerated(ctx context.Context, id string) error {
	m.flagged = append(m.flagged, id)
	m.trainings[id].CertificatesGenerated = true
	return nil
}

type mockCertNominations struct {
	attended []models.NominationDetail
}

func (m *mockCertNominations) ListAttended(ctx context.Context, trainingID string) ([]models.NominationDetail, error) {
	var out []models.NominationDetail
	for _, n := range m.attended {
		if n.TrainingID == trainingID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockCertNominations) FindActive(ctx context.Context, trainingID, participantID string) (*models.Nomination, error) {
	for _, n := range m.attended {
		if n.TrainingID == trainingID && n.ParticipantID == participantID {
			cp := n.Nomination
			return &cp, nil
		}
	}
	return nil, nil
}

func newCertificateFixture(status models.TrainingStatus) (*CertificateService, *mockCertTrainings, *capturedNotifier) {
	t1 := training("t1", "h1", "2026-08-20", "09:00", "17:00", status)
	t1.CreatedByID = "po-1"
	trainings := &mockCertTrainings{trainings: map[string]*models.Training{"t1": &t1}}
	nominations := &mockCertNominations{attended: []models.NominationDetail{
		{
			Nomination:      models.Nomination{ID: "n1", TrainingID: "t1", ParticipantID: "p1", Status: models.NominationAttended},
			ParticipantName: "Asha Verma",
		},
		{
			Nomination:      models.Nomination{ID: "n2", TrainingID: "t1", ParticipantID: "p2", Status: models.NominationAttended},
			ParticipantName: "Ravi Kumar",
		},
	}}
	notifier := &capturedNotifier{}
	svc := NewCertificateService(trainings, nominations, nil, notifier, "District Health Administration", nil)
	return svc, trainings, notifier
}

func TestGenerateCertificates(t *testing.T) {
	svc, trainings, notifier := newCertificateFixture(models.TrainingCompleted)

	count, err := svc.Generate(context.Background(), officerActor("po-1"), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"t1"}, trainings.flagged)
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "Certificate available", notifier.sent[0].Title)

	// second run is rejected
	_, err = svc.Generate(context.Background(), officerActor("po-1"), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestGenerateRequiresCompletedTraining(t *testing.T) {
	svc, _, _ := newCertificateFixture(models.TrainingOngoing)

	_, err := svc.Generate(context.Background(), officerActor("po-1"), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestGenerateForbiddenForNonOwner(t *testing.T) {
	svc, _, _ := newCertificateFixture(models.TrainingCompleted)

	_, err := svc.Generate(context.Background(), officerActor("po-2"), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestRenderCertificatePDF(t *testing.T) {
	svc, trainings, _ := newCertificateFixture(models.TrainingCompleted)
	trainings.trainings["t1"].CertificatesGenerated = true

	pdf, err := svc.Render(context.Background(), officerActor("po-1"), "t1", "p1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderRequiresGeneration(t *testing.T) {
	svc, _, _ := newCertificateFixture(models.TrainingCompleted)

	_, err := svc.Render(context.Background(), officerActor("po-1"), "t1", "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestRenderParticipantOwnOnly(t *testing.T) {
	svc, trainings, _ := newCertificateFixture(models.TrainingCompleted)
	trainings.trainings["t1"].CertificatesGenerated = true

	actor := &models.JWTClaims{UserID: "p1", Role: models.RoleParticipant}
	_, err := svc.Render(context.Background(), actor, "t1", "p2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)

	pdf, err := svc.Render(context.Background(), actor, "t1", "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}

func TestRenderRequiresAttendance(t *testing.T) {
	svc, trainings, _ := newCertificateFixture(models.TrainingCompleted)
	trainings.trainings["t1"].CertificatesGenerated = true

	_, err := svc.Render(context.Background(), adminActor(), "t1", "p9")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}
