package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockAnalyticsRepo struct {
	lastCreatedByID string
	dashboardCalls  int

	totalTrainings     int
	upcomingTrainings  int
	completedTrainings int
	participants       int
	pool               int
	attended           int
	trained            int

	trainingNominated int
	trainingApproved  int
	trainingAttended  int
	byInstitution     []models.InstitutionNominationRow

	staffTotal   int
	staffTrained int
	byProgram    []models.ProgramRow
}

func (m *mockAnalyticsRepo) TrainingCounts(ctx context.Context, createdByID string, today time.Time) (int, int, int, error) {
	m.lastCreatedByID = createdByID
	m.dashboardCalls++
	return m.totalTrainings, m.upcomingTrainings, m.completedTrainings, nil
}

func (m *mockAnalyticsRepo) ParticipantCount(ctx context.Context) (int, error) {
	return m.participants, nil
}

func (m *mockAnalyticsRepo) NominationOutcomes(ctx context.Context, createdByID string) (int, int, int, error) {
	return m.pool, m.attended, m.trained, nil
}

func (m *mockAnalyticsRepo) TrainingOutcomes(ctx context.Context, trainingID string) (int, int, int, error) {
	return m.trainingNominated, m.trainingApproved, m.trainingAttended, nil
}

func (m *mockAnalyticsRepo) TrainingInstitutionBreakdown(ctx context.Context, trainingID string) ([]models.InstitutionNominationRow, error) {
	return m.byInstitution, nil
}

func (m *mockAnalyticsRepo) InstitutionStaffCounts(ctx context.Context, institutionID string) (int, int, error) {
	return m.staffTotal, m.staffTrained, nil
}

func (m *mockAnalyticsRepo) InstitutionProgramBreakdown(ctx context.Context, institutionID string) ([]models.ProgramRow, error) {
	return m.byProgram, nil
}

type mockTrainingFinder struct {
	trainings map[string]*models.Training
}

func (m *mockTrainingFinder) FindByID(ctx context.Context, id string) (*models.Training, error) {
	if t, ok := m.trainings[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockInstitutionFinder struct {
	institutions map[string]*models.Institution
}

func (m *mockInstitutionFinder) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if i, ok := m.institutions[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newAnalyticsService(repo *mockAnalyticsRepo, trainings *mockTrainingFinder, institutions *mockInstitutionFinder) *AnalyticsService {
	return NewAnalyticsService(AnalyticsServiceParams{
		Repo:         repo,
		Trainings:    trainings,
		Institutions: institutions,
	})
}

func TestDashboardComposesDistrictStats(t *testing.T) {
	repo := &mockAnalyticsRepo{
		totalTrainings:     12,
		upcomingTrainings:  3,
		completedTrainings: 7,
		participants:       40,
		pool:               9,
		attended:           7,
		trained:            25,
	}
	svc := newAnalyticsService(repo, nil, nil)

	stats, cacheHit, err := svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleMasterAdmin})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Empty(t, repo.lastCreatedByID)
	assert.Equal(t, 12, stats.TotalTrainings)
	assert.Equal(t, 3, stats.UpcomingTrainings)
	assert.Equal(t, 7, stats.CompletedTrainings)
	assert.Equal(t, 78, stats.AttendanceRate)
	assert.Equal(t, 25, stats.TrainedStaff)
	assert.Equal(t, 15, stats.UntrainedStaff)
}

func TestDashboardScopesProgramOfficer(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc := newAnalyticsService(repo, nil, nil)

	_, _, err := svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "po-1", Role: models.RoleProgramOfficer})
	require.NoError(t, err)
	assert.Equal(t, "po-1", repo.lastCreatedByID)
}

func TestDashboardRecomputesWithoutCache(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc := newAnalyticsService(repo, nil, nil)
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleMasterAdmin}

	_, hit, err := svc.Dashboard(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.Dashboard(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.dashboardCalls)
}

func TestDashboardZeroPoolHasZeroRate(t *testing.T) {
	repo := &mockAnalyticsRepo{participants: 10}
	svc := newAnalyticsService(repo, nil, nil)

	stats, _, err := svc.Dashboard(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleMasterAdmin})
	require.NoError(t, err)
	assert.Zero(t, stats.AttendanceRate)
	assert.Equal(t, 10, stats.UntrainedStaff)
}

func TestTrainingAnalyticsComposed(t *testing.T) {
	repo := &mockAnalyticsRepo{
		trainingNominated: 20,
		trainingApproved:  15,
		trainingAttended:  12,
		byInstitution: []models.InstitutionNominationRow{
			{InstitutionID: "inst-1", InstitutionName: "PHC North", Nominated: 20, Approved: 15, Attended: 12},
		},
	}
	trainings := &mockTrainingFinder{trainings: map[string]*models.Training{
		"t1": {ID: "t1", Title: "Cold Chain Handling", CreatedByID: "po-1"},
	}}
	svc := newAnalyticsService(repo, trainings, nil)

	analytics, err := svc.Training(context.Background(), &models.JWTClaims{UserID: "po-1", Role: models.RoleProgramOfficer}, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Cold Chain Handling", analytics.TrainingTitle)
	assert.Equal(t, 20, analytics.TotalNominated)
	assert.Equal(t, 80, analytics.AttendanceRate)
	require.Len(t, analytics.ByInstitution, 1)
	assert.Equal(t, "PHC North", analytics.ByInstitution[0].InstitutionName)
}

func TestTrainingAnalyticsForeignOfficerForbidden(t *testing.T) {
	trainings := &mockTrainingFinder{trainings: map[string]*models.Training{
		"t1": {ID: "t1", CreatedByID: "po-1"},
	}}
	svc := newAnalyticsService(&mockAnalyticsRepo{}, trainings, nil)

	_, err := svc.Training(context.Background(), &models.JWTClaims{UserID: "po-2", Role: models.RoleProgramOfficer}, "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTrainingAnalyticsUnknownTraining(t *testing.T) {
	svc := newAnalyticsService(&mockAnalyticsRepo{}, &mockTrainingFinder{trainings: map[string]*models.Training{}}, nil)

	_, err := svc.Training(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleMasterAdmin}, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInstitutionReportComposed(t *testing.T) {
	repo := &mockAnalyticsRepo{
		staffTotal:   30,
		staffTrained: 18,
		byProgram: []models.ProgramRow{
			{Program: "immunisation", Trainings: 4, Participants: 16},
		},
	}
	institutions := &mockInstitutionFinder{institutions: map[string]*models.Institution{
		"inst-1": {ID: "inst-1", Name: "PHC North"},
	}}
	svc := newAnalyticsService(repo, nil, institutions)

	report, err := svc.Institution(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleMasterAdmin}, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "PHC North", report.InstitutionName)
	assert.Equal(t, 30, report.TotalStaff)
	assert.Equal(t, 12, report.UntrainedStaff)
	require.Len(t, report.ByProgram, 1)
	assert.Equal(t, 4, report.ByProgram[0].Trainings)
}

func TestInstitutionReportForeignInstitutionForbidden(t *testing.T) {
	other := "inst-2"
	svc := newAnalyticsService(&mockAnalyticsRepo{}, nil, &mockInstitutionFinder{})

	_, err := svc.Institution(context.Background(), &models.JWTClaims{UserID: "ia-1", Role: models.RoleInstitutionalAdmin, InstitutionID: &other}, "inst-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
