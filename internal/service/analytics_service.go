package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type analyticsRepository interface {
	TrainingCounts(ctx context.Context, createdByID string, today time.Time) (total, upcoming, completed int, err error)
	ParticipantCount(ctx context.Context) (int, error)
	NominationOutcomes(ctx context.Context, createdByID string) (pool, attended, trained int, err error)
	TrainingOutcomes(ctx context.Context, trainingID string) (nominated, approved, attended int, err error)
	TrainingInstitutionBreakdown(ctx context.Context, trainingID string) ([]models.InstitutionNominationRow, error)
	InstitutionStaffCounts(ctx context.Context, institutionID string) (total, trained int, err error)
	InstitutionProgramBreakdown(ctx context.Context, institutionID string) ([]models.ProgramRow, error)
}

type analyticsTrainingFinder interface {
	FindByID(ctx context.Context, id string) (*models.Training, error)
}

type analyticsInstitutionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
}

// AnalyticsService composes dashboard and report payloads. The district
// dashboard is cached in redis since every role hits it on login.
type AnalyticsService struct {
	repo         analyticsRepository
	trainings    analyticsTrainingFinder
	institutions analyticsInstitutionFinder
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// AnalyticsServiceParams groups constructor dependencies.
type AnalyticsServiceParams struct {
	Repo         analyticsRepository
	Trainings    analyticsTrainingFinder
	Institutions analyticsInstitutionFinder
	Cache        *redis.Client
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService with defaults.
func NewAnalyticsService(params AnalyticsServiceParams) *AnalyticsService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:         params.Repo,
		trainings:    params.Trainings,
		institutions: params.Institutions,
		cache:        params.Cache,
		cacheTTL:     ttl,
		logger:       logger,
		now:          time.Now,
	}
}

// Dashboard returns the landing-page stats and reports cache utilisation.
// Program officers see figures for their own trainings only.
func (s *AnalyticsService) Dashboard(ctx context.Context, actor *models.JWTClaims) (*models.DashboardStats, bool, error) {
	createdByID := ""
	if actor.Role == models.RoleProgramOfficer {
		createdByID = actor.UserID
	}

	cacheKey := fmt.Sprintf("analytics:dashboard:%s", scopeLabel(createdByID))
	if stats, hit := s.tryDashboardCache(ctx, cacheKey); hit {
		return stats, true, nil
	}

	stats, err := s.composeDashboard(ctx, createdByID)
	if err != nil {
		return nil, false, err
	}
	s.persistDashboardCache(ctx, cacheKey, stats)
	return stats, false, nil
}

func (s *AnalyticsService) composeDashboard(ctx context.Context, createdByID string) (*models.DashboardStats, error) {
	total, upcoming, completed, err := s.repo.TrainingCounts(ctx, createdByID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate trainings")
	}
	participants, err := s.repo.ParticipantCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count participants")
	}
	pool, attended, trained, err := s.repo.NominationOutcomes(ctx, createdByID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate nominations")
	}

	untrained := participants - trained
	if untrained < 0 {
		untrained = 0
	}
	return &models.DashboardStats{
		TotalTrainings:     total,
		UpcomingTrainings:  upcoming,
		CompletedTrainings: completed,
		TotalParticipants:  participants,
		AttendanceRate:     percentage(attended, pool),
		TrainedStaff:       trained,
		UntrainedStaff:     untrained,
	}, nil
}

// Training breaks one training down by nomination outcome and
// institution. Program officers may only inspect their own trainings.
func (s *AnalyticsService) Training(ctx context.Context, actor *models.JWTClaims, trainingID string) (*models.TrainingAnalytics, error) {
	training, err := s.trainings.FindByID(ctx, trainingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training")
	}
	if actor.Role == models.RoleProgramOfficer && training.CreatedByID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view analytics for your own trainings")
	}

	nominated, approved, attended, err := s.repo.TrainingOutcomes(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate nominations")
	}
	byInstitution, err := s.repo.TrainingInstitutionBreakdown(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to break down institutions")
	}

	return &models.TrainingAnalytics{
		TrainingID:     training.ID,
		TrainingTitle:  training.Title,
		TotalNominated: nominated,
		TotalApproved:  approved,
		TotalAttended:  attended,
		AttendanceRate: percentage(attended, approved),
		ByInstitution:  byInstitution,
	}, nil
}

// Institution reports training coverage of one institution's staff.
// Institutional admins are restricted to their own institution.
func (s *AnalyticsService) Institution(ctx context.Context, actor *models.JWTClaims, institutionID string) (*models.InstitutionReport, error) {
	if actor.Role == models.RoleInstitutionalAdmin {
		if actor.InstitutionID == nil || *actor.InstitutionID != institutionID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own institution's report")
		}
	}

	institution, err := s.institutions.FindByID(ctx, institutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}

	total, trained, err := s.repo.InstitutionStaffCounts(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count staff")
	}
	byProgram, err := s.repo.InstitutionProgramBreakdown(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to break down programs")
	}

	return &models.InstitutionReport{
		InstitutionID:   institution.ID,
		InstitutionName: institution.Name,
		TotalStaff:      total,
		TrainedStaff:    trained,
		UntrainedStaff:  total - trained,
		ByProgram:       byProgram,
	}, nil
}

func (s *AnalyticsService) tryDashboardCache(ctx context.Context, key string) (*models.DashboardStats, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var stats models.DashboardStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (s *AnalyticsService) persistDashboardCache(ctx context.Context, key string, stats *models.DashboardStats) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
}

func scopeLabel(createdByID string) string {
	if createdByID == "" {
		return "district"
	}
	return createdByID
}

// percentage rounds part/whole to the nearest whole percent.
func percentage(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
