package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type availabilityHallRepository interface {
	ListWithAvailability(ctx context.Context) ([]models.Hall, error)
	FindByID(ctx context.Context, id string) (*models.Hall, error)
}

type availabilityTrainingRepository interface {
	ListHallIDsOverlapping(ctx context.Context, date time.Time, w schedule.Window, statuses []models.TrainingStatus) ([]string, error)
	FindOverlapping(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window, statuses []models.TrainingStatus, excludeID string) (*models.Training, error)
}

type availabilityBlockRepository interface {
	ListHallIDsOverlapping(ctx context.Context, date time.Time, w schedule.Window) ([]string, error)
	FindOverlapping(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window) (*models.HallBlock, error)
}

// AvailabilityService resolves whether halls are usable for a date and
// time window. It owns no state: every call reads the current store.
type AvailabilityService struct {
	halls     availabilityHallRepository
	trainings availabilityTrainingRepository
	blocks    availabilityBlockRepository
	logger    *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(halls availabilityHallRepository, trainings availabilityTrainingRepository, blocks availabilityBlockRepository, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{halls: halls, trainings: trainings, blocks: blocks, logger: logger}
}

// openingPolicy is a hall's opening-hours rule: unrestricted when the
// hall defines no slots, otherwise restricted to its whitelist.
type openingPolicy struct {
	slots []models.AvailabilitySlot
}

func policyFor(hall models.Hall) openingPolicy {
	return openingPolicy{slots: hall.Availability}
}

func (p openingPolicy) unrestricted() bool {
	return len(p.slots) == 0
}

// openAt reports whether the window is fully contained in at least one
// slot matching the day. A window straddling two adjacent slots is
// closed.
func (p openingPolicy) openAt(day time.Time, w schedule.Window) bool {
	if p.unrestricted() {
		return true
	}
	for _, slot := range p.slots {
		if slot.MatchesDate(day) && slot.Window().Contains(w) {
			return true
		}
	}
	return false
}

// ListAvailableHalls returns every hall that is not occupied by a
// conflicting training or block and is open per its whitelist, sorted
// by display name.
func (s *AvailabilityService) ListAvailableHalls(ctx context.Context, date time.Time, w schedule.Window) ([]models.Hall, error) {
	if err := w.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time window")
	}

	occupied, err := s.occupiedHallIDs(ctx, date, w)
	if err != nil {
		return nil, err
	}

	halls, err := s.halls.ListWithAvailability(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list halls")
	}

	available := make([]models.Hall, 0, len(halls))
	for _, hall := range halls {
		if _, taken := occupied[hall.ID]; taken {
			continue
		}
		if !policyFor(hall).openAt(date, w) {
			continue
		}
		available = append(available, hall)
	}
	return available, nil
}

func (s *AvailabilityService) occupiedHallIDs(ctx context.Context, date time.Time, w schedule.Window) (map[string]struct{}, error) {
	byTraining, err := s.trainings.ListHallIDsOverlapping(ctx, date, w, models.OccupyingStatuses())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find occupied halls")
	}
	byBlock, err := s.blocks.ListHallIDsOverlapping(ctx, date, w)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find blocked halls")
	}

	occupied := make(map[string]struct{}, len(byTraining)+len(byBlock))
	for _, id := range byTraining {
		occupied[id] = struct{}{}
	}
	for _, id := range byBlock {
		occupied[id] = struct{}{}
	}
	return occupied, nil
}

// ExplainHallAvailability reports whether a hall is usable and, when
// it is not, the single highest-priority reason: block, then
// training, then closed opening hours.
func (s *AvailabilityService) ExplainHallAvailability(ctx context.Context, hallID string, date time.Time, w schedule.Window) (*models.HallAvailabilityResult, error) {
	if err := w.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time window")
	}

	hall, err := s.halls.FindByID(ctx, hallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}

	block, err := s.blocks.FindOverlapping(ctx, nil, hallID, date, w)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hall blocks")
	}
	if block != nil {
		reason := block.Reason
		if reason == "" {
			reason = models.DefaultBlockReason
		}
		return &models.HallAvailabilityResult{IsAvailable: false, Type: models.ConflictTypeBlock, Reason: reason}, nil
	}

	training, err := s.trainings.FindOverlapping(ctx, nil, hallID, date, w, models.OccupyingStatuses(), "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check trainings")
	}
	if training != nil {
		return &models.HallAvailabilityResult{
			IsAvailable: false,
			Type:        models.ConflictTypeTraining,
			Reason:      fmt.Sprintf("Booked for training: %s", training.Title),
			BookedBy:    training.CreatedByName,
		}, nil
	}

	if !policyFor(*hall).openAt(date, w) {
		return &models.HallAvailabilityResult{IsAvailable: false, Type: models.ConflictTypeClosed, Reason: "Hall is closed at this time"}, nil
	}

	return &models.HallAvailabilityResult{IsAvailable: true}, nil
}

// IsHallAvailable answers the boolean form of the explain query.
func (s *AvailabilityService) IsHallAvailable(ctx context.Context, hallID string, date time.Time, w schedule.Window) (bool, error) {
	result, err := s.ExplainHallAvailability(ctx, hallID, date, w)
	if err != nil {
		return false, err
	}
	return result.IsAvailable, nil
}

// CheckBookingConflict is the write-path guard shared by training and
// block creation. It re-reads the current store (inside tx when given)
// and returns the conflicting record, or nil when the slot is free.
// Draft and cancelled trainings never block; an existing training
// being rescheduled excludes itself via excludeTrainingID.
func (s *AvailabilityService) CheckBookingConflict(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time, w schedule.Window, excludeTrainingID string) (*models.BookingConflict, error) {
	if err := w.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time window")
	}

	training, err := s.trainings.FindOverlapping(ctx, tx, hallID, date, w, models.BookingGuardStatuses(), excludeTrainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check training conflicts")
	}
	if training != nil {
		return &models.BookingConflict{
			Type:       models.ConflictTypeTraining,
			TrainingID: training.ID,
			HallID:     training.HallID,
			Date:       training.Date,
			StartTime:  training.StartTime,
			EndTime:    training.EndTime,
			Title:      training.Title,
		}, nil
	}

	block, err := s.blocks.FindOverlapping(ctx, tx, hallID, date, w)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check block conflicts")
	}
	if block != nil {
		return &models.BookingConflict{
			Type:      models.ConflictTypeBlock,
			BlockID:   block.ID,
			HallID:    block.HallID,
			Date:      block.Date,
			StartTime: block.StartTime,
			EndTime:   block.EndTime,
			Reason:    block.Reason,
		}, nil
	}

	return nil, nil
}
