package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type hallBlockRepository interface {
	ListByHall(ctx context.Context, hallID string, date *time.Time) ([]models.HallBlock, error)
	Create(ctx context.Context, tx *sqlx.Tx, block *models.HallBlock) error
	Delete(ctx context.Context, id string) error
}

type blockTxRepository interface {
	Begin(ctx context.Context) (*sqlx.Tx, error)
	LockHallDay(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time) error
}

// CreateBlockRequest reserves a hall slot for administrative use.
type CreateBlockRequest struct {
	HallID    string `json:"hall_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Reason    string `json:"reason"`
}

// HallBlockService manages administrative hall blocks.
type HallBlockService struct {
	repo      hallBlockRepository
	tx        blockTxRepository
	halls     trainingHallRepository
	guard     bookingGuard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHallBlockService instantiates HallBlockService.
func NewHallBlockService(repo hallBlockRepository, tx blockTxRepository, halls trainingHallRepository, guard bookingGuard, validate *validator.Validate, logger *zap.Logger) *HallBlockService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HallBlockService{repo: repo, tx: tx, halls: halls, guard: guard, validator: validate, logger: logger}
}

// ListByHall returns blocks for a hall, optionally on a single date.
func (s *HallBlockService) ListByHall(ctx context.Context, hallID string, date string) ([]models.HallBlock, error) {
	var day *time.Time
	if date != "" {
		d, err := schedule.ParseDay(date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
		}
		day = &d
	}

	blocks, err := s.repo.ListByHall(ctx, hallID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hall blocks")
	}
	return blocks, nil
}

// Create reserves a slot, rejecting it when a scheduled training or
// another block already occupies the window. The guard and insert run
// behind the hall/day advisory lock.
func (s *HallBlockService) Create(ctx context.Context, actor *models.JWTClaims, req CreateBlockRequest) (*models.HallBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
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

	reason := req.Reason
	if reason == "" {
		reason = models.DefaultBlockReason
	}
	block := models.HallBlock{
		HallID:    req.HallID,
		Date:      day,
		StartTime: window.Start,
		EndTime:   window.End,
		Reason:    reason,
		CreatedBy: actor.UserID,
	}

	tx, err := s.tx.Begin(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start block creation")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.tx.LockHallDay(ctx, tx, req.HallID, day); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock hall slot")
	}

	conflict, err := s.guard.CheckBookingConflict(ctx, tx, req.HallID, day, window, "")
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, bookingConflictError(conflict)
	}

	if err := s.repo.Create(ctx, tx, &block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create hall block")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit hall block")
	}
	return &block, nil
}

// Delete releases a block.
func (s *HallBlockService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "hall block not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete hall block")
	}
	return nil
}
