package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/service"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/response"
)

type hallBlockService interface {
	ListByHall(ctx context.Context, hallID string, date string) ([]models.HallBlock, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateBlockRequest) (*models.HallBlock, error)
	Delete(ctx context.Context, id string) error
}

// HallBlockHandler exposes administrative hall block endpoints.
type HallBlockHandler struct {
	blocks  hallBlockService
	metrics *service.MetricsService
}

// NewHallBlockHandler constructs HallBlockHandler.
func NewHallBlockHandler(blocks hallBlockService, metrics *service.MetricsService) *HallBlockHandler {
	return &HallBlockHandler{blocks: blocks, metrics: metrics}
}

// ListByHall godoc
// @Summary List blocks for a hall
// @Tags HallBlocks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /halls/{id}/blocks [get]
func (h *HallBlockHandler) ListByHall(c *gin.Context) {
	blocks, err := h.blocks.ListByHall(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// Create godoc
// @Summary Block a hall slot for administrative use
// @Tags HallBlocks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateBlockRequest true "Block payload"
// @Success 201 {object} response.Envelope
// @Router /hall-blocks [post]
func (h *HallBlockHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	block, err := h.blocks.Create(c.Request.Context(), claims, req)
	if err != nil {
		var conflictErr *models.BookingConflictError
		if errors.As(err, &conflictErr) {
			h.metrics.RecordBookingConflict(conflictErr.Conflict.Type)
			response.ErrorWithMeta(c, err, map[string]interface{}{"conflict": conflictErr.Conflict})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// Delete godoc
// @Summary Release a hall block
// @Tags HallBlocks
// @Security BearerAuth
// @Param id path string true "Block ID"
// @Success 204
// @Router /hall-blocks/{id} [delete]
func (h *HallBlockHandler) Delete(c *gin.Context) {
	if err := h.blocks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
