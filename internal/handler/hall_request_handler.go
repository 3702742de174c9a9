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

type hallRequestService interface {
	List(ctx context.Context, status string) ([]models.HallBookingRequestDetail, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateHallRequestRequest) (*models.HallBookingRequest, error)
	Decide(ctx context.Context, actor *models.JWTClaims, id string, req service.DecideHallRequestRequest) (*models.HallBookingRequest, error)
}

// HallRequestHandler exposes the hall booking request endpoints.
type HallRequestHandler struct {
	requests hallRequestService
}

// NewHallRequestHandler constructs HallRequestHandler.
func NewHallRequestHandler(requests hallRequestService) *HallRequestHandler {
	return &HallRequestHandler{requests: requests}
}

// List godoc
// @Summary List hall booking requests
// @Tags HallRequests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(pending, approved, rejected)
// @Success 200 {object} response.Envelope
// @Router /hall-requests [get]
func (h *HallRequestHandler) List(c *gin.Context) {
	requests, err := h.requests.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Create godoc
// @Summary Request a hall for a training
// @Tags HallRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateHallRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /hall-requests [post]
func (h *HallRequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateHallRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.requests.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Decide godoc
// @Summary Approve or reject a hall booking request
// @Tags HallRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body service.DecideHallRequestRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /hall-requests/{id}/decision [put]
func (h *HallRequestHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DecideHallRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.requests.Decide(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		var conflictErr *models.BookingConflictError
		if errors.As(err, &conflictErr) {
			response.ErrorWithMeta(c, err, map[string]interface{}{"conflict": conflictErr.Conflict})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
