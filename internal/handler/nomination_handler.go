package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/service"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/response"
)

type nominationService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.NominationFilter) ([]models.NominationDetail, error)
	Nominate(ctx context.Context, actor *models.JWTClaims, req service.NominateRequest) (*models.Nomination, error)
	Decide(ctx context.Context, actor *models.JWTClaims, id string, req service.DecideNominationRequest) (*models.Nomination, error)
	ListBusyParticipants(ctx context.Context, date string, excludeTrainingID string) ([]string, error)
	IsParticipantBusy(ctx context.Context, participantID, trainingID string) (bool, error)
}

// NominationHandler exposes nomination endpoints.
type NominationHandler struct {
	nominations nominationService
}

// NewNominationHandler constructs NominationHandler.
func NewNominationHandler(nominations nominationService) *NominationHandler {
	return &NominationHandler{nominations: nominations}
}

// List godoc
// @Summary List nominations visible to the caller
// @Tags Nominations
// @Produce json
// @Security BearerAuth
// @Param training_id query string false "Filter by training"
// @Param institution_id query string false "Filter by institution"
// @Success 200 {object} response.Envelope
// @Router /nominations [get]
func (h *NominationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.NominationFilter{
		TrainingID:    c.Query("training_id"),
		InstitutionID: c.Query("institution_id"),
	}
	nominations, err := h.nominations.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nominations, nil)
}

// Create godoc
// @Summary Nominate a participant for a training
// @Tags Nominations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.NominateRequest true "Nomination payload"
// @Success 201 {object} response.Envelope
// @Router /nominations [post]
func (h *NominationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.NominateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	nomination, err := h.nominations.Nominate(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, nomination)
}

// Decide godoc
// @Summary Approve or reject a nomination
// @Tags Nominations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Nomination ID"
// @Param payload body service.DecideNominationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /nominations/{id}/decision [put]
func (h *NominationHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DecideNominationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	nomination, err := h.nominations.Decide(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nomination, nil)
}

// BusyParticipants godoc
// @Summary List participants already committed on a date
// @Tags Nominations
// @Produce json
// @Security BearerAuth
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param exclude_training_id query string false "Training to exclude"
// @Success 200 {object} response.Envelope
// @Router /nominations/busy-participants [get]
func (h *NominationHandler) BusyParticipants(c *gin.Context) {
	ids, err := h.nominations.ListBusyParticipants(c.Request.Context(), c.Query("date"), c.Query("exclude_training_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"participant_ids": ids}, nil)
}

// CheckBusy godoc
// @Summary Check whether a participant is committed elsewhere
// @Tags Nominations
// @Produce json
// @Security BearerAuth
// @Param participant_id query string true "Participant ID"
// @Param training_id query string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /nominations/check-busy [get]
func (h *NominationHandler) CheckBusy(c *gin.Context) {
	participantID := c.Query("participant_id")
	trainingID := c.Query("training_id")
	if participantID == "" || trainingID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "participant_id and training_id are required"))
		return
	}
	busy, err := h.nominations.IsParticipantBusy(c.Request.Context(), participantID, trainingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"busy": busy}, nil)
}
