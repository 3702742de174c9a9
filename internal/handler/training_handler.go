package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	"github.com/dhtms/tms-api/internal/service"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/response"
)

type trainingService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.TrainingFilter) ([]service.TrainingListItem, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Training, error)
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateTrainingRequest) (*models.Training, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdateTrainingRequest) (*models.Training, error)
	UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, status string) (*models.Training, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

type certificateService interface {
	Generate(ctx context.Context, actor *models.JWTClaims, trainingID string) (int, error)
	Render(ctx context.Context, actor *models.JWTClaims, trainingID, participantID string) ([]byte, error)
}

// TrainingHandler exposes training endpoints.
type TrainingHandler struct {
	trainings    trainingService
	certificates certificateService
	metrics      *service.MetricsService
}

// NewTrainingHandler constructs TrainingHandler.
func NewTrainingHandler(trainings trainingService, certificates certificateService, metrics *service.MetricsService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings, certificates: certificates, metrics: metrics}
}

// List godoc
// @Summary List trainings
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.TrainingFilter
	if raw := c.Query("status"); raw != "" {
		status := models.TrainingStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown training status"))
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		day, err := schedule.ParseDay(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid from date"))
			return
		}
		filter.From = &day
	}
	if raw := c.Query("to"); raw != "" {
		day, err := schedule.ParseDay(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid to date"))
			return
		}
		filter.To = &day
	}

	trainings, err := h.trainings.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainings, nil)
}

// Get godoc
// @Summary Get training detail
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	training, err := h.trainings.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Create godoc
// @Summary Create training
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Router /trainings [post]
func (h *TrainingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	training, err := h.trainings.Create(c.Request.Context(), claims, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, training)
}

// Update godoc
// @Summary Update training
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param payload body service.UpdateTrainingRequest true "Training payload"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id} [put]
func (h *TrainingHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	training, err := h.trainings.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// UpdateStatus godoc
// @Summary Patch training status
// @Tags Trainings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param payload body handler.statusPayload true "New status"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/status [patch]
func (h *TrainingHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload statusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	training, err := h.trainings.UpdateStatus(c.Request.Context(), claims, c.Param("id"), payload.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, training, nil)
}

// Delete godoc
// @Summary Delete training
// @Tags Trainings
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 204
// @Router /trainings/{id} [delete]
func (h *TrainingHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.trainings.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GenerateCertificates godoc
// @Summary Generate certificates for attended participants
// @Tags Trainings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/certificates [post]
func (h *TrainingHandler) GenerateCertificates(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, err := h.certificates.Generate(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"certificates_issued": count}, nil)
}

// DownloadCertificate godoc
// @Summary Download a participant's certificate PDF
// @Tags Trainings
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Param participantId path string true "Participant ID"
// @Success 200 {file} binary
// @Router /trainings/{id}/certificates/{participantId} [get]
func (h *TrainingHandler) DownloadCertificate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pdf, err := h.certificates.Render(c.Request.Context(), claims, c.Param("id"), c.Param("participantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificate.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type statusPayload struct {
	Status string `json:"status" binding:"required"`
}

// respondError surfaces booking conflict details in the response meta
// and counts the rejection.
func (h *TrainingHandler) respondError(c *gin.Context, err error) {
	var conflictErr *models.BookingConflictError
	if errors.As(err, &conflictErr) {
		h.metrics.RecordBookingConflict(conflictErr.Conflict.Type)
		response.ErrorWithMeta(c, err, map[string]interface{}{"conflict": conflictErr.Conflict})
		return
	}
	response.Error(c, err)
}
