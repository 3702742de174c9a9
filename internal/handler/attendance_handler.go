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

type attendanceService interface {
	StartSession(ctx context.Context, actor *models.JWTClaims, trainingID string) (*models.AttendanceSession, error)
	StopSession(ctx context.Context, actor *models.JWTClaims, trainingID string) error
	Scan(ctx context.Context, actor *models.JWTClaims, req service.ScanRequest) (*models.Attendance, error)
	Mark(ctx context.Context, actor *models.JWTClaims, req service.MarkAttendanceRequest) (*models.Attendance, error)
	ListByTraining(ctx context.Context, trainingID string) ([]models.Attendance, error)
}

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// StartSession godoc
// @Summary Open a QR check-in session for a training
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 201 {object} response.Envelope
// @Router /trainings/{id}/attendance/session [post]
func (h *AttendanceHandler) StartSession(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	session, err := h.attendance.StartSession(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// StopSession godoc
// @Summary Close the QR check-in session for a training
// @Tags Attendance
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 204
// @Router /trainings/{id}/attendance/session [delete]
func (h *AttendanceHandler) StopSession(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.attendance.StopSession(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Scan godoc
// @Summary Check in with a scanned QR token
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ScanRequest true "Scan payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Scan(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mark godoc
// @Summary Manually mark a participant present
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListByTraining godoc
// @Summary List attendance records for a training
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /trainings/{id}/attendance [get]
func (h *AttendanceHandler) ListByTraining(c *gin.Context) {
	records, err := h.attendance.ListByTraining(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
