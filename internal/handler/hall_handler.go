package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/schedule"
	"github.com/dhtms/tms-api/internal/service"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/response"
)

type hallService interface {
	List(ctx context.Context) ([]models.Hall, error)
	Get(ctx context.Context, id string) (*models.Hall, error)
	Create(ctx context.Context, req service.CreateHallRequest) (*models.Hall, error)
	Delete(ctx context.Context, id string) error
	ListAvailability(ctx context.Context, hallID string) ([]models.AvailabilitySlot, error)
	AddAvailability(ctx context.Context, hallID string, req service.AddAvailabilityRequest) (*models.AvailabilitySlot, error)
	RemoveAvailability(ctx context.Context, slotID string) error
}

type availabilityResolver interface {
	ListAvailableHalls(ctx context.Context, date time.Time, w schedule.Window) ([]models.Hall, error)
	ExplainHallAvailability(ctx context.Context, hallID string, date time.Time, w schedule.Window) (*models.HallAvailabilityResult, error)
}

// HallHandler exposes hall and availability endpoints.
type HallHandler struct {
	halls        hallService
	availability availabilityResolver
	metrics      *service.MetricsService
}

// NewHallHandler constructs HallHandler.
func NewHallHandler(halls hallService, availability availabilityResolver, metrics *service.MetricsService) *HallHandler {
	return &HallHandler{halls: halls, availability: availability, metrics: metrics}
}

// List godoc
// @Summary List halls
// @Tags Halls
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /halls [get]
func (h *HallHandler) List(c *gin.Context) {
	halls, err := h.halls.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, halls, nil)
}

// Get godoc
// @Summary Get hall detail
// @Tags Halls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Success 200 {object} response.Envelope
// @Router /halls/{id} [get]
func (h *HallHandler) Get(c *gin.Context) {
	hall, err := h.halls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hall, nil)
}

// Create godoc
// @Summary Create hall
// @Tags Halls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateHallRequest true "Hall payload"
// @Success 201 {object} response.Envelope
// @Router /halls [post]
func (h *HallHandler) Create(c *gin.Context) {
	var req service.CreateHallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	hall, err := h.halls.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, hall)
}

// Delete godoc
// @Summary Delete hall
// @Tags Halls
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Success 204
// @Router /halls/{id} [delete]
func (h *HallHandler) Delete(c *gin.Context) {
	if err := h.halls.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Available godoc
// @Summary List halls free for a date and time window
// @Tags Halls
// @Produce json
// @Security BearerAuth
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start time (HH:mm)"
// @Param end_time query string true "End time (HH:mm)"
// @Success 200 {object} response.Envelope
// @Router /halls/available [get]
func (h *HallHandler) Available(c *gin.Context) {
	day, window, err := parseDayWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	halls, err := h.availability.ListAvailableHalls(c.Request.Context(), day, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordAvailabilityCheck()
	response.JSON(c, http.StatusOK, halls, nil)
}

// AvailabilityDetails godoc
// @Summary Explain a hall's availability for a date and time window
// @Tags Halls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start time (HH:mm)"
// @Param end_time query string true "End time (HH:mm)"
// @Success 200 {object} response.Envelope
// @Router /halls/{id}/availability-details [get]
func (h *HallHandler) AvailabilityDetails(c *gin.Context) {
	day, window, err := parseDayWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.availability.ExplainHallAvailability(c.Request.Context(), c.Param("id"), day, window)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordAvailabilityCheck()
	response.JSON(c, http.StatusOK, result, nil)
}

// ListSlots godoc
// @Summary List a hall's opening slots
// @Tags Halls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Success 200 {object} response.Envelope
// @Router /halls/{id}/availability [get]
func (h *HallHandler) ListSlots(c *gin.Context) {
	slots, err := h.halls.ListAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// AddSlot godoc
// @Summary Add an opening slot to a hall
// @Tags Halls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Param payload body service.AddAvailabilityRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /halls/{id}/availability [post]
func (h *HallHandler) AddSlot(c *gin.Context) {
	var req service.AddAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.halls.AddAvailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// RemoveSlot godoc
// @Summary Remove an opening slot
// @Tags Halls
// @Security BearerAuth
// @Param id path string true "Hall ID"
// @Param slotId path string true "Slot ID"
// @Success 204
// @Router /halls/{id}/availability/{slotId} [delete]
func (h *HallHandler) RemoveSlot(c *gin.Context) {
	if err := h.halls.RemoveAvailability(c.Request.Context(), c.Param("slotId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseDayWindowQuery(c *gin.Context) (time.Time, schedule.Window, error) {
	day, err := schedule.ParseDay(c.Query("date"))
	if err != nil {
		return time.Time{}, schedule.Window{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date")
	}
	window, err := schedule.NewWindow(c.Query("start_time"), c.Query("end_time"))
	if err != nil {
		return time.Time{}, schedule.Window{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time window")
	}
	return day, window, nil
}
