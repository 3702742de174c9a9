package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
	"github.com/dhtms/tms-api/pkg/response"
)

type analyticsService interface {
	Dashboard(ctx context.Context, actor *models.JWTClaims) (*models.DashboardStats, bool, error)
	Training(ctx context.Context, actor *models.JWTClaims, trainingID string) (*models.TrainingAnalytics, error)
	Institution(ctx context.Context, actor *models.JWTClaims, institutionID string) (*models.InstitutionReport, error)
}

// AnalyticsHandler exposes dashboard and report endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Dashboard godoc
// @Summary Landing-page training statistics
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	start := time.Now()
	stats, cacheHit, err := h.analytics.Dashboard(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, stats, nil, meta)
}

// Training godoc
// @Summary Nomination and attendance breakdown for one training
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Router /analytics/trainings/{id} [get]
func (h *AnalyticsHandler) Training(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	analytics, err := h.analytics.Training(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// Institution godoc
// @Summary Training coverage report for one institution
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /analytics/institutions/{id} [get]
func (h *AnalyticsHandler) Institution(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	report, err := h.analytics.Institution(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
