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

type institutionService interface {
	List(ctx context.Context) ([]models.Institution, error)
	Get(ctx context.Context, id string) (*models.Institution, error)
	Create(ctx context.Context, req service.InstitutionRequest) (*models.Institution, error)
	Update(ctx context.Context, id string, req service.InstitutionRequest) (*models.Institution, error)
	Delete(ctx context.Context, id string) error
}

// InstitutionHandler exposes institution registry endpoints.
type InstitutionHandler struct {
	institutions institutionService
}

// NewInstitutionHandler constructs InstitutionHandler.
func NewInstitutionHandler(institutions institutionService) *InstitutionHandler {
	return &InstitutionHandler{institutions: institutions}
}

// List godoc
// @Summary List institutions
// @Tags Institutions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *InstitutionHandler) List(c *gin.Context) {
	institutions, err := h.institutions.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions, nil)
}

// Get godoc
// @Summary Get institution detail
// @Tags Institutions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id} [get]
func (h *InstitutionHandler) Get(c *gin.Context) {
	institution, err := h.institutions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Create godoc
// @Summary Create institution
// @Tags Institutions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.InstitutionRequest true "Institution payload"
// @Success 201 {object} response.Envelope
// @Router /institutions [post]
func (h *InstitutionHandler) Create(c *gin.Context) {
	var req service.InstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	institution, err := h.institutions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, institution)
}

// Update godoc
// @Summary Update institution
// @Tags Institutions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institution ID"
// @Param payload body service.InstitutionRequest true "Institution payload"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id} [put]
func (h *InstitutionHandler) Update(c *gin.Context) {
	var req service.InstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	institution, err := h.institutions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Delete godoc
// @Summary Delete institution
// @Tags Institutions
// @Security BearerAuth
// @Param id path string true "Institution ID"
// @Success 204
// @Router /institutions/{id} [delete]
func (h *InstitutionHandler) Delete(c *gin.Context) {
	if err := h.institutions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
