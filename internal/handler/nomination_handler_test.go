package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhtms/tms-api/internal/middleware"
	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/service"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type nominationServiceMock struct {
	listResp       []models.NominationDetail
	listErr        error
	nominateResp   *models.Nomination
	nominateErr    error
	decideResp     *models.Nomination
	decideErr      error
	busyIDs        []string
	busyErr        error
	busy           bool
	lastFilter     models.NominationFilter
	lastDecision   service.DecideNominationRequest
	nominateCalled bool
	busyCalled     bool
}

func (m *nominationServiceMock) List(ctx context.Context, actor *models.JWTClaims, filter models.NominationFilter) ([]models.NominationDetail, error) {
	m.lastFilter = filter
	return m.listResp, m.listErr
}

func (m *nominationServiceMock) Nominate(ctx context.Context, actor *models.JWTClaims, req service.NominateRequest) (*models.Nomination, error) {
	m.nominateCalled = true
	return m.nominateResp, m.nominateErr
}

func (m *nominationServiceMock) Decide(ctx context.Context, actor *models.JWTClaims, id string, req service.DecideNominationRequest) (*models.Nomination, error) {
	m.lastDecision = req
	return m.decideResp, m.decideErr
}

func (m *nominationServiceMock) ListBusyParticipants(ctx context.Context, date string, excludeTrainingID string) ([]string, error) {
	return m.busyIDs, m.busyErr
}

func (m *nominationServiceMock) IsParticipantBusy(ctx context.Context, participantID, trainingID string) (bool, error) {
	m.busyCalled = true
	return m.busy, nil
}

func instAdminClaims() *models.JWTClaims {
	instID := "inst-1"
	return &models.JWTClaims{UserID: "ia-1", Role: models.RoleInstitutionalAdmin, InstitutionID: &instID}
}

func TestNominationHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{
		listResp: []models.NominationDetail{{Nomination: models.Nomination{ID: "n1"}}},
	}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/nominations?training_id=t1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, instAdminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", mockSvc.lastFilter.TrainingID)
}

func TestNominationHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{
		nominateResp: &models.Nomination{ID: "n1", TrainingID: "t1", ParticipantID: "p1"},
	}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/nominations", bytes.NewBufferString(`{"training_id":"t1","participant_id":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, instAdminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.nominateCalled)
}

func TestNominationHandlerCreateDoubleBooked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{
		nominateErr: appErrors.Clone(appErrors.ErrConflict, "participant is already nominated for an overlapping training"),
	}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/nominations", bytes.NewBufferString(`{"training_id":"t1","participant_id":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, instAdminClaims())

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "overlapping")
}

func TestNominationHandlerDecide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{
		decideResp: &models.Nomination{ID: "n1", Status: models.NominationApproved},
	}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/nominations/n1/decision", bytes.NewBufferString(`{"status":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	c.Set(middleware.ContextUserKey, officerClaims())

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", mockSvc.lastDecision.Status)
}

func TestNominationHandlerBusyParticipants(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{busyIDs: []string{"p1", "p2"}}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/nominations/busy-participants?date=2026-09-07", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, instAdminClaims())

	handler.BusyParticipants(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "p1")
	assert.Contains(t, w.Body.String(), "p2")
}

func TestNominationHandlerCheckBusyMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &nominationServiceMock{}
	handler := NewNominationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/nominations/check-busy?participant_id=p1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, instAdminClaims())

	handler.CheckBusy(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.busyCalled)
}
