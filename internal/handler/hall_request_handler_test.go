package handler

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/dhtms/tms-api/pkg/response"
)

type hallRequestServiceMock struct {
	listResp   []models.HallBookingRequestDetail
	listErr    error
	createResp *models.HallBookingRequest
	createErr  error
	decideResp *models.HallBookingRequest
	decideErr  error
	lastStatus string
	lastID     string
}

func (m *hallRequestServiceMock) List(ctx context.Context, status string) ([]models.HallBookingRequestDetail, error) {
	m.lastStatus = status
	return m.listResp, m.listErr
}

func (m *hallRequestServiceMock) Create(ctx context.Context, actor *models.JWTClaims, req service.CreateHallRequestRequest) (*models.HallBookingRequest, error) {
	return m.createResp, m.createErr
}

func (m *hallRequestServiceMock) Decide(ctx context.Context, actor *models.JWTClaims, id string, req service.DecideHallRequestRequest) (*models.HallBookingRequest, error) {
	m.lastID = id
	return m.decideResp, m.decideErr
}

func TestHallRequestHandlerListFiltersStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &hallRequestServiceMock{
		listResp: []models.HallBookingRequestDetail{{HallBookingRequest: models.HallBookingRequest{ID: "hr1"}}},
	}
	handler := NewHallRequestHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/hall-requests?status=pending", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", mockSvc.lastStatus)
}

func TestHallRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &hallRequestServiceMock{
		createResp: &models.HallBookingRequest{ID: "hr1", Status: models.HallRequestPending},
	}
	handler := NewHallRequestHandler(mockSvc)

	body, _ := json.Marshal(map[string]string{"training_id": "t1", "hall_id": "h1"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/hall-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, officerClaims())

	handler.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHallRequestHandlerDecideConflictMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conflict := models.BookingConflict{Type: models.ConflictTypeTraining, TrainingID: "t9", HallID: "h1"}
	mockSvc := &hallRequestServiceMock{
		decideErr: appErrors.Wrap(&models.BookingConflictError{
			Message:  "Hall is already booked for this time slot.",
			Conflict: conflict,
		}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "Hall is already booked for this time slot."),
	}
	handler := NewHallRequestHandler(mockSvc)

	body, _ := json.Marshal(map[string]string{"status": "approved"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/hall-requests/hr1/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "hr1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleMasterAdmin})

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	raw, err := json.Marshal(envelope.Meta["conflict"])
	require.NoError(t, err)
	var got models.BookingConflict
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "t9", got.TrainingID)
}

func TestHallRequestHandlerDecideUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHallRequestHandler(&hallRequestServiceMock{})

	body, _ := json.Marshal(map[string]string{"status": "approved"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/hall-requests/hr1/decision", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Decide(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
