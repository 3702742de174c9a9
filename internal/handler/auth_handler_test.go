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
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type authServiceMock struct {
	loginResp    *models.LoginResponse
	loginErr     error
	refreshResp  *models.RefreshTokenResponse
	refreshErr   error
	logoutErr    error
	changeErr    error
	registerResp *models.User
	registerErr  error
	lastLogin    models.LoginRequest
	logoutUserID string
	changeCalled bool
	loginCalled  bool
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginCalled = true
	m.lastLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return m.registerResp, m.registerErr
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return m.refreshResp, m.refreshErr
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string, ip, userAgent string) error {
	m.logoutUserID = userID
	return m.logoutErr
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	m.changeCalled = true
	return m.changeErr
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{
		loginResp: &models.LoginResponse{
			AccessToken: "token",
			ExpiresIn:   900,
			User:        models.UserInfo{ID: "u1", Email: "asha@district.gov.in"},
		},
	}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"asha@district.gov.in","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tms-test")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.loginCalled)
	assert.Equal(t, "asha@district.gov.in", mockSvc.lastLogin.Email)
	assert.Equal(t, "tms-test", mockSvc.lastLogin.UserAgent)
}

func TestAuthHandlerLoginInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.loginCalled)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{loginErr: appErrors.ErrInvalidCredentials}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"asha@district.gov.in","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", bytes.NewBufferString(`{"refresh_token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleParticipant})

	handler.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", mockSvc.logoutUserID)
}

func TestAuthHandlerLogoutUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", bytes.NewBufferString(`{"refresh_token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Logout(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/auth/password", bytes.NewBufferString(`{"old_password":"old","new_password":"longer-secret"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleParticipant})

	handler.ChangePassword(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.changeCalled)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID: "u1",
		Email:  "asha@district.gov.in",
		Name:   "Asha Verma",
		Role:   models.RoleProgramOfficer,
	})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "asha@district.gov.in")
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{
		registerResp: &models.User{ID: "registered", Email: "nurse@district.health"},
	}
	handler := NewAuthHandler(mockSvc)

	body, _ := json.Marshal(map[string]string{
		"email":          "nurse@district.health",
		"password":       "s3cret-pass",
		"name":           "Asha Verma",
		"role":           "participant",
		"institution_id": "inst-1",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Register(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}
