package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockAuthRepo struct {
	users          map[string]*models.User
	refreshTokens  map[string]*models.RefreshToken
	revokedIDs     []string
	revokedAllFor  []string
	auditLogs      []*models.AuditLog
	passwordHashes map[string]string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:          map[string]*models.User{},
		refreshTokens:  map[string]*models.RefreshToken{},
		passwordHashes: map[string]string{},
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordHashes[id] = passwordHash
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedIDs = append(m.revokedIDs, id)
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "registered"
	m.users[user.ID] = user
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "tms-api-test",
	}
}

func seedAuthUser(t *testing.T, repo *mockAuthRepo, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "u1",
		Email:        "officer@district.health",
		PasswordHash: string(hash),
		Name:         "District Officer",
		Role:         models.RoleProgramOfficer,
		Active:       true,
		Approved:     true,
	}
	repo.users[user.ID] = user
	return user
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.EqualValues(t, 900, resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleProgramOfficer, claims.Role)

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "officer@district.health",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, appErrors.FromError(err).Status)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@district.health",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	user.Active = false
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "hunter22",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginUnapprovedAccount(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	user.Approved = false
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    user.Email,
		Password: "hunter22",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPendingApproval.Code, appErrors.FromError(err).Code)
}

func TestRegisterStartsUnapproved(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:         "nurse@district.health",
		Password:      "s3cret-pass",
		Name:          "Asha Verma",
		Role:          "participant",
		InstitutionID: "inst-1",
	})
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.False(t, user.Approved)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "nurse@district.health",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPendingApproval.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:         user.Email,
		Password:      "s3cret-pass",
		Name:          "Someone Else",
		Role:          "participant",
		InstitutionID: "inst-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "hunter22"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the used token is revoked and cannot be replayed
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo()
	seedAuthUser(t, repo, "hunter22")
	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "hunter22"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, user.ID, "", ""))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "brand-new-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)

	err = svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "hunter22",
		NewPassword: "brand-new-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID}, repo.revokedAllFor)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHashes[user.ID]), []byte("brand-new-pass")))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, nil, testAuthConfig())

	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Minute,
	})
	repo := newMockAuthRepo()
	user := seedAuthUser(t, repo, "hunter22")
	issuer := NewAuthService(repo, nil, nil, testAuthConfig())
	login, err := issuer.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "hunter22"})
	require.NoError(t, err)

	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}
