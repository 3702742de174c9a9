package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockUserStore struct {
	users      map[string]*models.User
	lastFilter models.UserFilter
	created    []*models.User
	updated    []*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]*models.User{}}
}

func (m *mockUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	var out []models.User
	for _, u := range m.users {
		if filter.InstitutionID != "" && (u.InstitutionID == nil || *u.InstitutionID != filter.InstitutionID) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserStore) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = "generated"
	m.created = append(m.created, user)
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStore) Update(ctx context.Context, user *models.User) error {
	m.updated = append(m.updated, user)
	return nil
}

func (m *mockUserStore) Deactivate(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.users[id].Active = false
	return nil
}

func (m *mockUserStore) ListPending(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if !u.Approved {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserStore) Approve(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	m.users[id].Approved = true
	return nil
}

func (m *mockUserStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func validUserRequest() CreateUserRequest {
	return CreateUserRequest{
		Email:         "nurse@district.health",
		Password:      "s3cret-pass",
		Name:          "Asha Verma",
		Role:          "participant",
		InstitutionID: "inst-1",
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	store := newMockUserStore()
	svc := NewUserService(store, nil, nil)

	user, err := svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)
	assert.True(t, user.Active)
	require.NotNil(t, user.InstitutionID)
	assert.Equal(t, "inst-1", *user.InstitutionID)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Email: "nurse@district.health"}
	svc := NewUserService(store, nil, nil)

	_, err := svc.Create(context.Background(), validUserRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Status, appErrors.FromError(err).Status)
}

func TestCreateUserInstitutionRequiredByRole(t *testing.T) {
	svc := NewUserService(newMockUserStore(), nil, nil)

	req := validUserRequest()
	req.InstitutionID = ""
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)

	// officers do not need one
	req.Role = "program_officer"
	_, err = svc.Create(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newMockUserStore(), nil, nil)

	req := validUserRequest()
	req.Role = "superuser"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestListScopesInstitutionalAdmin(t *testing.T) {
	store := newMockUserStore()
	store.users["p1"] = &models.User{ID: "p1", Role: models.RoleParticipant, InstitutionID: strPtr("inst-1")}
	store.users["p2"] = &models.User{ID: "p2", Role: models.RoleParticipant, InstitutionID: strPtr("inst-2")}
	store.users["po"] = &models.User{ID: "po", Role: models.RoleProgramOfficer}
	svc := NewUserService(store, nil, nil)

	actor := &models.JWTClaims{UserID: "ia-1", Role: models.RoleInstitutionalAdmin, InstitutionID: strPtr("inst-1")}
	users, page, err := svc.List(context.Background(), actor, models.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "p1", users[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}

func TestListClampsPagination(t *testing.T) {
	store := newMockUserStore()
	svc := NewUserService(store, nil, nil)

	_, page, err := svc.List(context.Background(), adminActor(), models.UserFilter{Page: -3, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 20, store.lastFilter.PageSize)
}

func TestUpdateUserProfile(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Name: "Old Name", Role: models.RoleParticipant}
	svc := NewUserService(store, nil, nil)

	user, err := svc.Update(context.Background(), "u1", UpdateUserRequest{Name: "New Name", Designation: "ANM"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)
	assert.Equal(t, "ANM", user.Designation)
	require.Len(t, store.updated, 1)
}

func TestDeactivateUser(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := NewUserService(store, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))
	assert.False(t, store.users["u1"].Active)

	err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestCreateUserIsPreApproved(t *testing.T) {
	store := newMockUserStore()
	svc := NewUserService(store, nil, nil)

	user, err := svc.Create(context.Background(), validUserRequest())
	require.NoError(t, err)
	assert.True(t, user.Approved)
}

func TestApprovePendingUser(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Email: "nurse@district.health", Active: true}
	svc := NewUserService(store, nil, nil)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	user, err := svc.Approve(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, user.Approved)

	pending, err = svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveAlreadyApprovedUser(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Active: true, Approved: true}
	svc := NewUserService(store, nil, nil)

	_, err := svc.Approve(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRejectPendingUserDeletesAccount(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Active: true}
	svc := NewUserService(store, nil, nil)

	require.NoError(t, svc.Reject(context.Background(), "u1"))
	_, ok := store.users["u1"]
	assert.False(t, ok)
}

func TestRejectApprovedUserRefused(t *testing.T) {
	store := newMockUserStore()
	store.users["u1"] = &models.User{ID: "u1", Active: true, Approved: true}
	svc := NewUserService(store, nil, nil)

	err := svc.Reject(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	_, ok := store.users["u1"]
	assert.True(t, ok)
}
