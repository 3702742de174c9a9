package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockHallRequestStore struct {
	requests map[string]*models.HallBookingRequest
	created  []*models.HallBookingRequest
	statuses map[string]models.HallRequestStatus
}

func newMockHallRequestStore() *mockHallRequestStore {
	return &mockHallRequestStore{
		requests: map[string]*models.HallBookingRequest{},
		statuses: map[string]models.HallRequestStatus{},
	}
}

func (m *mockHallRequestStore) Create(ctx context.Context, request *models.HallBookingRequest) error {
	request.ID = "generated"
	m.created = append(m.created, request)
	m.requests[request.ID] = request
	return nil
}

func (m *mockHallRequestStore) FindByID(ctx context.Context, id string) (*models.HallBookingRequest, error) {
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHallRequestStore) List(ctx context.Context, status *models.HallRequestStatus) ([]models.HallBookingRequestDetail, error) {
	var out []models.HallBookingRequestDetail
	for _, r := range m.requests {
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, models.HallBookingRequestDetail{HallBookingRequest: *r})
	}
	return out, nil
}

func (m *mockHallRequestStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status models.HallRequestStatus) error {
	if _, ok := m.requests[id]; !ok {
		return sql.ErrNoRows
	}
	m.statuses[id] = status
	m.requests[id].Status = status
	return nil
}

type mockRequestTrainingStore struct {
	db        *sqlx.DB
	trainings map[string]*models.Training
	locked    []string
	updated   []*models.Training
}

func newMockRequestTrainingStore(t *testing.T) (*mockRequestTrainingStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &mockRequestTrainingStore{
		db:        sqlx.NewDb(db, "sqlmock"),
		trainings: map[string]*models.Training{},
	}, mock
}

func (m *mockRequestTrainingStore) Begin(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

func (m *mockRequestTrainingStore) LockHallDay(ctx context.Context, tx *sqlx.Tx, hallID string, date time.Time) error {
	m.locked = append(m.locked, hallID)
	return nil
}

func (m *mockRequestTrainingStore) FindByID(ctx context.Context, id string) (*models.Training, error) {
	if t, ok := m.trainings[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestTrainingStore) Update(ctx context.Context, tx *sqlx.Tx, training *models.Training) error {
	m.updated = append(m.updated, training)
	m.trainings[training.ID] = training
	return nil
}

func newHallRequestFixture(t *testing.T) (*HallRequestService, *mockHallRequestStore, *mockRequestTrainingStore, sqlmock.Sqlmock, *stubGuard, *capturedNotifier) {
	t.Helper()
	store := newMockHallRequestStore()
	trainings, mock := newMockRequestTrainingStore(t)
	trainings.trainings["t1"] = &models.Training{
		ID:          "t1",
		Title:       "Cold Chain Handling",
		Date:        time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		StartTime:   mustClock(t, "09:00"),
		EndTime:     mustClock(t, "12:00"),
		CreatedByID: "po-1",
		Status:      models.TrainingDraft,
	}
	halls := &mockHallRepo{halls: map[string]*models.Hall{"h1": {ID: "h1", Name: "Main Hall"}}}
	guard := &stubGuard{}
	notifier := &capturedNotifier{}
	svc := NewHallRequestService(store, trainings, halls, guard, notifier, nil, nil)
	return svc, store, trainings, mock, guard, notifier
}

func pendingHallRequest(store *mockHallRequestStore) *models.HallBookingRequest {
	request := &models.HallBookingRequest{
		ID:          "hr1",
		TrainingID:  "t1",
		HallID:      "h1",
		RequestedBy: "po-1",
		Priority:    "normal",
		Status:      models.HallRequestPending,
	}
	store.requests[request.ID] = request
	return request
}

func TestCreateHallRequestPending(t *testing.T) {
	svc, store, _, _, _, _ := newHallRequestFixture(t)

	request, err := svc.Create(context.Background(), officerActor("po-1"), CreateHallRequestRequest{
		TrainingID: "t1",
		HallID:     "h1",
		Remarks:    "Projector needed",
	})
	require.NoError(t, err)
	assert.Equal(t, models.HallRequestPending, request.Status)
	assert.Equal(t, "normal", request.Priority)
	assert.Equal(t, "po-1", request.RequestedBy)
	assert.Len(t, store.created, 1)
}

func TestCreateHallRequestForeignTrainingForbidden(t *testing.T) {
	svc, _, _, _, _, _ := newHallRequestFixture(t)

	_, err := svc.Create(context.Background(), officerActor("po-2"), CreateHallRequestRequest{
		TrainingID: "t1",
		HallID:     "h1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateHallRequestUnknownHall(t *testing.T) {
	svc, _, _, _, _, _ := newHallRequestFixture(t)

	_, err := svc.Create(context.Background(), officerActor("po-1"), CreateHallRequestRequest{
		TrainingID: "t1",
		HallID:     "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApproveRequestBooksThroughGuard(t *testing.T) {
	svc, store, trainings, mock, guard, notifier := newHallRequestFixture(t)
	pendingHallRequest(store)
	mock.ExpectBegin()
	mock.ExpectCommit()

	request, err := svc.Decide(context.Background(), adminActor(), "hr1", DecideHallRequestRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.HallRequestApproved, request.Status)
	assert.Equal(t, 1, guard.calls)
	assert.Equal(t, []string{"h1"}, trainings.locked)

	require.Len(t, trainings.updated, 1)
	assert.Equal(t, "h1", trainings.updated[0].HallID)
	assert.Equal(t, models.TrainingScheduled, trainings.updated[0].Status)
	assert.Equal(t, models.HallRequestApproved, store.statuses["hr1"])

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "po-1", notifier.sent[0].UserID)
	assert.Equal(t, models.NotificationSuccess, notifier.sent[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRequestRejectsConflict(t *testing.T) {
	svc, store, trainings, mock, guard, notifier := newHallRequestFixture(t)
	pendingHallRequest(store)
	guard.conflict = &models.BookingConflict{
		Type:       models.ConflictTypeTraining,
		TrainingID: "t9",
		HallID:     "h1",
		Title:      "Scheduled Session",
	}
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Decide(context.Background(), adminActor(), "hr1", DecideHallRequestRequest{Status: "approved"})
	require.Error(t, err)

	var conflictErr *models.BookingConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "t9", conflictErr.Conflict.TrainingID)

	assert.Empty(t, trainings.updated)
	assert.Equal(t, models.HallRequestPending, store.requests["hr1"].Status)
	assert.Empty(t, notifier.sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideRequestAlreadyProcessed(t *testing.T) {
	svc, store, _, _, _, _ := newHallRequestFixture(t)
	request := pendingHallRequest(store)
	request.Status = models.HallRequestApproved

	_, err := svc.Decide(context.Background(), adminActor(), "hr1", DecideHallRequestRequest{Status: "rejected"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRejectRequestNotifiesRequester(t *testing.T) {
	svc, store, trainings, _, guard, notifier := newHallRequestFixture(t)
	pendingHallRequest(store)

	request, err := svc.Decide(context.Background(), adminActor(), "hr1", DecideHallRequestRequest{Status: "rejected"})
	require.NoError(t, err)
	assert.Equal(t, models.HallRequestRejected, request.Status)
	assert.Zero(t, guard.calls)
	assert.Empty(t, trainings.updated)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationWarning, notifier.sent[0].Type)
}

func TestListRequestsRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _, _, _ := newHallRequestFixture(t)

	_, err := svc.List(context.Background(), "stalled")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
