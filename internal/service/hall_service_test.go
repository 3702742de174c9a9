package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhtms/tms-api/internal/models"
	appErrors "github.com/dhtms/tms-api/pkg/errors"
)

type mockHallStore struct {
	halls        map[string]*models.Hall
	slots        map[string][]models.AvailabilitySlot
	addedSlots   []*models.AvailabilitySlot
	removedSlots []string
}

func newMockHallStore() *mockHallStore {
	return &mockHallStore{
		halls: map[string]*models.Hall{},
		slots: map[string][]models.AvailabilitySlot{},
	}
}

func (m *mockHallStore) List(ctx context.Context) ([]models.Hall, error) {
	var out []models.Hall
	for _, h := range m.halls {
		out = append(out, *h)
	}
	return out, nil
}

func (m *mockHallStore) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	if h, ok := m.halls[id]; ok {
		cp := *h
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHallStore) Create(ctx context.Context, hall *models.Hall) error {
	hall.ID = "generated"
	m.halls[hall.ID] = hall
	return nil
}

func (m *mockHallStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.halls[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.halls, id)
	return nil
}

func (m *mockHallStore) ListSlots(ctx context.Context, hallID string) ([]models.AvailabilitySlot, error) {
	return m.slots[hallID], nil
}

func (m *mockHallStore) AddSlot(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.ID = "generated"
	m.addedSlots = append(m.addedSlots, slot)
	m.slots[slot.HallID] = append(m.slots[slot.HallID], *slot)
	return nil
}

func (m *mockHallStore) RemoveSlot(ctx context.Context, slotID string) error {
	m.removedSlots = append(m.removedSlots, slotID)
	return nil
}

func TestCreateHall(t *testing.T) {
	store := newMockHallStore()
	svc := NewHallService(store, nil, nil)

	hall, err := svc.Create(context.Background(), CreateHallRequest{
		Name:     "District Training Hall",
		Location: "Civil Lines",
		Capacity: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", hall.ID)

	_, err = svc.Create(context.Background(), CreateHallRequest{Name: "No Capacity", Location: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
}

func TestGetHallNotFound(t *testing.T) {
	svc := NewHallService(newMockHallStore(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestAddAvailabilityRequiresExactlyOneRule(t *testing.T) {
	store := newMockHallStore()
	store.halls["h1"] = &models.Hall{ID: "h1", Name: "Main Hall"}
	svc := NewHallService(store, nil, nil)

	monday := 1
	cases := []struct {
		name    string
		req     AddAvailabilityRequest
		wantErr bool
	}{
		{"weekday only", AddAvailabilityRequest{DayOfWeek: &monday, StartTime: "08:00", EndTime: "12:00"}, false},
		{"specific date only", AddAvailabilityRequest{SpecificDate: "2026-09-07", StartTime: "08:00", EndTime: "12:00"}, false},
		{"neither", AddAvailabilityRequest{StartTime: "08:00", EndTime: "12:00"}, true},
		{"both", AddAvailabilityRequest{DayOfWeek: &monday, SpecificDate: "2026-09-07", StartTime: "08:00", EndTime: "12:00"}, true},
		{"inverted window", AddAvailabilityRequest{DayOfWeek: &monday, StartTime: "12:00", EndTime: "08:00"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddAvailability(context.Background(), "h1", tc.req)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAddAvailabilityParsesSpecificDate(t *testing.T) {
	store := newMockHallStore()
	store.halls["h1"] = &models.Hall{ID: "h1", Name: "Main Hall"}
	svc := NewHallService(store, nil, nil)

	slot, err := svc.AddAvailability(context.Background(), "h1", AddAvailabilityRequest{
		SpecificDate: "2026-09-07",
		StartTime:    "08:00",
		EndTime:      "12:00",
	})
	require.NoError(t, err)
	require.NotNil(t, slot.SpecificDate)
	assert.Equal(t, day(t, "2026-09-07"), *slot.SpecificDate)
	assert.Equal(t, mustClock(t, "08:00"), slot.StartTime)
}

func TestAddAvailabilityUnknownHall(t *testing.T) {
	svc := NewHallService(newMockHallStore(), nil, nil)

	monday := 1
	_, err := svc.AddAvailability(context.Background(), "missing", AddAvailabilityRequest{
		DayOfWeek: &monday, StartTime: "08:00", EndTime: "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestListAvailability(t *testing.T) {
	store := newMockHallStore()
	store.halls["h1"] = &models.Hall{ID: "h1", Name: "Main Hall"}
	monday := 1
	store.slots["h1"] = []models.AvailabilitySlot{
		{ID: "s1", HallID: "h1", DayOfWeek: &monday, StartTime: mustClock(t, "08:00"), EndTime: mustClock(t, "12:00")},
	}
	svc := NewHallService(store, nil, nil)

	slots, err := svc.ListAvailability(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "s1", slots[0].ID)

	_, err = svc.ListAvailability(context.Background(), "missing")
	require.Error(t, err)
}

func TestDeleteHall(t *testing.T) {
	store := newMockHallStore()
	store.halls["h1"] = &models.Hall{ID: "h1"}
	svc := NewHallService(store, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "h1"))

	err := svc.Delete(context.Background(), "h1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}
