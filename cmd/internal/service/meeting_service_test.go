package service

import (
	"context"
	"testing"
	"time"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/domain/sqlite/repository"
	"dealintake/cmd/internal/integration/google/calendarclient"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"
	"dealintake/cmd/internal/utils/validators"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) GetEvent(ctx context.Context, eventID string) (*calendarclient.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendarclient.Event), args.Error(1)
}

func (m *MockCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, propertyFilter map[string]string) ([]*calendarclient.Event, error) {
	args := m.Called(ctx, timeMin, timeMax, propertyFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendarclient.Event), args.Error(1)
}

func (m *MockCalendar) ListOccurrences(ctx context.Context, eventID string, timeMin time.Time, limit int) ([]calendarclient.Occurrence, error) {
	args := m.Called(ctx, eventID, timeMin, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]calendarclient.Occurrence), args.Error(1)
}

func (m *MockCalendar) CreateEvent(ctx context.Context, draft *calendarclient.EventDraft) (*calendarclient.Event, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendarclient.Event), args.Error(1)
}

func (m *MockCalendar) UpdateEvent(ctx context.Context, eventID string, patch *calendarclient.EventPatch) (*calendarclient.Event, error) {
	args := m.Called(ctx, eventID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendarclient.Event), args.Error(1)
}

func (m *MockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) EnsureOccurrence(occurrenceID string, beginsAt int64, capacity int, now int64) (*entity.MeetingOccurrence, error) {
	args := m.Called(occurrenceID, beginsAt, capacity, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.MeetingOccurrence), args.Error(1)
}

func (m *MockLedger) FindOccurrence(occurrenceID string, beginsAt int64) (*entity.MeetingOccurrence, error) {
	args := m.Called(occurrenceID, beginsAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.MeetingOccurrence), args.Error(1)
}

func (m *MockLedger) Register(instanceID int, fullName, email string, registeredAt int64) (repository.RegisterOutcome, *entity.Registration, error) {
	args := m.Called(instanceID, fullName, email, registeredAt)
	var reg *entity.Registration
	if args.Get(1) != nil {
		reg = args.Get(1).(*entity.Registration)
	}
	return args.Get(0).(repository.RegisterOutcome), reg, args.Error(2)
}

func (m *MockLedger) CountRegistrations(instanceID int) (int, error) {
	args := m.Called(instanceID)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) FindRegistrations(instanceID int) ([]*entity.Registration, error) {
	args := m.Called(instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Registration), args.Error(1)
}

type MockLinks struct {
	mock.Mock
}

func (m *MockLinks) FindEventIDs(formType entity.FormType, host string) ([]string, error) {
	args := m.Called(formType, host)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLinks) FindAll() ([]*entity.EventLink, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.EventLink), args.Error(1)
}

func (m *MockLinks) ReplaceAll(links []*entity.EventLink) error {
	args := m.Called(links)
	return args.Error(0)
}

func (m *MockLinks) DeleteByEventID(eventID string) error {
	args := m.Called(eventID)
	return args.Error(0)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindByID(id int) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) FindBySub(sub string) (*entity.User, error) {
	args := m.Called(sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) FindAll() ([]*entity.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.User), args.Error(1)
}

func (m *MockUserRepo) FindByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) ExistsByEmail(email string) (bool, error) {
	args := m.Called(email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) Save(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func newTestValidate() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("iso8601", validators.IsIso8601)
	_ = validate.RegisterValidation("hasupper", validators.HasUpper)
	_ = validate.RegisterValidation("haslower", validators.HasLower)
	_ = validate.RegisterValidation("hasdigit", validators.HasDigit)
	_ = validate.RegisterValidation("hasspecial", validators.HasSpecial)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
	return validate
}

func newTestMeetingService(cal *MockCalendar, ledger *MockLedger, links *MockLinks, now time.Time) *DefaultMeetingService {
	svc := NewMeetingService(cal, ledger, links, newTestValidate(), 10, 3, 180*24*time.Hour)
	svc.Now = func() time.Time { return now }
	return svc
}

func TestFindAvailableSlots_SortsAndSkipsFull(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	later := now.Add(72 * time.Hour)
	sooner := now.Add(24 * time.Hour)
	full := now.Add(48 * time.Hour)

	links.On("FindEventIDs", entity.FormTypeLOI, "alice").Return([]string{"ev1"}, nil)
	cal.On("ListOccurrences", mock.Anything, "ev1", now, occurrenceFetchCap).Return([]calendarclient.Occurrence{
		{ID: "ev1_b", BeginsAt: later, EndsAt: later.Add(time.Hour)},
		{ID: "ev1_a", BeginsAt: sooner, EndsAt: sooner.Add(time.Hour)},
		{ID: "ev1_full", BeginsAt: full, EndsAt: full.Add(time.Hour)},
	}, nil)

	ledger.On("EnsureOccurrence", "ev1_b", utils.ToEpoch(later), 10, utils.ToEpoch(now)).
		Return(&entity.MeetingOccurrence{ID: 2, OccurrenceID: "ev1_b", BeginsAt: utils.ToEpoch(later), Capacity: 10, GuestCount: 9}, nil)
	ledger.On("EnsureOccurrence", "ev1_a", utils.ToEpoch(sooner), 10, utils.ToEpoch(now)).
		Return(&entity.MeetingOccurrence{ID: 1, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(sooner), Capacity: 10, GuestCount: 0}, nil)
	ledger.On("EnsureOccurrence", "ev1_full", utils.ToEpoch(full), 10, utils.ToEpoch(now)).
		Return(&entity.MeetingOccurrence{ID: 3, OccurrenceID: "ev1_full", BeginsAt: utils.ToEpoch(full), Capacity: 10, GuestCount: 10}, nil)

	slots, apierr := svc.FindAvailableSlots(context.Background(), "LOI", "alice", 0)
	require.Nil(t, apierr)
	require.Len(t, slots, 2)

	assert.Equal(t, "ev1_a", slots[0].OccurrenceID)
	assert.Equal(t, 10, slots[0].AvailableSeats)
	assert.Equal(t, "ev1_b", slots[1].OccurrenceID)
	assert.Equal(t, 1, slots[1].AvailableSeats)
	cal.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestFindAvailableSlots_FiltersWindow(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	past := now.Add(-24 * time.Hour)
	beyond := now.Add(181 * 24 * time.Hour)

	links.On("FindEventIDs", entity.FormTypeCIM, "bob").Return([]string{"ev2"}, nil)
	cal.On("ListOccurrences", mock.Anything, "ev2", now, occurrenceFetchCap).Return([]calendarclient.Occurrence{
		{ID: "ev2_past", BeginsAt: past, EndsAt: past.Add(time.Hour)},
		{ID: "ev2_far", BeginsAt: beyond, EndsAt: beyond.Add(time.Hour)},
	}, nil)

	slots, apierr := svc.FindAvailableSlots(context.Background(), "CIM", "bob", 3)
	require.Nil(t, apierr)
	assert.Empty(t, slots)
	ledger.AssertNotCalled(t, "EnsureOccurrence")
}

func TestFindAvailableSlots_SkipsStaleLinkEntry(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	soon := now.Add(24 * time.Hour)

	links.On("FindEventIDs", entity.FormTypeLOI, "alice").Return([]string{"gone", "ev1"}, nil)
	cal.On("ListOccurrences", mock.Anything, "gone", now, occurrenceFetchCap).
		Return(nil, calendarclient.ErrEventNotFound)
	cal.On("ListOccurrences", mock.Anything, "ev1", now, occurrenceFetchCap).Return([]calendarclient.Occurrence{
		{ID: "ev1_a", BeginsAt: soon, EndsAt: soon.Add(time.Hour)},
	}, nil)
	ledger.On("EnsureOccurrence", "ev1_a", utils.ToEpoch(soon), 10, utils.ToEpoch(now)).
		Return(&entity.MeetingOccurrence{ID: 1, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(soon), Capacity: 10}, nil)

	slots, apierr := svc.FindAvailableSlots(context.Background(), "LOI", "alice", 3)
	require.Nil(t, apierr)
	require.Len(t, slots, 1)
	assert.Equal(t, "ev1_a", slots[0].OccurrenceID)
}

func TestFindAvailableSlots_ProviderError(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	links.On("FindEventIDs", entity.FormTypeLOI, "alice").Return([]string{"ev1"}, nil)
	cal.On("ListOccurrences", mock.Anything, "ev1", now, occurrenceFetchCap).
		Return(nil, &calendarclient.ProviderError{Op: "instances", Err: assert.AnError})

	slots, apierr := svc.FindAvailableSlots(context.Background(), "LOI", "alice", 3)
	assert.Nil(t, slots)
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.ProviderUnavailableError, apierr)
}

func TestFindAvailableSlots_RejectsUnknownCategory(t *testing.T) {
	svc := newTestMeetingService(new(MockCalendar), new(MockLedger), new(MockLinks), time.Now())

	_, apierr := svc.FindAvailableSlots(context.Background(), "NDA", "alice", 3)
	require.NotNil(t, apierr)
	assert.Equal(t, 400, apierr.Code())
}

func TestRegister_Created(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	begins := now.Add(24 * time.Hour)
	instance := &entity.MeetingOccurrence{ID: 7, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(begins), Capacity: 10, GuestCount: 3}

	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(begins)).Return(instance, nil)
	ledger.On("Register", 7, "Jane Doe", "jane@example.com", utils.ToEpoch(now)).
		Return(repository.RegisterCreated, &entity.Registration{InstanceID: 7, FullName: "Jane Doe", Email: "jane@example.com"}, nil)

	resp, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     begins.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "  Jane@Example.COM  ",
	})
	require.Nil(t, apierr)

	assert.Equal(t, RegistrationCreated, resp.Status)
	assert.Equal(t, "jane@example.com", resp.Email)
	assert.Equal(t, 6, resp.AvailableSeats)
	// Provider is not consulted when the ledger already knows the occurrence.
	cal.AssertNotCalled(t, "GetEvent")
}

func TestRegister_Duplicate(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	begins := now.Add(24 * time.Hour)
	instance := &entity.MeetingOccurrence{ID: 7, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(begins), Capacity: 10, GuestCount: 4}

	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(begins)).Return(instance, nil)
	ledger.On("Register", 7, "Jane Doe", "jane@example.com", utils.ToEpoch(now)).
		Return(repository.RegisterDuplicate, &entity.Registration{InstanceID: 7, FullName: "Jane Doe", Email: "jane@example.com"}, nil)

	resp, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     begins.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.Nil(t, apierr)
	assert.Equal(t, RegistrationExists, resp.Status)
	assert.Equal(t, 6, resp.AvailableSeats)
}

func TestRegister_Full(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	links := new(MockLinks)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, links, now)

	begins := now.Add(24 * time.Hour)
	instance := &entity.MeetingOccurrence{ID: 7, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(begins), Capacity: 10, GuestCount: 10}

	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(begins)).Return(instance, nil)
	ledger.On("Register", 7, "Jane Doe", "jane@example.com", utils.ToEpoch(now)).
		Return(repository.RegisterFull, nil, nil)

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     begins.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.EventFullError, apierr)
}

func TestRegister_PastOccurrence(t *testing.T) {
	ledger := new(MockLedger)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(new(MockCalendar), ledger, new(MockLinks), now)

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     now.Add(-time.Hour).Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.PastEventError, apierr)
	ledger.AssertNotCalled(t, "Register")
}

func TestRegister_UnknownOccurrence(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, new(MockLinks), now)

	begins := now.Add(24 * time.Hour)
	ledger.On("FindOccurrence", "bogus", utils.ToEpoch(begins)).Return(nil, nil)
	cal.On("GetEvent", mock.Anything, "bogus").Return(nil, calendarclient.ErrEventNotFound)

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "bogus",
		BeginsAt:     begins.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.EventNotFoundError, apierr)
	ledger.AssertNotCalled(t, "Register")
}

func TestRegister_StartTimeMismatch(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, new(MockLinks), now)

	claimed := now.Add(24 * time.Hour)
	actual := now.Add(48 * time.Hour)

	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(claimed)).Return(nil, nil)
	cal.On("GetEvent", mock.Anything, "ev1_a").Return(&calendarclient.Event{
		ID:       "ev1_a",
		BeginsAt: actual,
		EndsAt:   actual.Add(time.Hour),
	}, nil)

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     claimed.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.EventNotFoundError, apierr)
	ledger.AssertNotCalled(t, "EnsureOccurrence")
}

func TestRegister_ProviderOutageIsNotSwallowed(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestMeetingService(cal, ledger, new(MockLinks), now)

	begins := now.Add(24 * time.Hour)
	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(begins)).Return(nil, nil)
	cal.On("GetEvent", mock.Anything, "ev1_a").
		Return(nil, &calendarclient.ProviderError{Op: "get", Err: assert.AnError})

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     begins.Format(time.RFC3339),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.ProviderUnavailableError, apierr)
}

func TestRegister_InvalidInput(t *testing.T) {
	svc := newTestMeetingService(new(MockCalendar), new(MockLedger), new(MockLinks), time.Now())

	_, apierr := svc.Register(context.Background(), &RegisterRequest{
		OccurrenceID: "ev1_a",
		BeginsAt:     "not-a-timestamp",
		FullName:     "J",
		Email:        "not-an-email",
	})
	require.NotNil(t, apierr)
	assert.Equal(t, 400, apierr.Code())
}

func TestGetOccurrenceDetail(t *testing.T) {
	cal := new(MockCalendar)
	svc := newTestMeetingService(cal, new(MockLedger), new(MockLinks), time.Now())

	begins := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	cal.On("GetEvent", mock.Anything, "ev1_a").Return(&calendarclient.Event{
		ID:          "ev1_a",
		Title:       "LOI Review",
		Description: "Bring your questions",
		MeetLink:    "https://meet.google.com/abc-defg-hij",
		BeginsAt:    begins,
		EndsAt:      begins.Add(time.Hour),
		Properties:  map[string]string{"host": "alice", "form_type": "LOI Call"},
	}, nil)

	detail, apierr := svc.GetOccurrenceDetail(context.Background(), "ev1_a")
	require.Nil(t, apierr)
	assert.Equal(t, "LOI Review", detail.Title)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", detail.ConferencingLink)
	assert.Equal(t, "alice", detail.Host)
	assert.Equal(t, "2026-04-02T15:00:00Z", detail.BeginsAt)
}

func TestGetRegistrationCount(t *testing.T) {
	cal := new(MockCalendar)
	ledger := new(MockLedger)
	svc := newTestMeetingService(cal, ledger, new(MockLinks), time.Now())

	begins := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	instance := &entity.MeetingOccurrence{ID: 7, OccurrenceID: "ev1_a", BeginsAt: utils.ToEpoch(begins), Capacity: 10}

	ledger.On("FindOccurrence", "ev1_a", utils.ToEpoch(begins)).Return(instance, nil)
	ledger.On("CountRegistrations", 7).Return(4, nil)

	resp, apierr := svc.GetRegistrationCount(context.Background(), "ev1_a", begins.Format(time.RFC3339))
	require.Nil(t, apierr)
	assert.Equal(t, 4, resp.Count)
	assert.Equal(t, 10, resp.Capacity)
	assert.Equal(t, 6, resp.Available)
}
