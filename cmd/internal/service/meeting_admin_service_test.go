package service

import (
	"context"
	"testing"
	"time"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/integration/google/calendarclient"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAdminService(cal *MockCalendar, links *MockLinks, users *MockUserRepo, now time.Time) *DefaultMeetingAdminService {
	svc := NewMeetingAdminService(cal, links, users, newTestValidate(), 180*24*time.Hour)
	svc.Now = func() time.Time { return now }
	return svc
}

func adminUser() *entity.User {
	return &entity.User{ID: 1, SubUUID: "admin-sub", Username: "admin", IsAdmin: true}
}

func TestCreateEvent_StampsHostAndFormType(t *testing.T) {
	cal := new(MockCalendar)
	links := new(MockLinks)
	users := new(MockUserRepo)
	svc := newTestAdminService(cal, links, users, time.Now())

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)
	cal.On("CreateEvent", mock.Anything, mock.MatchedBy(func(draft *calendarclient.EventDraft) bool {
		return draft.Properties["host"] == "alice" &&
			draft.Properties["form_type"] == "LOI Call" &&
			draft.Title == "LOI Review"
	})).Return(&calendarclient.Event{
		ID:         "ev1",
		Title:      "LOI Review",
		BeginsAt:   time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC),
		EndsAt:     time.Date(2026, 4, 2, 16, 0, 0, 0, time.UTC),
		Properties: map[string]string{"host": "alice", "form_type": "LOI Call"},
	}, nil)

	resp, apierr := svc.CreateEvent(context.Background(), &CreateEventRequest{
		Title:    "LOI Review",
		BeginsAt: "2026-04-02T15:00:00Z",
		Host:     "alice",
		FormType: "LOI",
	}, "admin-sub")
	require.Nil(t, apierr)
	assert.Equal(t, "ev1", resp.EventID)
	assert.Equal(t, "alice", resp.Host)
	cal.AssertExpectations(t)
}

func TestCreateEvent_NonAdminForbidden(t *testing.T) {
	cal := new(MockCalendar)
	users := new(MockUserRepo)
	svc := newTestAdminService(cal, new(MockLinks), users, time.Now())

	users.On("FindBySub", "guest-sub").Return(&entity.User{ID: 2, SubUUID: "guest-sub", IsAdmin: false}, nil)

	_, apierr := svc.CreateEvent(context.Background(), &CreateEventRequest{
		Title:    "LOI Review",
		BeginsAt: "2026-04-02T15:00:00Z",
		Host:     "alice",
		FormType: "LOI",
	}, "guest-sub")
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.ForbiddenError, apierr)
	cal.AssertNotCalled(t, "CreateEvent")
}

func TestDeleteEvent_DropsLinkIndexEntry(t *testing.T) {
	cal := new(MockCalendar)
	links := new(MockLinks)
	users := new(MockUserRepo)
	svc := newTestAdminService(cal, links, users, time.Now())

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)
	cal.On("DeleteEvent", mock.Anything, "ev1").Return(nil)
	links.On("DeleteByEventID", "ev1").Return(nil)

	apierr := svc.DeleteEvent(context.Background(), "ev1", "admin-sub")
	assert.Nil(t, apierr)
	links.AssertExpectations(t)
}

func TestDeleteEvent_NotFound(t *testing.T) {
	cal := new(MockCalendar)
	links := new(MockLinks)
	users := new(MockUserRepo)
	svc := newTestAdminService(cal, links, users, time.Now())

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)
	cal.On("DeleteEvent", mock.Anything, "gone").Return(calendarclient.ErrEventNotFound)

	apierr := svc.DeleteEvent(context.Background(), "gone", "admin-sub")
	require.NotNil(t, apierr)
	assert.Equal(t, apierror.EventNotFoundError, apierr)
	links.AssertNotCalled(t, "DeleteByEventID")
}

func TestPreviewOccurrences_WeeklyRule(t *testing.T) {
	users := new(MockUserRepo)
	svc := newTestAdminService(new(MockCalendar), new(MockLinks), users, time.Now())

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)

	preview, apierr := svc.PreviewOccurrences(&PreviewOccurrencesRequest{
		BeginsAt:   "2026-04-02T15:00:00Z",
		Recurrence: "FREQ=WEEKLY;BYDAY=TH",
		Count:      3,
	}, "admin-sub")
	require.Nil(t, apierr)
	require.Len(t, preview, 3)
	assert.Equal(t, "2026-04-02T15:00:00Z", preview[0])
	assert.Equal(t, "2026-04-09T15:00:00Z", preview[1])
	assert.Equal(t, "2026-04-16T15:00:00Z", preview[2])
}

func TestPreviewOccurrences_BadRule(t *testing.T) {
	users := new(MockUserRepo)
	svc := newTestAdminService(new(MockCalendar), new(MockLinks), users, time.Now())

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)

	_, apierr := svc.PreviewOccurrences(&PreviewOccurrencesRequest{
		BeginsAt:   "2026-04-02T15:00:00Z",
		Recurrence: "FREQ=SOMETIMES",
	}, "admin-sub")
	require.NotNil(t, apierr)
	assert.Equal(t, 400, apierr.Code())
}

func TestSyncEventLinks_IndexesOnlyTaggedEvents(t *testing.T) {
	cal := new(MockCalendar)
	links := new(MockLinks)
	users := new(MockUserRepo)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestAdminService(cal, links, users, now)

	users.On("FindBySub", "admin-sub").Return(adminUser(), nil)
	cal.On("ListEvents", mock.Anything, now, now.Add(180*24*time.Hour), mock.Anything).Return([]*calendarclient.Event{
		{ID: "ev1", Properties: map[string]string{"host": "alice", "form_type": "LOI Call"}},
		{ID: "ev2", Properties: map[string]string{"host": "bob", "form_type": "CIM Call"}},
		{ID: "ev3", Properties: map[string]string{"form_type": "LOI Call"}}, // no host
		{ID: "ev4", Properties: map[string]string{}},                        // untagged
	}, nil)
	links.On("ReplaceAll", mock.MatchedBy(func(batch []*entity.EventLink) bool {
		return len(batch) == 2 &&
			batch[0].EventID == "ev1" && batch[0].FormType == entity.FormTypeLOI &&
			batch[1].EventID == "ev2" && batch[1].FormType == entity.FormTypeCIM
	})).Return(nil)

	resp, apierr := svc.SyncEventLinks(context.Background(), "admin-sub")
	require.Nil(t, apierr)
	assert.Equal(t, 2, resp.Linked)
	links.AssertExpectations(t)
}
