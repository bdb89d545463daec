package service

import (
	"context"
	"errors"
	"time"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/integration/google/calendarclient"
	"dealintake/cmd/internal/metric"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"github.com/teambition/rrule-go"
)

type CreateEventRequest struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=5000"`
	Location        string   `json:"location" validate:"max=500"`
	MeetingLink     string   `json:"meeting_link" validate:"omitempty,url,max=500"`
	BeginsAt        string   `json:"begins_at" validate:"required,iso8601"`
	EndsAt          string   `json:"ends_at" validate:"omitempty,iso8601"`
	Recurrence      []string `json:"recurrence" validate:"max=3"`
	Host            string   `json:"host" validate:"required,max=100"`
	FormType        string   `json:"form_type" validate:"required"`
	Attendees       []string `json:"attendees" validate:"dive,email"`
	RequestMeetLink bool     `json:"request_meet_link"`
}

type UpdateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Location    *string `json:"location" validate:"omitempty,max=500"`
	BeginsAt    *string `json:"begins_at" validate:"omitempty,iso8601"`
	EndsAt      *string `json:"ends_at" validate:"omitempty,iso8601"`
	Host        *string `json:"host" validate:"omitempty,max=100"`
	FormType    *string `json:"form_type"`
}

type EventResponse struct {
	EventID          string   `json:"event_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	ConferencingLink string   `json:"conferencing_link,omitempty"`
	HTMLLink         string   `json:"html_link,omitempty"`
	BeginsAt         string   `json:"begins_at"`
	EndsAt           string   `json:"ends_at"`
	Recurrence       []string `json:"recurrence,omitempty"`
	Host             string   `json:"host,omitempty"`
	FormType         string   `json:"form_type,omitempty"`
}

type PreviewOccurrencesRequest struct {
	BeginsAt   string `json:"begins_at" validate:"required,iso8601"`
	Recurrence string `json:"recurrence" validate:"required,max=500"`
	Count      int    `json:"count" validate:"omitempty,min=1,max=52"`
}

type SyncEventLinksResponse struct {
	Linked int `json:"linked"`
}

type DefaultMeetingAdminService struct {
	Calendar calendarclient.CalendarAPI
	Links    EventLinkRepository
	UserRepo UserRepository
	Validate *validator.Validate

	LookupWindow time.Duration
	Now          func() time.Time
}

func NewMeetingAdminService(cal calendarclient.CalendarAPI, links EventLinkRepository, userRepo UserRepository, validate *validator.Validate, lookupWindow time.Duration) *DefaultMeetingAdminService {
	return &DefaultMeetingAdminService{
		Calendar:     cal,
		Links:        links,
		UserRepo:     userRepo,
		Validate:     validate,
		LookupWindow: lookupWindow,
		Now:          time.Now,
	}
}

func (a *DefaultMeetingAdminService) CreateEvent(ctx context.Context, req *CreateEventRequest, subID string) (*EventResponse, apierror.ErrorResponse) {
	if apierr := a.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	formType := entity.FormType(req.FormType)
	if !formType.Valid() {
		return nil, apierror.NewInvalidParamTypeError("form_type", "LOI or CIM")
	}

	begins, err := time.Parse(time.RFC3339, req.BeginsAt)
	if err != nil {
		return nil, apierror.MalformedBodyError
	}

	draft := &calendarclient.EventDraft{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		MeetingLink:     req.MeetingLink,
		BeginsAt:        begins,
		Recurrence:      req.Recurrence,
		Attendees:       req.Attendees,
		RequestMeetLink: req.RequestMeetLink,
		Properties: map[string]string{
			"host":      req.Host,
			"form_type": formType.CallLabel(),
		},
	}
	if req.EndsAt != "" {
		ends, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			return nil, apierror.MalformedBodyError
		}
		draft.EndsAt = ends
	}

	event, err := a.Calendar.CreateEvent(ctx, draft)
	if err != nil {
		metric.ProviderErrors.WithLabelValues("create_event").Inc()
		log.Errorf("failed to create calendar event %q: %v", req.Title, err)
		return nil, apierror.ProviderUnavailableError
	}
	return toEventResponse(event), nil
}

func (a *DefaultMeetingAdminService) UpdateEvent(ctx context.Context, eventID string, req *UpdateEventRequest, subID string) (*EventResponse, apierror.ErrorResponse) {
	if apierr := a.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	patch := &calendarclient.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	}
	if req.BeginsAt != nil {
		begins, err := time.Parse(time.RFC3339, *req.BeginsAt)
		if err != nil {
			return nil, apierror.MalformedBodyError
		}
		patch.BeginsAt = &begins
	}
	if req.EndsAt != nil {
		ends, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			return nil, apierror.MalformedBodyError
		}
		patch.EndsAt = &ends
	}
	if req.Host != nil || req.FormType != nil {
		patch.Properties = map[string]string{}
		if req.Host != nil {
			patch.Properties["host"] = *req.Host
		}
		if req.FormType != nil {
			formType := entity.FormType(*req.FormType)
			if !formType.Valid() {
				return nil, apierror.NewInvalidParamTypeError("form_type", "LOI or CIM")
			}
			patch.Properties["form_type"] = formType.CallLabel()
		}
	}

	event, err := a.Calendar.UpdateEvent(ctx, eventID, patch)
	if errors.Is(err, calendarclient.ErrEventNotFound) {
		return nil, apierror.EventNotFoundError
	}
	if err != nil {
		metric.ProviderErrors.WithLabelValues("update_event").Inc()
		log.Errorf("failed to update calendar event %s: %v", eventID, err)
		return nil, apierror.ProviderUnavailableError
	}
	return toEventResponse(event), nil
}

// DeleteEvent removes the event upstream and drops it from the link index.
// Registrations already taken against its occurrences are kept for audit;
// they become unreachable through the availability flow on their own.
func (a *DefaultMeetingAdminService) DeleteEvent(ctx context.Context, eventID, subID string) apierror.ErrorResponse {
	if apierr := a.requireAdmin(subID); apierr != nil {
		return apierr
	}

	err := a.Calendar.DeleteEvent(ctx, eventID)
	if errors.Is(err, calendarclient.ErrEventNotFound) {
		return apierror.EventNotFoundError
	}
	if err != nil {
		metric.ProviderErrors.WithLabelValues("delete_event").Inc()
		log.Errorf("failed to delete calendar event %s: %v", eventID, err)
		return apierror.ProviderUnavailableError
	}

	if err := a.Links.DeleteByEventID(eventID); err != nil {
		log.Errorf("failed to unlink deleted event %s: %v", eventID, err)
		return apierror.InternalServerError
	}
	log.Warnf("event %s deleted; existing registrations for its occurrences are retained", eventID)
	return nil
}

// PreviewOccurrences expands a recurrence rule locally so an administrator
// can sanity-check the schedule before the event exists upstream.
func (a *DefaultMeetingAdminService) PreviewOccurrences(req *PreviewOccurrencesRequest, subID string) ([]string, apierror.ErrorResponse) {
	if apierr := a.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	begins, err := time.Parse(time.RFC3339, req.BeginsAt)
	if err != nil {
		return nil, apierror.MalformedBodyError
	}

	rule, err := rrule.StrToRRule(req.Recurrence)
	if err != nil {
		return nil, apierror.NewSimple(400, "Could not understand the recurrence rule")
	}
	rule.DTStart(begins)

	count := req.Count
	if count <= 0 {
		count = 10
	}

	horizon := begins.Add(a.LookupWindow)
	times := rule.Between(begins, horizon, true)
	if len(times) > count {
		times = times[:count]
	}

	preview := make([]string, len(times))
	for i, t := range times {
		preview[i] = utils.FormatEpoch(utils.ToEpoch(t))
	}
	return preview, nil
}

// SyncEventLinks rebuilds the (form_type, host) -> event index from a
// provider scan. The provider cannot filter private extended properties
// server-side in bulk, so this explicit admin action exists precisely to
// keep availability lookups from scanning the whole calendar.
func (a *DefaultMeetingAdminService) SyncEventLinks(ctx context.Context, subID string) (*SyncEventLinksResponse, apierror.ErrorResponse) {
	if apierr := a.requireAdmin(subID); apierr != nil {
		return nil, apierr
	}

	now := a.Now()
	events, err := a.Calendar.ListEvents(ctx, now, now.Add(a.LookupWindow), nil)
	if err != nil {
		metric.ProviderErrors.WithLabelValues("list_events").Inc()
		log.Errorf("failed to list events for link sync: %v", err)
		return nil, apierror.ProviderUnavailableError
	}

	var links []*entity.EventLink
	nowMillis := utils.ToEpoch(now)
	for _, event := range events {
		host := event.Properties["host"]
		formType, ok := entity.FormTypeFromCallLabel(event.Properties["form_type"])
		if host == "" || !ok {
			continue
		}
		links = append(links, &entity.EventLink{
			FormType:  formType,
			Host:      host,
			EventID:   event.ID,
			UpdatedAt: nowMillis,
		})
	}

	if err := a.Links.ReplaceAll(links); err != nil {
		log.Errorf("failed to replace event link index: %v", err)
		return nil, apierror.InternalServerError
	}

	log.Infof("event link index rebuilt with %d entries", len(links))
	return &SyncEventLinksResponse{Linked: len(links)}, nil
}

func (a *DefaultMeetingAdminService) requireAdmin(subID string) apierror.ErrorResponse {
	caller, err := a.UserRepo.FindBySub(subID)
	if err != nil {
		log.Errorf("failed to check if user %s is admin: %v", subID, err)
		return apierror.InternalServerError
	}
	if caller == nil || !caller.IsAdmin {
		return apierror.ForbiddenError
	}
	return nil
}

func toEventResponse(event *calendarclient.Event) *EventResponse {
	return &EventResponse{
		EventID:          event.ID,
		Title:            event.Title,
		Description:      event.Description,
		ConferencingLink: event.ConferencingLink(),
		HTMLLink:         event.HTMLLink,
		BeginsAt:         utils.FormatEpoch(utils.ToEpoch(event.BeginsAt)),
		EndsAt:           utils.FormatEpoch(utils.ToEpoch(event.EndsAt)),
		Recurrence:       event.Recurrence,
		Host:             event.Properties["host"],
		FormType:         event.Properties["form_type"],
	}
}
