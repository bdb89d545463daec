package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/domain/sqlite/repository"
	"dealintake/cmd/internal/integration/google/calendarclient"
	"dealintake/cmd/internal/metric"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

type LedgerRepository interface {
	EnsureOccurrence(occurrenceID string, beginsAt int64, capacity int, now int64) (*entity.MeetingOccurrence, error)
	FindOccurrence(occurrenceID string, beginsAt int64) (*entity.MeetingOccurrence, error)
	Register(instanceID int, fullName, email string, registeredAt int64) (repository.RegisterOutcome, *entity.Registration, error)
	CountRegistrations(instanceID int) (int, error)
	FindRegistrations(instanceID int) ([]*entity.Registration, error)
}

type EventLinkRepository interface {
	FindEventIDs(formType entity.FormType, host string) ([]string, error)
	FindAll() ([]*entity.EventLink, error)
	ReplaceAll(links []*entity.EventLink) error
	DeleteByEventID(eventID string) error
}

type SlotResponse struct {
	OccurrenceID   string `json:"occurrence_id"`
	BeginsAt       string `json:"begins_at"`
	EndsAt         string `json:"ends_at"`
	AvailableSeats int    `json:"available_seats"`
}

type OccurrenceDetailResponse struct {
	OccurrenceID     string `json:"occurrence_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	ConferencingLink string `json:"conferencing_link,omitempty"`
	BeginsAt         string `json:"begins_at"`
	EndsAt           string `json:"ends_at"`
	Host             string `json:"host,omitempty"`
	FormType         string `json:"form_type,omitempty"`
}

type RegisterRequest struct {
	OccurrenceID string `json:"occurrence_id" validate:"required,max=200"`
	BeginsAt     string `json:"begins_at" validate:"required,iso8601"`
	FullName     string `json:"full_name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email,max=120"`
}

const (
	RegistrationCreated = "created"
	RegistrationExists  = "already_registered"
)

type RegistrationResponse struct {
	Status         string `json:"status"`
	OccurrenceID   string `json:"occurrence_id"`
	BeginsAt       string `json:"begins_at"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	AvailableSeats int    `json:"available_seats"`
}

type RegistrationCountResponse struct {
	OccurrenceID string `json:"occurrence_id"`
	BeginsAt     string `json:"begins_at"`
	Count        int    `json:"count"`
	Capacity     int    `json:"capacity"`
	Available    int    `json:"available"`
}

type DefaultMeetingService struct {
	Calendar calendarclient.CalendarAPI
	Ledger   LedgerRepository
	Links    EventLinkRepository
	Validate *validator.Validate

	DefaultCapacity int
	DefaultLimit    int
	LookupWindow    time.Duration

	// Now is swappable so tests can pin the clock.
	Now func() time.Time
}

// occurrenceFetchCap bounds how many instances we pull per recurring event;
// weekly events within the lookup window stay well under it.
const occurrenceFetchCap = 50

func NewMeetingService(cal calendarclient.CalendarAPI, ledger LedgerRepository, links EventLinkRepository, validate *validator.Validate, defaultCapacity, defaultLimit int, lookupWindow time.Duration) *DefaultMeetingService {
	return &DefaultMeetingService{
		Calendar:        cal,
		Ledger:          ledger,
		Links:           links,
		Validate:        validate,
		DefaultCapacity: defaultCapacity,
		DefaultLimit:    defaultLimit,
		LookupWindow:    lookupWindow,
		Now:             time.Now,
	}
}

// FindAvailableSlots answers "what are the next open slots for this call
// type with this host". Calendar occurrences and ledger counts disagree
// about what "available" means, so both are consulted: the provider
// enumerates occurrences, the ledger says which still have seats.
func (m *DefaultMeetingService) FindAvailableSlots(ctx context.Context, rawFormType, host string, limit int) ([]*SlotResponse, apierror.ErrorResponse) {
	formType := entity.FormType(rawFormType)
	if !formType.Valid() {
		return nil, apierror.NewInvalidParamTypeError("category", "LOI or CIM")
	}
	if host == "" {
		return nil, apierror.NewMissingParamError("host")
	}
	if limit <= 0 {
		limit = m.DefaultLimit
	}
	metric.SlotLookups.WithLabelValues(string(formType)).Inc()

	eventIDs, err := m.Links.FindEventIDs(formType, host)
	if err != nil {
		log.Errorf("failed to resolve event links for %s/%s: %v", formType, host, err)
		return nil, apierror.InternalServerError
	}

	now := m.Now()
	horizon := now.Add(m.LookupWindow)

	slots := make([]*SlotResponse, 0, limit)
	type candidate struct {
		occ      calendarclient.Occurrence
		instance *entity.MeetingOccurrence
	}
	var candidates []candidate

	for _, eventID := range eventIDs {
		occurrences, err := m.Calendar.ListOccurrences(ctx, eventID, now, occurrenceFetchCap)
		if errors.Is(err, calendarclient.ErrEventNotFound) {
			// Stale index entry; the admin deleted the event upstream.
			log.Warnf("event %s in link index no longer exists upstream", eventID)
			continue
		}
		if err != nil {
			metric.ProviderErrors.WithLabelValues("list_occurrences").Inc()
			log.Errorf("failed to list occurrences for event %s: %v", eventID, err)
			return nil, apierror.ProviderUnavailableError
		}

		for _, occ := range occurrences {
			if occ.BeginsAt.Before(now) || occ.BeginsAt.After(horizon) {
				continue
			}

			instance, err := m.Ledger.EnsureOccurrence(occ.ID, utils.ToEpoch(occ.BeginsAt), m.DefaultCapacity, utils.ToEpoch(now))
			if err != nil {
				log.Errorf("failed to ensure ledger row for occurrence %s: %v", occ.ID, err)
				return nil, apierror.InternalServerError
			}
			if instance.GuestCount >= instance.Capacity {
				continue
			}
			candidates = append(candidates, candidate{occ: occ, instance: instance})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].occ.BeginsAt.Before(candidates[j].occ.BeginsAt)
	})

	for _, c := range candidates {
		if len(slots) >= limit {
			break
		}
		slots = append(slots, &SlotResponse{
			OccurrenceID:   c.occ.ID,
			BeginsAt:       utils.FormatEpoch(utils.ToEpoch(c.occ.BeginsAt)),
			EndsAt:         utils.FormatEpoch(utils.ToEpoch(c.occ.EndsAt)),
			AvailableSeats: c.instance.Capacity - c.instance.GuestCount,
		})
	}
	return slots, nil
}

// GetOccurrenceDetail fetches display data live from the provider right
// before it is shown. Titles, descriptions and conferencing links can
// change upstream between availability-check time and registration time,
// so nothing from the slot lookup is reused here.
func (m *DefaultMeetingService) GetOccurrenceDetail(ctx context.Context, occurrenceID string) (*OccurrenceDetailResponse, apierror.ErrorResponse) {
	event, err := m.Calendar.GetEvent(ctx, occurrenceID)
	if errors.Is(err, calendarclient.ErrEventNotFound) {
		return nil, apierror.EventNotFoundError
	}
	if err != nil {
		metric.ProviderErrors.WithLabelValues("get_event").Inc()
		log.Errorf("failed to fetch occurrence %s: %v", occurrenceID, err)
		return nil, apierror.ProviderUnavailableError
	}

	return &OccurrenceDetailResponse{
		OccurrenceID:     event.ID,
		Title:            event.Title,
		Description:      event.Description,
		ConferencingLink: event.ConferencingLink(),
		BeginsAt:         utils.FormatEpoch(utils.ToEpoch(event.BeginsAt)),
		EndsAt:           utils.FormatEpoch(utils.ToEpoch(event.EndsAt)),
		Host:             event.Properties["host"],
		FormType:         event.Properties["form_type"],
	}, nil
}

// Register admits a user into an occurrence. The availability check a user
// saw earlier proves nothing by registration time, so capacity is
// re-checked inside the ledger transaction rather than trusted.
func (m *DefaultMeetingService) Register(ctx context.Context, req *RegisterRequest) (*RegistrationResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := m.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	email := utils.NormalizeEmail(req.Email)
	beginsAt, err := utils.FromEpoch(req.BeginsAt)
	if err != nil {
		return nil, apierror.MalformedBodyError
	}

	now := m.Now()
	if beginsAt <= utils.ToEpoch(now) {
		metric.Registrations.WithLabelValues("past").Inc()
		return nil, apierror.PastEventError
	}

	instance, apierr := m.resolveInstance(ctx, req.OccurrenceID, beginsAt, utils.ToEpoch(now))
	if apierr != nil {
		return nil, apierr
	}

	outcome, reg, err := m.Ledger.Register(instance.ID, req.FullName, email, utils.ToEpoch(now))
	if err != nil {
		metric.Registrations.WithLabelValues("error").Inc()
		log.Errorf("registration transaction failed for occurrence %s: %v", req.OccurrenceID, err)
		return nil, apierror.InternalServerError
	}

	switch outcome {
	case repository.RegisterFull:
		metric.Registrations.WithLabelValues("full").Inc()
		return nil, apierror.EventFullError

	case repository.RegisterDuplicate:
		metric.Registrations.WithLabelValues("already_registered").Inc()
		return m.toRegistrationResponse(RegistrationExists, instance, reg), nil

	case repository.RegisterCreated:
		metric.Registrations.WithLabelValues("created").Inc()
		instance.GuestCount++
		return m.toRegistrationResponse(RegistrationCreated, instance, reg), nil
	}

	log.Errorf("unexpected register outcome %d for occurrence %s", outcome, req.OccurrenceID)
	return nil, apierror.InternalServerError
}

// GetRegistrationCount is the read-only fullness check UIs poll.
func (m *DefaultMeetingService) GetRegistrationCount(ctx context.Context, occurrenceID, rawBeginsAt string) (*RegistrationCountResponse, apierror.ErrorResponse) {
	beginsAt, err := utils.FromEpoch(rawBeginsAt)
	if err != nil {
		return nil, apierror.NewInvalidParamTypeError("start_time", "RFC3339 timestamp")
	}

	instance, apierr := m.resolveInstance(ctx, occurrenceID, beginsAt, utils.NowUTC())
	if apierr != nil {
		return nil, apierr
	}

	count, err := m.Ledger.CountRegistrations(instance.ID)
	if err != nil {
		log.Errorf("failed to count registrations for occurrence %s: %v", occurrenceID, err)
		return nil, apierror.InternalServerError
	}

	return &RegistrationCountResponse{
		OccurrenceID: occurrenceID,
		BeginsAt:     utils.FormatEpoch(beginsAt),
		Count:        count,
		Capacity:     instance.Capacity,
		Available:    instance.Capacity - count,
	}, nil
}

// resolveInstance finds the ledger row for (occurrence_id, begins_at),
// lazily creating one after confirming the occurrence with the provider.
// A pre-existing row counts as confirmation: it was only ever created from
// provider data in the first place.
func (m *DefaultMeetingService) resolveInstance(ctx context.Context, occurrenceID string, beginsAt, now int64) (*entity.MeetingOccurrence, apierror.ErrorResponse) {
	instance, err := m.Ledger.FindOccurrence(occurrenceID, beginsAt)
	if err != nil {
		log.Errorf("failed to look up occurrence %s: %v", occurrenceID, err)
		return nil, apierror.InternalServerError
	}
	if instance != nil {
		return instance, nil
	}

	event, err := m.Calendar.GetEvent(ctx, occurrenceID)
	if errors.Is(err, calendarclient.ErrEventNotFound) {
		metric.Registrations.WithLabelValues("not_found").Inc()
		return nil, apierror.EventNotFoundError
	}
	if err != nil {
		metric.ProviderErrors.WithLabelValues("get_event").Inc()
		log.Errorf("failed to confirm occurrence %s upstream: %v", occurrenceID, err)
		return nil, apierror.ProviderUnavailableError
	}

	// Occurrence identity is ambiguous without the start time; a mismatch
	// means the caller is holding a stale or fabricated reference.
	if utils.ToEpoch(event.BeginsAt) != beginsAt {
		metric.Registrations.WithLabelValues("not_found").Inc()
		return nil, apierror.EventNotFoundError
	}

	instance, err = m.Ledger.EnsureOccurrence(occurrenceID, beginsAt, m.DefaultCapacity, now)
	if err != nil {
		log.Errorf("failed to create ledger row for occurrence %s: %v", occurrenceID, err)
		return nil, apierror.InternalServerError
	}
	return instance, nil
}

func (m *DefaultMeetingService) toRegistrationResponse(status string, instance *entity.MeetingOccurrence, reg *entity.Registration) *RegistrationResponse {
	return &RegistrationResponse{
		Status:         status,
		OccurrenceID:   instance.OccurrenceID,
		BeginsAt:       utils.FormatEpoch(instance.BeginsAt),
		FullName:       reg.FullName,
		Email:          reg.Email,
		AvailableSeats: instance.Capacity - instance.GuestCount,
	}
}
