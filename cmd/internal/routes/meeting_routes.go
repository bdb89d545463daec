package routes

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"dealintake/cmd/internal/service"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type MeetingService interface {
	FindAvailableSlots(ctx context.Context, formType, host string, limit int) ([]*service.SlotResponse, apierror.ErrorResponse)
	GetOccurrenceDetail(ctx context.Context, occurrenceID string) (*service.OccurrenceDetailResponse, apierror.ErrorResponse)
	Register(ctx context.Context, req *service.RegisterRequest) (*service.RegistrationResponse, apierror.ErrorResponse)
	GetRegistrationCount(ctx context.Context, occurrenceID, beginsAt string) (*service.RegistrationCountResponse, apierror.ErrorResponse)
}

type DefaultMeetingRoute struct {
	MeetingService MeetingService
}

func NewMeetingDefault(meetingService MeetingService) *DefaultMeetingRoute {
	return &DefaultMeetingRoute{MeetingService: meetingService}
}

func (m *DefaultMeetingRoute) GetSlots(c echo.Context) error {
	category := strings.TrimSpace(c.QueryParam("category"))
	if category == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("category"))
	}
	host := strings.TrimSpace(c.QueryParam("host"))

	limit := 0
	if rawLimit := c.QueryParam("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			errResp := apierror.NewInvalidParamTypeError("limit", "int32")
			return c.JSON(errResp.Code(), errResp)
		}
		limit = parsed
	}

	slots, apierr := m.MeetingService.FindAvailableSlots(c.Request().Context(), category, host, limit)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"slots": slots}
	return c.JSON(http.StatusOK, &resp)
}

func (m *DefaultMeetingRoute) GetOccurrenceDetail(c echo.Context) error {
	occurrenceID := strings.TrimSpace(c.Param("id"))
	if occurrenceID == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("id"))
	}

	detail, apierr := m.MeetingService.GetOccurrenceDetail(c.Request().Context(), occurrenceID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, detail)
}

func (m *DefaultMeetingRoute) Register(c echo.Context) error {
	var req service.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	reg, apierr := m.MeetingService.Register(c.Request().Context(), &req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	// A repeated signup is confirmed with 200 instead of 201; the body says
	// already_registered so the UI can phrase it as "you're on the list".
	status := http.StatusCreated
	if reg.Status == service.RegistrationExists {
		status = http.StatusOK
	}
	return c.JSON(status, reg)
}

func (m *DefaultMeetingRoute) GetRegistrationCount(c echo.Context) error {
	occurrenceID := strings.TrimSpace(c.Param("id"))
	if occurrenceID == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("id"))
	}
	beginsAt := strings.TrimSpace(c.QueryParam("start_time"))
	if beginsAt == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("start_time"))
	}

	count, apierr := m.MeetingService.GetRegistrationCount(c.Request().Context(), occurrenceID, beginsAt)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, count)
}
