package routes

import (
	"context"
	"net/http"
	"strings"

	"dealintake/cmd/internal/service"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type MeetingAdminService interface {
	CreateEvent(ctx context.Context, req *service.CreateEventRequest, subID string) (*service.EventResponse, apierror.ErrorResponse)
	UpdateEvent(ctx context.Context, eventID string, req *service.UpdateEventRequest, subID string) (*service.EventResponse, apierror.ErrorResponse)
	DeleteEvent(ctx context.Context, eventID, subID string) apierror.ErrorResponse
	PreviewOccurrences(req *service.PreviewOccurrencesRequest, subID string) ([]string, apierror.ErrorResponse)
	SyncEventLinks(ctx context.Context, subID string) (*service.SyncEventLinksResponse, apierror.ErrorResponse)
}

type DefaultMeetingAdminRoute struct {
	AdminService MeetingAdminService
}

func NewMeetingAdminDefault(adminService MeetingAdminService) *DefaultMeetingAdminRoute {
	return &DefaultMeetingAdminRoute{AdminService: adminService}
}

func (a *DefaultMeetingAdminRoute) CreateEvent(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	var req service.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	event, apierr := a.AdminService.CreateEvent(c.Request().Context(), &req, data.Sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, event)
}

func (a *DefaultMeetingAdminRoute) UpdateEvent(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	eventID := strings.TrimSpace(c.Param("id"))
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("id"))
	}

	var req service.UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	event, apierr := a.AdminService.UpdateEvent(c.Request().Context(), eventID, &req, data.Sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, event)
}

func (a *DefaultMeetingAdminRoute) DeleteEvent(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	eventID := strings.TrimSpace(c.Param("id"))
	if eventID == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("id"))
	}

	if apierr := a.AdminService.DeleteEvent(c.Request().Context(), eventID, data.Sub); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusOK)
}

func (a *DefaultMeetingAdminRoute) PreviewOccurrences(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	var req service.PreviewOccurrencesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	preview, apierr := a.AdminService.PreviewOccurrences(&req, data.Sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"occurrences": preview}
	return c.JSON(http.StatusOK, &resp)
}

func (a *DefaultMeetingAdminRoute) SyncEventLinks(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	result, apierr := a.AdminService.SyncEventLinks(c.Request().Context(), data.Sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, result)
}
