package routes

import (
	"net/http"
	"strconv"
	"strings"

	"dealintake/cmd/internal/service"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type SubmissionService interface {
	CreateSubmission(req *service.SubmissionRequest) (*service.SubmissionResponse, apierror.ErrorResponse)
	GetSubmissions(subID, formType string, limit, offset int) ([]*service.SubmissionResponse, apierror.ErrorResponse)
	GetSubmission(id int, subID string) (*service.SubmissionResponse, apierror.ErrorResponse)
	RegenerateReport(id int, subID string) apierror.ErrorResponse
}

type DefaultSubmissionRoute struct {
	SubmissionService SubmissionService
}

func NewSubmissionDefault(submissionService SubmissionService) *DefaultSubmissionRoute {
	return &DefaultSubmissionRoute{SubmissionService: submissionService}
}

func (s *DefaultSubmissionRoute) CreateSubmission(c echo.Context) error {
	var req service.SubmissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	submission, apierr := s.SubmissionService.CreateSubmission(&req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, submission)
}

func (s *DefaultSubmissionRoute) GetSubmissions(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	limit, offset := 0, 0
	if rawLimit := c.QueryParam("limit"); rawLimit != "" {
		if limit, err = strconv.Atoi(rawLimit); err != nil {
			errResp := apierror.NewInvalidParamTypeError("limit", "int32")
			return c.JSON(errResp.Code(), errResp)
		}
	}
	if rawOffset := c.QueryParam("offset"); rawOffset != "" {
		if offset, err = strconv.Atoi(rawOffset); err != nil {
			errResp := apierror.NewInvalidParamTypeError("offset", "int32")
			return c.JSON(errResp.Code(), errResp)
		}
	}

	submissions, apierr := s.SubmissionService.GetSubmissions(data.Sub, strings.TrimSpace(c.QueryParam("form_type")), limit, offset)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"submissions": submissions}
	return c.JSON(http.StatusOK, &resp)
}

func (s *DefaultSubmissionRoute) GetSubmission(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errResp := apierror.NewInvalidParamTypeError("id", "int32")
		return c.JSON(errResp.Code(), errResp)
	}

	submission, apierr := s.SubmissionService.GetSubmission(id, data.Sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, submission)
}

func (s *DefaultSubmissionRoute) RegenerateReport(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errResp := apierror.NewInvalidParamTypeError("id", "int32")
		return c.JSON(errResp.Code(), errResp)
	}

	if apierr := s.SubmissionService.RegenerateReport(id, data.Sub); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusAccepted)
}
