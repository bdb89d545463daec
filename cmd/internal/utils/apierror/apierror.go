package apierror

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is what services hand back to routes instead of raw errors.
// Business outcomes (event full, past event, already exists) get their own
// values so every caller has to deal with them explicitly.
type ErrorResponse interface {
	Code() int
	Error() string
}

type apiError struct {
	Status  int      `json:"-"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *apiError) Code() int {
	return e.Status
}

func (e *apiError) Error() string {
	return e.Message
}

func NewSimple(code int, message string) ErrorResponse {
	return &apiError{Status: code, Message: message}
}

func NewMissingParamError(param string) ErrorResponse {
	return &apiError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("Missing required parameter: %s", param),
	}
}

func NewInvalidParamTypeError(param, expected string) ErrorResponse {
	return &apiError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("Parameter %s must be of type %s", param, expected),
	}
}

// FromValidationError flattens validator.ValidationErrors into a 400 with
// one detail line per failed field.
func FromValidationError(err error) ErrorResponse {
	resp := &apiError{
		Status:  http.StatusBadRequest,
		Message: "Request validation failed",
	}

	valErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return resp
	}

	for _, ve := range valErrs {
		resp.Details = append(resp.Details, fmt.Sprintf("%s failed on '%s'", ve.Field(), ve.Tag()))
	}
	return resp
}

var (
	InternalServerError   = NewSimple(http.StatusInternalServerError, "Something went wrong on our side")
	MalformedBodyError    = NewSimple(http.StatusBadRequest, "Request body is malformed")
	NotFoundError         = NewSimple(http.StatusNotFound, "Resource not found")
	InvalidAuthTokenError = NewSimple(http.StatusUnauthorized, "Auth token is missing or invalid")
	ForbiddenError        = NewSimple(http.StatusForbidden, "You are not allowed to do that")

	// Meeting registration outcomes
	EventFullError     = NewSimple(http.StatusConflict, "This meeting is full")
	PastEventError     = NewSimple(http.StatusGone, "This meeting has already started")
	InvalidEmailError  = NewSimple(http.StatusBadRequest, "Please enter a valid email address")
	EventNotFoundError = NewSimple(http.StatusNotFound, "Meeting not found")

	// Calendar provider
	ProviderUnavailableError = NewSimple(http.StatusBadGateway, "Calendar service is unavailable, please try again")

	// User / identity provider
	UserAlreadyExistsError      = NewSimple(http.StatusConflict, "A user with this email already exists")
	UserAlreadyConfirmedError   = NewSimple(http.StatusConflict, "This account is already confirmed")
	IDPUserNotFoundError        = NewSimple(http.StatusNotFound, "No account found for this email")
	IDPUserNotConfirmedError    = NewSimple(http.StatusForbidden, "Account is not confirmed yet")
	IDPCredentialsMismatchError = NewSimple(http.StatusUnauthorized, "Email or password is incorrect")
	IDPInvalidPasswordError     = NewSimple(http.StatusBadRequest, "Password does not meet the requirements")
	IDPExistingEmailError       = NewSimple(http.StatusConflict, "A user with this email already exists")
	IDPConfirmCodeMismatchError = NewSimple(http.StatusBadRequest, "Confirmation code does not match")
	IDPConfirmCodeExpiredError  = NewSimple(http.StatusBadRequest, "Confirmation code has expired")
)
