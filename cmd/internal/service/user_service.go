package service

import (
	"errors"
	"strconv"

	"dealintake/cmd/internal/domain/entity"
	cognitoclient "dealintake/cmd/internal/integration/aws/cognito"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/apierror"

	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

type UserRepository interface {
	FindByID(id int) (*entity.User, error)
	FindBySub(sub string) (*entity.User, error)
	FindAll() ([]*entity.User, error)
	FindByEmail(email string) (*entity.User, error)
	ExistsByEmail(email string) (bool, error)
	Save(user *entity.User) error
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=2,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64,hasspecial,hasdigit,hasupper,haslower"`
}

type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type ConfirmSignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=1,max=6"`
}

type UserResponse struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type UserLoginResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

type DefaultUserService struct {
	UserRepo UserRepository
	Validate *validator.Validate
	Cognito  cognitoclient.CognitoInterface
}

func NewUserService(userRepo UserRepository, validate *validator.Validate, cogClient cognitoclient.CognitoInterface) *DefaultUserService {
	return &DefaultUserService{UserRepo: userRepo, Validate: validate, Cognito: cogClient}
}

func (u *DefaultUserService) GetUsers(subID string) ([]*UserResponse, apierror.ErrorResponse) {
	caller, err := u.UserRepo.FindBySub(subID)
	if err != nil {
		log.Errorf("failed to check if user %s is admin: %v", subID, err)
		return nil, apierror.InternalServerError
	}
	if caller == nil || !caller.IsAdmin {
		return nil, apierror.ForbiddenError
	}

	users, err := u.UserRepo.FindAll()
	if err != nil {
		log.Errorf("failed to fetch all users: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*UserResponse, len(users))
	for i, user := range users {
		resp[i] = toUserResponse(user)
	}
	return resp, nil
}

func (u *DefaultUserService) GetUser(rawID, subID string) (*UserResponse, apierror.ErrorResponse) {
	user, apierr := u.fetchUser(rawID, subID)
	if apierr != nil {
		return nil, apierr
	}

	if user == nil {
		return nil, apierror.NotFoundError
	}
	return toUserResponse(user), nil
}

// CreateUser creates a new dashboard user on Cognito (as well as in our
// database), and sends a verification code to the user's email address.
// Accounts start without admin rights; promotion is a manual step.
func (u *DefaultUserService) CreateUser(req *CreateUserRequest) apierror.ErrorResponse {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}
	req.Email = utils.NormalizeEmail(req.Email)

	found, err := u.UserRepo.ExistsByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to check if user already exists: %v", err)
		return apierror.InternalServerError
	}

	if found {
		return apierror.UserAlreadyExistsError
	}

	cogUser := &cognitoclient.User{Email: req.Email, Password: req.Password}
	uuid, apierr, revert := handleUserSignup(u.Cognito, cogUser)
	if apierr != nil {
		return apierr
	}

	now := utils.NowUTC()
	user := &entity.User{
		SubUUID:       uuid,
		Username:      req.Username,
		Email:         req.Email,
		EmailVerified: false,
		IsAdmin:       false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = u.UserRepo.Save(user)
	if err != nil {
		revert()
		log.Errorf("failed to create user: %v", err)
		return apierror.InternalServerError
	}
	return nil
}

func (u *DefaultUserService) Login(req *UserLoginRequest) (*UserLoginResponse, apierror.ErrorResponse) {
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}
	req.Email = utils.NormalizeEmail(req.Email)

	user, err := u.UserRepo.FindByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to fetch user from database: %v", err)
		return nil, apierror.InternalServerError
	}

	if user == nil {
		return nil, apierror.IDPUserNotFoundError
	}

	credentials := &cognitoclient.UserLogin{
		Email:    req.Email,
		Password: req.Password,
	}

	auth, apierr := handleUserSignin(u.Cognito, credentials)
	if apierr != nil {
		return nil, apierr
	}
	return &UserLoginResponse{AccessToken: auth.AccessToken, IDToken: auth.IDToken}, nil
}

func (u *DefaultUserService) ConfirmSignup(req *ConfirmSignupRequest) apierror.ErrorResponse {
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}
	req.Email = utils.NormalizeEmail(req.Email)

	user, err := u.UserRepo.FindByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to fetch user from database: %v", err)
		return apierror.InternalServerError
	}

	if user == nil {
		return apierror.IDPUserNotFoundError
	}

	if user.EmailVerified {
		return apierror.UserAlreadyConfirmedError
	}

	confirms := &cognitoclient.UserConfirmation{
		Email: req.Email,
		Code:  req.Code,
	}

	apierr := handleSignupConfirmation(u.Cognito, confirms)
	if apierr != nil {
		return apierr
	}

	now := utils.NowUTC()
	user.EmailVerified = true
	user.UpdatedAt = now
	err = u.UserRepo.Save(user)
	if err != nil {
		log.Errorf("failed to update user (%d) verified status: %v", user.ID, err)
	}
	return nil
}

func (u *DefaultUserService) fetchUser(rawID, sub string) (*entity.User, apierror.ErrorResponse) {
	if rawID == "@me" {
		return u.fetchBySub(sub)
	}
	return u.fetchByID(rawID)
}

func (u *DefaultUserService) fetchBySub(sub string) (*entity.User, apierror.ErrorResponse) {
	user, err := u.UserRepo.FindBySub(sub)
	if err != nil {
		log.Errorf("failed to find user (%s) by sub: %v", sub, err)
		return nil, apierror.InternalServerError
	}
	return user, nil
}

func (u *DefaultUserService) fetchByID(rawID string) (*entity.User, apierror.ErrorResponse) {
	userID, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, apierror.NewInvalidParamTypeError("id", "int32")
	}
	user, err := u.UserRepo.FindByID(userID)
	if err != nil {
		log.Errorf("failed to find user (%s) by id: %v", rawID, err)
		return nil, apierror.InternalServerError
	}
	return user, nil
}

func handleUserSignup(cogClient cognitoclient.CognitoInterface, req *cognitoclient.User) (string, apierror.ErrorResponse, func()) {
	revert := func() {
		_ = cogClient.AdminDeleteUser(req.Email)
	}

	uuid, err := cogClient.SignUp(req)
	if err == nil {
		return uuid, nil, revert
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidPasswordException":
			return "", apierror.IDPInvalidPasswordError, revert
		case "UsernameExistsException":
			return "", apierror.IDPExistingEmailError, revert
		default:
			log.Errorf("signup failed for user (%s): %s - %s", req.Email, apiErr.ErrorCode(), apiErr.ErrorMessage())
			return "", apierror.InternalServerError, revert
		}
	}

	log.Errorf("failed to signup user (%s): %v", req.Email, err)
	return "", apierror.InternalServerError, revert
}

func handleUserSignin(cogClient cognitoclient.CognitoInterface, req *cognitoclient.UserLogin) (*cognitoclient.AuthCreate, apierror.ErrorResponse) {
	auth, err := cogClient.SignIn(req)
	if err == nil {
		return auth, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UserNotFoundException":
			return nil, apierror.IDPUserNotFoundError
		case "UserNotConfirmedException":
			return nil, apierror.IDPUserNotConfirmedError
		case "NotAuthorizedException":
			return nil, apierror.IDPCredentialsMismatchError
		default:
			log.Errorf("signin failed for user (%s): %s - %s", req.Email, apiErr.ErrorCode(), apiErr.ErrorMessage())
			return nil, apierror.InternalServerError
		}
	}

	log.Errorf("failed to signin user (%s): %v", req.Email, err)
	return nil, apierror.InternalServerError
}

func handleSignupConfirmation(cogClient cognitoclient.CognitoInterface, req *cognitoclient.UserConfirmation) apierror.ErrorResponse {
	err := cogClient.ConfirmAccount(req)
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "CodeMismatchException":
			return apierror.IDPConfirmCodeMismatchError
		case "ExpiredCodeException":
			return apierror.IDPConfirmCodeExpiredError
		case "UserNotFoundException":
			return apierror.IDPUserNotFoundError
		default:
			log.Errorf("confirmation failed for user (%s): %s - %s", req.Email, apiErr.ErrorCode(), apiErr.ErrorMessage())
			return apierror.InternalServerError
		}
	}

	log.Errorf("failed to confirm user (%s): %v", req.Email, err)
	return apierror.InternalServerError
}

func toUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		CreatedAt: utils.FormatEpoch(user.CreatedAt),
		UpdatedAt: utils.FormatEpoch(user.UpdatedAt),
	}
}
