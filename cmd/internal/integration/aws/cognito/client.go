package cognitoclient

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

type User struct {
	Email    string
	Password string
}

type UserLogin struct {
	Email    string
	Password string
}

type UserConfirmation struct {
	Email string
	Code  string
}

type AuthCreate struct {
	AccessToken string
	IDToken     string
}

type CognitoInterface interface {
	SignUp(user *User) (string, error)
	SignIn(login *UserLogin) (*AuthCreate, error)
	ConfirmAccount(confirmation *UserConfirmation) error
	AdminDeleteUser(email string) error
}

type CognitoClient struct {
	client     *cognitoidentityprovider.Client
	clientID   string
	userPoolID string
}

func InitCognitoClient(clientID, userPoolID string) (*CognitoClient, error) {
	if clientID == "" || userPoolID == "" {
		return nil, errors.New("COGNITO_CLIENT_ID and COGNITO_USER_POOL_ID must be set")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}

	return &CognitoClient{
		client:     cognitoidentityprovider.NewFromConfig(cfg),
		clientID:   clientID,
		userPoolID: userPoolID,
	}, nil
}

// SignUp creates the user on Cognito and returns its subject UUID. Cognito
// sends the verification code email itself.
func (c *CognitoClient) SignUp(user *User) (string, error) {
	out, err := c.client.SignUp(context.Background(), &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(user.Email),
		Password: aws.String(user.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(user.Email)},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UserSub), nil
}

func (c *CognitoClient) SignIn(login *UserLogin) (*AuthCreate, error) {
	out, err := c.client.InitiateAuth(context.Background(), &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": login.Email,
			"PASSWORD": login.Password,
		},
	})
	if err != nil {
		return nil, err
	}
	if out.AuthenticationResult == nil {
		return nil, errors.New("cognito returned no authentication result")
	}
	return &AuthCreate{
		AccessToken: aws.ToString(out.AuthenticationResult.AccessToken),
		IDToken:     aws.ToString(out.AuthenticationResult.IdToken),
	}, nil
}

func (c *CognitoClient) ConfirmAccount(confirmation *UserConfirmation) error {
	_, err := c.client.ConfirmSignUp(context.Background(), &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(confirmation.Email),
		ConfirmationCode: aws.String(confirmation.Code),
	})
	return err
}

func (c *CognitoClient) AdminDeleteUser(email string) error {
	_, err := c.client.AdminDeleteUser(context.Background(), &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
	})
	return err
}
