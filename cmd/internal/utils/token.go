package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TokenData is the slice of the Cognito ID token the API cares about.
type TokenData struct {
	Sub   string
	Email string
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrExpiredToken = errors.New("token is expired")
	ErrInvalidToken = errors.New("token is invalid")
)

var verifyKey jwt.Keyfunc

// InitTokenVerifier points token verification at the user pool's JWKS
// endpoint. The key set refreshes itself in the background, so key rotation
// on the Cognito side does not require a restart.
func InitTokenVerifier(region, userPoolID string) error {
	url := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s/.well-known/jwks.json", region, userPoolID)
	kf, err := keyfunc.NewDefault([]string{url})
	if err != nil {
		return fmt.Errorf("load cognito jwks: %w", err)
	}
	verifyKey = kf.Keyfunc
	return nil
}

// ParseTokenDataCtx extracts the caller's identity from the Authorization
// header. The token signature is checked against the pool's JWKS before any
// claim is trusted.
func ParseTokenDataCtx(c echo.Context) (*TokenData, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}
	return ParseTokenData(strings.TrimSpace(raw))
}

func ParseTokenData(raw string) (*TokenData, error) {
	if verifyKey == nil {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired())
	if _, err := parser.ParseWithClaims(raw, claims, verifyKey); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}

	data := &TokenData{Sub: sub}
	if email, ok := claims["email"].(string); ok {
		data.Email = email
	}
	return data, nil
}
