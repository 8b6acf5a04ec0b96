package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
)

const contextTokenKey = "userToken"

var errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")

// newJWTConfig returns the JWT auth middleware config; lookup is the echo token lookup ("header:..." or "query:...").
func newJWTConfig(conf *core.Config, lookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(auth.Claims),
		TokenLookup:   lookup,
	}
}

// newOptionalJWTConfig authenticates requests that carry a token and lets anonymous ones through.
func newOptionalJWTConfig(conf *core.Config) middleware.JWTConfig {
	cfg := newJWTConfig(conf, "header:"+echo.HeaderAuthorization)
	cfg.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return cfg
}

// GenerateToken signs claims the way the backend does. Used by tools and tests.
func GenerateToken(secretKey string, usr core.Profile, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &auth.Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		ID:    usr.ID,
		Name:  usr.Name,
		Email: usr.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextToken(ctx echo.Context) (*jwt.Token, bool) {
	token, ok := ctx.Get(contextTokenKey).(*jwt.Token)
	return token, ok
}

// getContextUser returns the caller's profile and raw token, forwarded as is to the backend.
func getContextUser(ctx echo.Context) (core.Profile, string, error) {
	if token, ok := getContextToken(ctx); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			if usr := claims.Profile(); usr.ID != "" {
				return usr, token.Raw, nil
			}
		}
	}
	return core.Profile{}, "", errUnauthorized
}

// getOptionalUser is getContextUser for endpoints open to anonymous visitors.
func getOptionalUser(ctx echo.Context) (core.Profile, string) {
	usr, token, err := getContextUser(ctx)
	if err != nil {
		return core.Profile{}, ""
	}
	return usr, token
}
