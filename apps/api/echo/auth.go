package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/ilmlab/core/identity"
	"github.com/trezcool/ilmlab/core/progress"
)

const (
	contextTokenKey   = "userToken"
	contextSessionKey = "session"
)

// newJWTConfig returns the JWT auth middleware config for tokens signed by the issuer.
func newJWTConfig(tokens *identity.TokenIssuer) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    tokens.SigningKey(),
		SigningMethod: identity.SigningMethod,
		ContextKey:    contextTokenKey,
		Claims:        new(identity.Claims),
	}
}

func getContextClaims(ctx echo.Context) (identity.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*identity.Claims); ok && claims.Subject != "" {
			return *claims, nil
		}
	}
	return identity.Claims{}, errUnauthorized
}

func getContextIdentity(ctx echo.Context) (identity.Identity, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	return claims.Identity(), nil
}

func getContextSession(ctx echo.Context) (*progress.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*progress.Session); ok {
		return sess, nil
	}
	return nil, errNoSession
}
