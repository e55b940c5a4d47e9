package echoapi

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyHeader = "apikey"

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// newAPIKeyMiddleware only lets through requests carrying the service API key whose bcrypt
// hash is returned by `hash`, read on every request. Without a hash every request is rejected.
// Accepted keys are cached per hash, so a rotated hash stops accepting the old key at once.
func newAPIKeyMiddleware(hash func() string) echo.MiddlewareFunc {
	type verifiedKey struct{ hash, key string }
	var verified sync.Map

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key, h := ctx.Request().Header.Get(apiKeyHeader), hash()
			if key == "" || h == "" {
				return errInvalidAPIKey
			}
			vk := verifiedKey{hash: h, key: key}
			if _, ok := verified.Load(vk); !ok {
				if err := bcrypt.CompareHashAndPassword([]byte(h), []byte(key)); err != nil {
					return errInvalidAPIKey
				}
				verified.Store(vk, struct{}{})
			}
			return next(ctx)
		}
	}
}
