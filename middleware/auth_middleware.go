package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const actorKey = "actor"

// BearerToken reads the credential from the Authorization header, falling
// back to the token query parameter (browsers cannot set headers on a
// websocket upgrade).
func BearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header")
		}
		return parts[1], nil
	}
	token := strings.TrimSpace(strings.TrimPrefix(c.QueryParam("token"), "Bearer "))
	if token == "" {
		return "", errors.New("missing authorization token")
	}
	return token, nil
}

// AuthMiddleware resolves the caller within timeout and stores the actor on
// the context. Bad credentials and timeouts get 401; a failing store is a 500.
func AuthMiddleware(directory services.Directory, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := BearerToken(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": err.Error(),
				})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			actor, err := directory.Authenticate(ctx, token)
			switch {
			case err == nil:
			case errors.Is(err, services.ErrUnauthenticated):
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
				log.Warn().Err(err).Dur("timeout", timeout).Msg("credential resolution timed out")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication timed out",
				})
			default:
				log.Error().Err(err).Msg("credential resolution failed")
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "failed to resolve credential",
				})
			}

			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

func AdminAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := CurrentActor(c)
			if actor == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "unauthorized",
				})
			}
			if !actor.IsSupportAdmin() {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "admin role required",
				})
			}
			return next(c)
		}
	}
}

// CurrentActor returns the actor set by AuthMiddleware, or nil.
func CurrentActor(c echo.Context) *models.Actor {
	actor, _ := c.Get(actorKey).(*models.Actor)
	return actor
}

// SetActor is used by tests to skip AuthMiddleware.
func SetActor(c echo.Context, actor *models.Actor) {
	c.Set(actorKey, actor)
}
