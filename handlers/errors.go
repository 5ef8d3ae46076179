package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// HTTP 职责：将 Service error 映射为 HTTP 状态码
func respondError(c echo.Context, err error) error {
	var denied *services.PolicyError
	switch {
	case errors.As(err, &denied):
		return c.JSON(http.StatusForbidden, map[string]string{
			"error":  "message not allowed",
			"reason": denied.Reason,
		})
	case errors.Is(err, services.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, services.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, services.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// reasonFor is the error reason reported on the live channel.
func reasonFor(err error) string {
	var denied *services.PolicyError
	switch {
	case errors.As(err, &denied):
		return denied.Reason
	case errors.Is(err, services.ErrNotFound):
		return "not-found"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid-input"
	case errors.Is(err, services.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	default:
		return "store-failure"
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func parseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// partnerParam reads the :kind/:id pair from the route.
func partnerParam(c echo.Context) (models.ActorRef, bool) {
	kind, err := models.ParseActorKind(c.Param("kind"))
	if err != nil {
		return models.ActorRef{}, false
	}
	id, ok := parseID(c.Param("id"))
	if !ok {
		return models.ActorRef{}, false
	}
	return models.ActorRef{Kind: kind, ID: id}, true
}

// pageParams reads limit/offset, clamping limit to max.
func pageParams(c echo.Context, def, max int) services.Page {
	page := services.Page{Limit: def}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		page.Limit = v
	}
	if page.Limit > max {
		page.Limit = max
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		page.Offset = v
	}
	return page
}

// recipientKind defaults to EndUser when the client leaves it out.
func recipientKind(s string) (models.ActorKind, error) {
	if s == "" {
		return models.KindEndUser, nil
	}
	return models.ParseActorKind(s)
}
