package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&services.PolicyError{Reason: services.ReasonCrossCompany}, http.StatusForbidden},
		{fmt.Errorf("user 9: %w", services.ErrNotFound), http.StatusNotFound},
		{services.ErrUnauthenticated, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("empty: %w", services.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respondError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, &services.PolicyError{Reason: services.ReasonSelfMessage}))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "self-message", body["reason"])
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, "cross-company", reasonFor(&services.PolicyError{Reason: services.ReasonCrossCompany}))
	assert.Equal(t, "not-found", reasonFor(fmt.Errorf("x: %w", services.ErrNotFound)))
	assert.Equal(t, "invalid-input", reasonFor(services.ErrInvalidInput))
	assert.Equal(t, "store-failure", reasonFor(fmt.Errorf("append: %w", services.ErrStoreFailure)))
}

func TestPageParams(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil), httptest.NewRecorder())
	assert.Equal(t, services.Page{Limit: 200, Offset: 20}, pageParams(c, 50, 200))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=abc", nil), httptest.NewRecorder())
	assert.Equal(t, services.Page{Limit: 50}, pageParams(c, 50, 200))
}

func TestPartnerParam(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("kind", "id")

	c.SetParamValues("SupportAdmin", "4")
	ref, ok := partnerParam(c)
	require.True(t, ok)
	assert.Equal(t, models.ActorRef{Kind: models.KindSupportAdmin, ID: 4}, ref)

	c.SetParamValues("System", "4")
	_, ok = partnerParam(c)
	assert.False(t, ok)

	c.SetParamValues("EndUser", "0")
	_, ok = partnerParam(c)
	assert.False(t, ok)
}
