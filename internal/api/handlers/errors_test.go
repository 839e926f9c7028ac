package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/safecli/safecli/internal/services"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrMissingFields, http.StatusBadRequest},
		{services.ErrInvalidOutcome, http.StatusBadRequest},
		{fmt.Errorf("%w: bad url", services.ErrInvalidProvider), http.StatusBadRequest},
		{services.ErrInvalidEndpointToken, http.StatusUnauthorized},
		{services.ErrAccountLocked, http.StatusUnauthorized},
		{services.ErrAccessDenied, http.StatusForbidden},
		{services.ErrRequestNotFound, http.StatusNotFound},
		{services.ErrEndpointUnavailable, http.StatusNotFound},
		{services.ErrAlreadyProcessed, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/blacklist", nil)

	respondError(c, errors.New("constraint failed: secret table detail"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, w.Body.String(), "internal server error")
}
