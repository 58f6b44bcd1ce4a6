package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Input(ReasonMissingInput, "x"), http.StatusBadRequest},
		{Unauthorized(ReasonNoToken, "x", nil), http.StatusUnauthorized},
		{Forbidden(ReasonRoleRequired, "x"), http.StatusForbidden},
		{Forbidden(ReasonInvalidRole, "x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{Upstream(ReasonExchangeFailed, "x", nil), http.StatusUnauthorized},
		{Upstream(ReasonProviderLogoutFailed, "x", nil), http.StatusInternalServerError},
		{Internal("x", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status(), "reason %s", tc.err.Reason)
	}
}

func TestAsAndIsReasonThroughWrapping(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("login: %w", Unauthorized(ReasonInvalidTOTP, "Invalid TOTP code", cause))

	assert.True(t, IsReason(wrapped, ReasonInvalidTOTP))
	assert.False(t, IsReason(wrapped, ReasonNoToken))
	assert.ErrorIs(t, wrapped, cause)

	plain := As(errors.New("unclassified"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, http.StatusInternalServerError, plain.Status())
}

func TestAbortWritesCodeAndMessage(t *testing.T) {
	g := gin.New()
	g.GET("/", func(c *gin.Context) {
		Abort(c, Unauthorized(ReasonNoToken, "Authentication required", nil))
	})
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NoToken", body["code"])
	assert.Equal(t, "Authentication required", body["error"])
}
