package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdP struct {
	srv          *httptest.Server
	tokenCalls   atomic.Int32
	logoutCalls  atomic.Int32
	tokenStatus  []int
	logoutStatus []int
	lastForm     atomic.Value
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	f := &fakeIdP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.tokenCalls.Add(1))
		require.NoError(t, r.ParseForm())
		f.lastForm.Store(r.PostForm)
		if n <= len(f.tokenStatus) && f.tokenStatus[n-1] != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus[n-1])
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token is not active"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    300,
		})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.logoutCalls.Add(1))
		require.NoError(t, r.ParseForm())
		f.lastForm.Store(r.PostForm)
		if n <= len(f.logoutStatus) {
			w.WriteHeader(f.logoutStatus[n-1])
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdP) client(t *testing.T, mod func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		TokenURL:      f.srv.URL + "/token",
		LogoutURL:     f.srv.URL + "/logout",
		ClientID:      "zelosify-backend",
		Secrets:       StaticSecret("s3cret"),
		RetryInterval: time.Millisecond,
		HTTPClient:    f.srv.Client(),
	}
	if mod != nil {
		mod(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestRefreshSendsConfidentialClientGrant(t *testing.T) {
	idp := newFakeIdP(t)
	c := idp.client(t, nil)

	pair, err := c.Refresh(context.Background(), "pending-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)

	form := idp.lastForm.Load().(url.Values)
	assert.Equal(t, []string{"refresh_token"}, form["grant_type"])
	assert.Equal(t, []string{"pending-refresh"}, form["refresh_token"])
	assert.Equal(t, []string{"zelosify-backend"}, form["client_id"])
	assert.Equal(t, []string{"s3cret"}, form["client_secret"])
}

func TestRefreshRejectedIsNotRetried(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenStatus = []int{http.StatusBadRequest, http.StatusOK}
	c := idp.client(t, func(cfg *Config) { cfg.ExchangeRetries = 3 })

	_, err := c.Refresh(context.Background(), "used-refresh")
	require.Error(t, err)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Contains(t, pe.Body, "invalid_grant")
	assert.Equal(t, int32(1), idp.tokenCalls.Load())
}

func TestRefreshRetriesGatewayErrorsWhenConfigured(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenStatus = []int{http.StatusServiceUnavailable, http.StatusBadGateway}
	c := idp.client(t, func(cfg *Config) { cfg.ExchangeRetries = 2 })

	pair, err := c.Refresh(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, int32(3), idp.tokenCalls.Load())
}

func TestRefreshDefaultsToSingleAttempt(t *testing.T) {
	idp := newFakeIdP(t)
	idp.tokenStatus = []int{http.StatusServiceUnavailable}
	c := idp.client(t, nil)

	_, err := c.Refresh(context.Background(), "r")
	require.Error(t, err)
	assert.Equal(t, int32(1), idp.tokenCalls.Load())
}

func TestPasswordGrant(t *testing.T) {
	idp := newFakeIdP(t)
	c := idp.client(t, nil)

	pair, err := c.PasswordGrant(context.Background(), "vendor1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	form := idp.lastForm.Load().(url.Values)
	assert.Equal(t, []string{"password"}, form["grant_type"])
	assert.Equal(t, []string{"vendor1"}, form["username"])
}

func TestLogoutRetriesServerErrors(t *testing.T) {
	idp := newFakeIdP(t)
	idp.logoutStatus = []int{http.StatusInternalServerError}
	c := idp.client(t, func(cfg *Config) { cfg.LogoutRetries = 2 })

	require.NoError(t, c.Logout(context.Background(), "rt"))
	assert.Equal(t, int32(2), idp.logoutCalls.Load())
	form := idp.lastForm.Load().(url.Values)
	assert.Equal(t, []string{"rt"}, form["refresh_token"])
}

func TestLogoutClientErrorIsPermanent(t *testing.T) {
	idp := newFakeIdP(t)
	idp.logoutStatus = []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest}
	c := idp.client(t, func(cfg *Config) { cfg.LogoutRetries = 2 })

	err := c.Logout(context.Background(), "rt")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, int32(1), idp.logoutCalls.Load())
}

func TestAdminSecretSource(t *testing.T) {
	var secretCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/Zelosify/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"admin-token","token_type":"Bearer","expires_in":60}`))
	})
	mux.HandleFunc("/admin/realms/Zelosify/clients", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		assert.Equal(t, "zelosify-backend", r.URL.Query().Get("clientId"))
		_, _ = w.Write([]byte(`[{"id":"uuid-1","clientId":"zelosify-backend"}]`))
	})
	mux.HandleFunc("/admin/realms/Zelosify/clients/uuid-1/client-secret", func(w http.ResponseWriter, r *http.Request) {
		secretCalls.Add(1)
		_, _ = w.Write([]byte(`{"type":"secret","value":"looked-up"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewAdminSecretSource(srv.URL, "Zelosify", "zelosify-backend", "admin-cli", "admin-secret", srv.Client())
	s, err := src.ClientSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "looked-up", s)

	_, err = src.ClientSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), secretCalls.Load())

	src.Invalidate()
	_, err = src.ClientSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), secretCalls.Load())
}

func TestStaticSecretEmpty(t *testing.T) {
	_, err := StaticSecret("").ClientSecret(context.Background())
	assert.Error(t, err)
}
