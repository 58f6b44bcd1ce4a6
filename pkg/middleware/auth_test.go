package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelosify/zelosify/server/internal/cache"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/internal/sessions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("middleware-test"))
	require.NoError(t, err)
	return s
}

// fakeVerifier accepts the tokens it was given and rejects everything else
type fakeVerifier struct {
	tokens map[string]*models.Claims
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (*models.Claims, error) {
	f.calls++
	if c, ok := f.tokens[raw]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type fakeResolver struct {
	users map[string]*models.User
	calls int
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, c *models.Claims) (*models.Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[c.Subject]
	if !ok {
		return nil, nil
	}
	return models.NewPrincipal(u, c), nil
}

type fixture struct {
	good, stranger string
	ver            *fakeVerifier
	users          *fakeResolver
	cache          *cache.MemoryPrincipalCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{good: signed(t, "kc-1"), stranger: signed(t, "kc-unknown")}
	f.ver = &fakeVerifier{tokens: map[string]*models.Claims{
		f.good:     {Subject: "kc-1", Email: "a@t1.test", RealmRoles: []string{"IT_VENDOR"}},
		f.stranger: {Subject: "kc-unknown"},
	}}
	f.users = &fakeResolver{users: map[string]*models.User{
		"kc-1": {ID: "u1", ExternalID: "kc-1", Provider: models.ProviderKeycloak, Tenant: &models.Tenant{TenantID: "t1"}},
	}}
	pc, err := cache.NewMemoryPrincipalCache(16, 0, nil)
	require.NoError(t, err)
	f.cache = pc
	return f
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func code(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	return body["code"]
}

func (f *fixture) router(extra ...gin.HandlerFunc) *gin.Engine {
	g := gin.New()
	chain := append([]gin.HandlerFunc{AuthMiddleware(f.ver, f.users, f.cache)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		fromCtx, _ := PrincipalFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": p.UserID, "tenantId": p.TenantID, "sameCtx": fromCtx == p})
	})
	g.GET("/", chain...)
	return g
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	f := newFixture(t)
	rw := serve(f.router(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "NoToken", code(t, rw))
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "BadHeader")
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "NoToken", code(t, rw))
}

func TestAuthMiddleware_UndecodableToken(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "InvalidTokenFormat", code(t, rw))
	assert.Zero(t, f.ver.calls)
}

func TestAuthMiddleware_VerificationFailed(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "forged"))
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "VerificationFailed", code(t, rw))
}

func TestAuthMiddleware_UserNotFound(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.stranger)
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "UserNotFound", code(t, rw))
}

func TestAuthMiddleware_ResolverErrorIs500(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("db down")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.good)
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusInternalServerError, rw.Code)
}

func TestAuthMiddleware_ValidTokenAttachesPrincipal(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.good)
	rw := serve(f.router(), req)

	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	assert.Equal(t, "u1", got["id"])
	assert.Equal(t, "t1", got["tenantId"])
	assert.Equal(t, true, got["sameCtx"])
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: f.good})
	rw := serve(f.router(), req)
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestAuthMiddleware_CacheHitSkipsStore(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+f.good)
		require.Equal(t, http.StatusOK, serve(r, req).Code)
	}
	assert.Equal(t, 1, f.users.calls)
	assert.Equal(t, 3, f.ver.calls)
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	ledger := sessions.NewRedisLedger(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	f := newFixture(t)
	require.NoError(t, ledger.Revoke(context.Background(), f.good, 5*time.Second))

	g := gin.New()
	g.GET("/", AuthMiddleware(f.ver, f.users, f.cache, WithRevocationCheck(ledger)), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.good)
	rw := serve(g, req)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "VerificationFailed", code(t, rw))
	assert.Zero(t, f.ver.calls)
}

func TestOptionalAuth_ContinuesWithoutToken(t *testing.T) {
	f := newFixture(t)
	g := gin.New()
	g.GET("/", OptionalAuth(f.ver, f.users, f.cache), func(c *gin.Context) {
		_, ok := Principal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	rw := serve(g, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rw.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+f.good)
	rw = serve(g, req)
	assert.JSONEq(t, `{"authenticated":true}`, rw.Body.String())
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		role   string
		token  string
		status int
		code   string
	}{
		{"has role", "IT_VENDOR", f.good, http.StatusOK, ""},
		{"missing role", "VENDOR_MANAGER", f.good, http.StatusForbidden, "RoleRequired"},
		{"unknown role", "not_a_real_role", f.good, http.StatusBadRequest, "InvalidRole"},
		{"case sensitive", "it_vendor", f.good, http.StatusBadRequest, "InvalidRole"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rw := serve(f.router(RequireRole(tc.role)), req)
			require.Equal(t, tc.status, rw.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, code(t, rw))
			}
		})
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	g := gin.New()
	g.GET("/", RequireRole("ADMIN"), func(c *gin.Context) { c.Status(http.StatusOK) })
	rw := serve(g, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, "NoPrincipal", code(t, rw))

	// an invalid role name fails even without a principal
	g = gin.New()
	g.GET("/", RequireRole("vendor"), func(c *gin.Context) { c.Status(http.StatusOK) })
	rw = serve(g, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
