package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zelosify/zelosify/server/internal/apperr"
	"github.com/zelosify/zelosify/server/internal/cache"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

// AccessTokenCookie is the cookie the browser client sends the access token in.
const AccessTokenCookie = "access_token"

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (*models.Claims, error)
}

// UserResolver maps verified claims to a principal; (nil, nil) means no such user.
type UserResolver interface {
	Resolve(ctx context.Context, c *models.Claims) (*models.Principal, error)
}

// RevocationChecker reports access tokens revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type authConfig struct {
	revoked RevocationChecker
}

type AuthOption func(*authConfig)

// WithRevocationCheck rejects tokens the checker reports as revoked.
func WithRevocationCheck(rc RevocationChecker) AuthOption {
	return func(a *authConfig) { a.revoked = rc }
}

// AuthMiddleware returns a Gin middleware that authenticates the request and
// attaches its principal. The token is read from `Authorization: Bearer` and
// falls back to the access_token cookie.
func AuthMiddleware(ver Verifier, users UserResolver, pc cache.PrincipalCache, opts ...AuthOption) gin.HandlerFunc {
	a := newAuthenticator(ver, users, pc, opts)
	return func(c *gin.Context) {
		p, err := a.authenticate(c)
		if err != nil {
			apperr.Abort(c, err)
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}

// OptionalAuth attaches a principal when the request carries a usable token
// and continues either way.
func OptionalAuth(ver Verifier, users UserResolver, pc cache.PrincipalCache, opts ...AuthOption) gin.HandlerFunc {
	a := newAuthenticator(ver, users, pc, opts)
	return func(c *gin.Context) {
		if p, err := a.authenticate(c); err == nil {
			SetPrincipal(c, p)
		} else {
			logger.Debugf("optional auth: continuing unauthenticated: %v", err)
		}
		c.Next()
	}
}

type authenticator struct {
	ver   Verifier
	users UserResolver
	cache cache.PrincipalCache
	cfg   authConfig
}

func newAuthenticator(ver Verifier, users UserResolver, pc cache.PrincipalCache, opts []AuthOption) *authenticator {
	a := &authenticator{ver: ver, users: users, cache: pc}
	for _, fn := range opts {
		fn(&a.cfg)
	}
	return a
}

func (a *authenticator) authenticate(c *gin.Context) (*models.Principal, error) {
	raw := BearerOrCookie(c)
	if raw == "" {
		return nil, apperr.Unauthorized(apperr.ReasonNoToken, "No token provided", nil)
	}
	// structural decode only; nothing here is trusted yet
	if _, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{}); err != nil {
		return nil, apperr.Unauthorized(apperr.ReasonInvalidTokenFormat, "Invalid token format", err)
	}

	ctx := c.Request.Context()
	if a.cfg.revoked != nil {
		revoked, err := a.cfg.revoked.IsRevoked(ctx, raw)
		if err != nil {
			logger.Warnf("auth: revocation check failed: %v", err)
		} else if revoked {
			return nil, apperr.Unauthorized(apperr.ReasonVerificationFailed, "Token has been revoked", nil)
		}
	}

	claims, err := a.ver.Verify(ctx, raw)
	if err != nil {
		logger.Debugf("auth: verification failed: %v", err)
		return nil, apperr.Unauthorized(apperr.ReasonVerificationFailed, "Invalid or expired token", err)
	}

	if a.cache != nil {
		p, ok, err := a.cache.Lookup(ctx, claims.Subject)
		if err != nil {
			logger.Warnf("auth: principal cache lookup failed: %v", err)
		}
		if ok {
			p.RealmRoles = append([]string(nil), claims.RealmRoles...)
			return p, nil
		}
	}

	p, err := a.users.Resolve(ctx, claims)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	if p == nil {
		return nil, apperr.Unauthorized(apperr.ReasonUserNotFound, "User not found", nil)
	}
	if a.cache != nil {
		if err := a.cache.Store(ctx, claims.Subject, p); err != nil {
			logger.Warnf("auth: principal cache store failed: %v", err)
		}
	}
	return p, nil
}

// BearerOrCookie returns the bearer token from the Authorization header or,
// failing that, the access_token cookie.
func BearerOrCookie(c *gin.Context) string {
	if t := BearerToken(c.GetHeader("Authorization")); t != "" {
		return t
	}
	if v, err := c.Cookie(AccessTokenCookie); err == nil {
		return v
	}
	return ""
}

// BearerToken extracts the token from an `Authorization: Bearer <t>` value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// RequireRole checks the attached principal's realm roles. A role name outside
// the system roles fails every request with 400.
func RequireRole(role string) gin.HandlerFunc {
	valid := models.IsValidRole(role)
	return func(c *gin.Context) {
		if !valid {
			apperr.Abort(c, apperr.Forbidden(apperr.ReasonInvalidRole, "Invalid role: "+role))
			return
		}
		p, ok := Principal(c)
		if !ok {
			apperr.Abort(c, apperr.Unauthorized(apperr.ReasonNoPrincipal, "Authentication required", nil))
			return
		}
		if !p.HasRealmRole(role) {
			apperr.Abort(c, apperr.Forbidden(apperr.ReasonRoleRequired, "Access denied. Required role: "+role))
			return
		}
		c.Next()
	}
}
