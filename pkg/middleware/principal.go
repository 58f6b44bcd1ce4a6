package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/zelosify/zelosify/server/internal/models"
)

type principalKey struct{}

// ginPrincipalKey is the gin context key; only this package writes it.
const ginPrincipalKey = "zelosify.principal"

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by AuthMiddleware, if any.
func PrincipalFrom(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*models.Principal)
	return p, ok && p != nil
}

// SetPrincipal attaches p to both the gin context and the request context so
// services called with c.Request.Context() see the same identity.
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(ginPrincipalKey, p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}

// Principal returns the principal attached to c.
func Principal(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(ginPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Principal)
	return p, ok && p != nil
}
