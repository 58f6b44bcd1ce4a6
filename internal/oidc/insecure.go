package oidc

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zelosify/zelosify/server/internal/models"
)

// decodeOnly parses the payload without checking the signature or issuer.
// Only reachable with TrustDecodeOnly, which main enables behind
// ALLOW_INSECURE_TOKEN for local integration runs.
func (v *Verifier) decodeOnly(raw string) (*models.Claims, error) {
	var claims keycloakClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && !v.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: expired at %s", ErrExpiredToken, claims.ExpiresAt.Time)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.toModel(), nil
}
