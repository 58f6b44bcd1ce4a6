package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token expired")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrUnknownIssuer     = errors.New("unknown token issuer")
)

// TrustPolicy decides how much of a token is checked before its claims are used.
type TrustPolicy int

const (
	// TrustSignature verifies algorithm, signature, issuer and expiry.
	TrustSignature TrustPolicy = iota
	// TrustDecodeOnly only decodes the payload and checks expiry. Never use in production.
	TrustDecodeOnly
)

func (p TrustPolicy) String() string {
	if p == TrustDecodeOnly {
		return "decode-only"
	}
	return "signature"
}

// KeyLookup resolves a key id to a public key.
type KeyLookup interface {
	Resolve(ctx context.Context, kid string) (any, error)
}

// keycloakClaims is the access-token payload Keycloak issues.
type keycloakClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (c *keycloakClaims) toModel() *models.Claims {
	out := &models.Claims{
		Subject:    c.Subject,
		Email:      c.Email,
		Username:   c.PreferredUsername,
		RealmRoles: append([]string(nil), c.RealmAccess.Roles...),
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// Verifier validates provider-issued access tokens. Only RS256 is accepted.
type Verifier struct {
	keys   KeyLookup
	issuer string
	policy TrustPolicy
	now    func() time.Time
}

type VerifierOption func(*Verifier)

func WithTrustPolicy(p TrustPolicy) VerifierOption {
	return func(v *Verifier) { v.policy = p }
}

func WithTimeFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a verifier for tokens issued by issuer (e.g.
// https://idp.example.com/realms/Zelosify) whose keys come from keys.
func NewVerifier(keys KeyLookup, issuer string, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: keys, issuer: issuer, policy: TrustSignature, now: time.Now}
	for _, fn := range opts {
		fn(v)
	}
	if v.policy == TrustDecodeOnly {
		logger.Warnf("token verifier running with %s trust policy: signatures are NOT checked", v.policy)
	}
	return v
}

func (v *Verifier) Policy() TrustPolicy { return v.policy }

func (v *Verifier) Issuer() string { return v.issuer }

// Verify returns the token's claims or one of ErrInvalidToken, ErrExpiredToken,
// ErrSignatureMismatch, ErrUnknownIssuer (wrapping the underlying cause).
func (v *Verifier) Verify(ctx context.Context, raw string) (*models.Claims, error) {
	if v.policy == TrustDecodeOnly {
		return v.decodeOnly(raw)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	var claims keycloakClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Resolve(ctx, kid)
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.toModel(), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrUnknownIssuer, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidToken, err)
}
