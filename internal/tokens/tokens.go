// Package tokens issues and parses the locally signed temp token that
// bridges the password step and the TOTP step of login.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTempTTL = 5 * time.Minute

var ErrInvalidTempToken = errors.New("invalid or expired temp token")

// TempClaims is the temp token payload: the user being logged in and the
// provider refresh token waiting on the second factor.
type TempClaims struct {
	UserID       string `json:"uid"`
	RefreshToken string `json:"rt"`
	jwt.RegisteredClaims
}

// TempIssuer signs and verifies temp tokens with a service secret that is
// unrelated to the identity provider's keys.
type TempIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTempIssuer(secret string, ttl time.Duration) (*TempIssuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("temp token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTempTTL
	}
	return &TempIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy using now as its time source.
func (i *TempIssuer) WithClock(now func() time.Time) *TempIssuer {
	c := *i
	c.now = now
	return &c
}

func (i *TempIssuer) TTL() time.Duration { return i.ttl }

// Issue creates a temp token for userID carrying refreshToken.
func (i *TempIssuer) Issue(userID, refreshToken string) (string, *TempClaims, error) {
	now := i.now()
	claims := &TempClaims{
		UserID:       userID,
		RefreshToken: refreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := jt.SignedString(i.secret)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

// Parse verifies signature and expiry. Every algorithm except HS256 is rejected.
func (i *TempIssuer) Parse(raw string) (*TempClaims, error) {
	var claims TempClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTempToken, err)
	}
	if claims.UserID == "" || claims.RefreshToken == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrInvalidTempToken)
	}
	return &claims, nil
}
