// Package sessions tracks token state the identity provider does not: which
// temp login tokens were already spent and which access tokens were revoked
// by logout before their natural expiry.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Ledger records one-shot and revoked tokens.
type Ledger interface {
	// ConsumeOnce marks id as used and reports whether this call was the first.
	ConsumeOnce(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Revoke blacklists token for ttl (normally its remaining lifetime).
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// NoopLedger is used when Redis is not configured: every id is fresh and
// nothing is ever revoked locally.
type NoopLedger struct{}

func (NoopLedger) ConsumeOnce(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopLedger) Revoke(context.Context, string, time.Duration) error              { return nil }
func (NoopLedger) IsRevoked(context.Context, string) (bool, error)                  { return false, nil }

// tokenKey avoids storing bearer tokens verbatim.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
