package login

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPValidator checks a one-time code against a base32 secret at time t.
type TOTPValidator func(code, secret string, t time.Time) bool

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// ValidateTOTP is the RFC 6238 check authenticator apps expect: 30s steps,
// six digits, SHA1, one step of clock skew either way.
func ValidateTOTP(code, secret string, t time.Time) bool {
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, totpOpts)
	return err == nil && ok
}

// GenerateSecret creates a new enrollment for account.
func GenerateSecret(issuer, account string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: account})
}
