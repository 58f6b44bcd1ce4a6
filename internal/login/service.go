// Package login runs the password + TOTP login and the logout that ends it.
package login

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zelosify/zelosify/server/internal/apperr"
	"github.com/zelosify/zelosify/server/internal/keycloak"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/internal/sessions"
	"github.com/zelosify/zelosify/server/internal/tokens"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

// IdentityProvider is the provider side of login and logout.
type IdentityProvider interface {
	PasswordGrant(ctx context.Context, username, password string) (*keycloak.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*keycloak.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*models.Claims, error)
}

// UserStore is the store of record as login sees it.
type UserStore interface {
	FindForClaims(ctx context.Context, c *models.Claims) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error
}

// Challenge is the result of a successful password step.
type Challenge struct {
	State     State
	TempToken string
	ExpiresAt time.Time
}

// Session is the result of a successful TOTP step.
type Session struct {
	State        State
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type Service struct {
	idp      IdentityProvider
	verifier TokenVerifier
	users    UserStore
	temp     *tokens.TempIssuer
	ledger   sessions.Ledger
	validate TOTPValidator
	now      func() time.Time
}

type Option func(*Service)

func WithLedger(l sessions.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

func WithTOTPValidator(v TOTPValidator) Option {
	return func(s *Service) { s.validate = v }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(idp IdentityProvider, verifier TokenVerifier, users UserStore, temp *tokens.TempIssuer, opts ...Option) *Service {
	s := &Service{
		idp:      idp,
		verifier: verifier,
		users:    users,
		temp:     temp,
		ledger:   sessions.NoopLedger{},
		validate: ValidateTOTP,
		now:      time.Now,
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Begin is the password step. On success the caller holds a temp token that
// carries the provider refresh token until the second factor is checked.
func (s *Service) Begin(ctx context.Context, username, password string) (ch *Challenge, err error) {
	defer func() { observe("password", err) }()
	if username == "" || password == "" {
		return nil, apperr.Input(apperr.ReasonMissingInput, "Username and password are required")
	}

	pair, err := s.idp.PasswordGrant(ctx, username, password)
	if err != nil {
		var pe *keycloak.ProviderError
		if errors.As(err, &pe) && (pe.Status == http.StatusBadRequest || pe.Status == http.StatusUnauthorized) {
			return nil, apperr.Unauthorized(apperr.ReasonInvalidCredentials, "Invalid username or password", err)
		}
		logger.Errorf("login: password grant failed: %v", err)
		return nil, apperr.Upstream(apperr.ReasonExchangeFailed, "Failed to authenticate", err)
	}

	claims, err := s.verifier.Verify(ctx, pair.AccessToken)
	if err != nil {
		return nil, apperr.Unauthorized(apperr.ReasonVerificationFailed, "Invalid or expired token", err)
	}
	user, err := s.users.FindForClaims(ctx, claims)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized(apperr.ReasonUserNotFound, "User not found", nil)
	}
	if user.TOTPSecret == "" {
		return nil, apperr.Forbidden(apperr.ReasonTOTPNotEnrolled, "TOTP is not set up for this account")
	}

	raw, tc, err := s.temp.Issue(user.ID, pair.RefreshToken)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	return &Challenge{State: StateCredentialsPending.next(), TempToken: raw, ExpiresAt: tc.ExpiresAt.Time}, nil
}

// VerifyTOTP is the second-factor step. Exchange and token mirror succeed or
// fail together: when the mirror write fails the new refresh token is revoked
// at the provider before the error is returned.
func (s *Service) VerifyTOTP(ctx context.Context, tempToken, code string) (sess *Session, err error) {
	defer func() { observe("totp", err) }()
	if tempToken == "" || code == "" {
		return nil, apperr.Input(apperr.ReasonMissingInput, "Temp token and TOTP are required")
	}

	tc, err := s.temp.Parse(tempToken)
	if err != nil {
		return nil, apperr.Unauthorized(apperr.ReasonInvalidTempToken, "Invalid or expired temp token", err)
	}

	user, err := s.users.GetByID(ctx, tc.UserID)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized(apperr.ReasonUserNotFound, "User not found", nil)
	}

	if !s.validate(code, user.TOTPSecret, s.now()) {
		return nil, apperr.Unauthorized(apperr.ReasonInvalidTOTP, "Invalid TOTP code", nil)
	}

	// a wrong code leaves the temp token usable; it is spent only here
	fresh, err := s.ledger.ConsumeOnce(ctx, tc.ID, tc.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	if !fresh {
		return nil, apperr.Unauthorized(apperr.ReasonInvalidTempToken, "Invalid or expired temp token", nil)
	}

	pair, err := s.idp.Refresh(ctx, tc.RefreshToken)
	if err != nil {
		fields := map[string]interface{}{"user": user.ID}
		var pe *keycloak.ProviderError
		if errors.As(err, &pe) {
			fields["status"] = pe.Status
			fields["body"] = pe.Body
		}
		logger.WithFields(fields).Errorf("login: refresh token exchange failed: %v", err)
		return nil, apperr.Upstream(apperr.ReasonExchangeFailed, "Failed to authenticate", err)
	}

	if err := s.users.UpdateTokens(ctx, user.ID, pair.AccessToken, pair.RefreshToken); err != nil {
		if rerr := s.idp.Logout(ctx, pair.RefreshToken); rerr != nil {
			logger.WithFields(map[string]interface{}{"user": user.ID}).
				Errorf("login: compensation revoke failed after mirror write error: %v", rerr)
		}
		return nil, apperr.Internal("Internal server error", err)
	}

	return &Session{
		State:        StateTOTPPending.next(),
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout revokes the provider session for provider-backed principals and
// blacklists the access token. A provider failure is returned as
// ProviderLogoutFailed and nothing else happens; the caller must then leave
// the session cookies in place.
func (s *Service) Logout(ctx context.Context, p *models.Principal, refreshToken, accessToken string) (err error) {
	defer func() { observe("logout", err) }()
	if refreshToken == "" {
		return apperr.Input(apperr.ReasonAlreadyLoggedOut, "No refresh token found, already logged out")
	}

	if p != nil && p.Provider == models.ProviderKeycloak {
		if err := s.idp.Logout(ctx, refreshToken); err != nil {
			fields := map[string]interface{}{"user": p.UserID}
			var pe *keycloak.ProviderError
			if errors.As(err, &pe) {
				fields["status"] = pe.Status
				fields["body"] = pe.Body
			}
			logger.WithFields(fields).Errorf("logout: provider revocation failed: %v", err)
			return apperr.Upstream(apperr.ReasonProviderLogoutFailed, "Error logging out of identity provider", err)
		}
	}

	if accessToken != "" {
		if ttl := remaining(accessToken, s.now()); ttl > 0 {
			if err := s.ledger.Revoke(ctx, accessToken, ttl); err != nil {
				logger.Warnf("logout: failed to blacklist access token: %v", err)
			}
		}
	}
	return nil
}

// remaining is how long a JWT stays valid, read without verification.
func remaining(raw string, now time.Time) time.Duration {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &rc); err != nil || rc.ExpiresAt == nil {
		return 0
	}
	return rc.ExpiresAt.Sub(now)
}
