// Package keycloak talks to the identity provider's token and logout
// endpoints on behalf of the login flow.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/zelosify/zelosify/server/pkg/logger"
	"github.com/zelosify/zelosify/server/pkg/metrics"
)

// TokenPair is what the provider hands back from a successful grant.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type Config struct {
	TokenURL  string
	LogoutURL string
	ClientID  string
	Secrets   SecretSource
	// Timeout bounds every provider round trip.
	Timeout time.Duration
	// ExchangeRetries is the number of extra attempts for refresh-token
	// exchange, taken only on 502/503/504.
	ExchangeRetries int
	// LogoutRetries is the number of extra attempts for revocation.
	LogoutRetries int
	// RetryInterval is the first backoff interval (500ms when zero).
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("keycloak: token url and client id are required")
	}
	if cfg.Secrets == nil {
		return nil, fmt.Errorf("keycloak: secret source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

func (c *Client) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	secret, err := c.cfg.Secrets.ClientSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve client secret: %w", err)
	}
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: secret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

func (c *Client) withHTTP(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, c.http), cancel
}

func (c *Client) retryOptions(retries int) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInterval > 0 {
		b.InitialInterval = c.cfg.RetryInterval
	}
	if retries < 0 {
		retries = 0
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(retries) + 1),
	}
}

func record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderCalls.WithLabelValues(op, outcome).Inc()
}

// PasswordGrant exchanges username/password for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*TokenPair, error) {
	oc, err := c.oauthConfig(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withHTTP(ctx)
	defer cancel()
	tok, err := oc.PasswordCredentialsToken(ctx, username, password)
	record("password_grant", err)
	if err != nil {
		return nil, wrapOAuthErr("password_grant", err)
	}
	return toPair(tok), nil
}

// Refresh exchanges a refresh token for a fresh pair. Providers may rotate
// the refresh token on first use, so only gateway failures are retried.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, &ProviderError{Operation: "refresh", Err: errors.New("empty refresh token")}
	}
	oc, err := c.oauthConfig(ctx)
	if err != nil {
		return nil, err
	}
	op := func() (*TokenPair, error) {
		callCtx, cancel := c.withHTTP(ctx)
		defer cancel()
		tok, err := oc.TokenSource(callCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		record("refresh", err)
		if err != nil {
			pe := wrapOAuthErr("refresh", err)
			if pe.Transient() {
				logger.Warnf("keycloak refresh: transient failure (status %d), may retry", pe.Status)
				return nil, pe
			}
			return nil, backoff.Permanent(pe)
		}
		return toPair(tok), nil
	}
	pair, err := backoff.Retry(ctx, op, c.retryOptions(c.cfg.ExchangeRetries)...)
	if err != nil {
		return nil, unwrapPermanent(err)
	}
	return pair, nil
}

// Logout revokes the session behind refreshToken. Revocation is idempotent,
// so network errors and 5xx responses are retried.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	if c.cfg.LogoutURL == "" {
		return &ProviderError{Operation: "logout", Err: errors.New("logout endpoint not configured")}
	}
	secret, err := c.cfg.Secrets.ClientSecret(ctx)
	if err != nil {
		return fmt.Errorf("resolve client secret: %w", err)
	}
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", secret)
	form.Set("refresh_token", refreshToken)
	body := form.Encode()

	op := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.LogoutURL, strings.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.http.Do(req)
		if err != nil {
			record("logout", err)
			return struct{}{}, &ProviderError{Operation: "logout", Err: err}
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			record("logout", nil)
			return struct{}{}, nil
		}
		pe := &ProviderError{Operation: "logout", Status: resp.StatusCode, Body: string(respBody)}
		record("logout", pe)
		if resp.StatusCode < 500 {
			return struct{}{}, backoff.Permanent(pe)
		}
		return struct{}{}, pe
	}
	_, err = backoff.Retry(ctx, op, c.retryOptions(c.cfg.LogoutRetries)...)
	return unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func toPair(t *oauth2.Token) *TokenPair {
	return &TokenPair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}
}
