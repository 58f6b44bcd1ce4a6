package oidc

import (
	"context"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Endpoints are the provider URLs the auth pipeline talks to.
type Endpoints struct {
	Issuer    string
	TokenURL  string
	JWKSURL   string
	LogoutURL string
}

// KeycloakEndpoints derives the realm endpoints without a network call.
func KeycloakEndpoints(baseURL, realm string) Endpoints {
	issuer := strings.TrimRight(baseURL, "/") + "/realms/" + realm
	oidcBase := issuer + "/protocol/openid-connect"
	return Endpoints{
		Issuer:    issuer,
		TokenURL:  oidcBase + "/token",
		JWKSURL:   oidcBase + "/certs",
		LogoutURL: oidcBase + "/logout",
	}
}

// Discover reads the provider's .well-known/openid-configuration. Fields the
// document leaves out fall back to fallback.
func Discover(ctx context.Context, issuer string, fallback Endpoints) (Endpoints, error) {
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	var doc struct {
		Issuer             string `json:"issuer"`
		JWKSURI            string `json:"jwks_uri"`
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&doc); err != nil {
		return Endpoints{}, fmt.Errorf("decode discovery document: %w", err)
	}
	ep := Endpoints{
		Issuer:    doc.Issuer,
		TokenURL:  provider.Endpoint().TokenURL,
		JWKSURL:   doc.JWKSURI,
		LogoutURL: doc.EndSessionEndpoint,
	}
	if ep.Issuer == "" {
		ep.Issuer = issuer
	}
	if ep.TokenURL == "" {
		ep.TokenURL = fallback.TokenURL
	}
	if ep.JWKSURL == "" {
		ep.JWKSURL = fallback.JWKSURL
	}
	if ep.LogoutURL == "" {
		ep.LogoutURL = fallback.LogoutURL
	}
	return ep, nil
}
