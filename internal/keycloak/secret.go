package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SecretSource yields the confidential client secret used for token calls.
type SecretSource interface {
	ClientSecret(ctx context.Context) (string, error)
}

// StaticSecret is a secret taken directly from configuration.
type StaticSecret string

func (s StaticSecret) ClientSecret(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("keycloak client secret not configured")
	}
	return string(s), nil
}

// AdminSecretSource looks the client secret up through the admin REST API
// using an administrative client-credentials token. The secret is fetched
// once and reused until Invalidate is called.
type AdminSecretSource struct {
	baseURL  string
	realm    string
	clientID string
	admin    clientcredentials.Config
	http     *http.Client

	mu     sync.Mutex
	secret string
}

func NewAdminSecretSource(baseURL, realm, clientID, adminClientID, adminSecret string, httpClient *http.Client) *AdminSecretSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(baseURL, "/")
	return &AdminSecretSource{
		baseURL:  base,
		realm:    realm,
		clientID: clientID,
		admin: clientcredentials.Config{
			ClientID:     adminClientID,
			ClientSecret: adminSecret,
			TokenURL:     base + "/realms/" + realm + "/protocol/openid-connect/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http: httpClient,
	}
}

func (a *AdminSecretSource) Invalidate() {
	a.mu.Lock()
	a.secret = ""
	a.mu.Unlock()
}

func (a *AdminSecretSource) ClientSecret(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.secret != "" {
		return a.secret, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http)
	client := a.admin.Client(ctx)

	var clients []struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	}
	listURL := fmt.Sprintf("%s/admin/realms/%s/clients?clientId=%s", a.baseURL, url.PathEscape(a.realm), url.QueryEscape(a.clientID))
	if err := getJSON(ctx, client, "client_lookup", listURL, &clients); err != nil {
		return "", err
	}
	if len(clients) == 0 {
		return "", &ProviderError{Operation: "client_lookup", Err: fmt.Errorf("client %q not found in realm %q", a.clientID, a.realm)}
	}

	var secret struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}
	secretURL := fmt.Sprintf("%s/admin/realms/%s/clients/%s/client-secret", a.baseURL, url.PathEscape(a.realm), url.PathEscape(clients[0].ID))
	if err := getJSON(ctx, client, "client_secret", secretURL, &secret); err != nil {
		return "", err
	}
	if secret.Value == "" {
		return "", &ProviderError{Operation: "client_secret", Err: fmt.Errorf("empty client secret")}
	}
	a.secret = secret.Value
	return a.secret, nil
}

func getJSON(ctx context.Context, client *http.Client, op, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return wrapOAuthErr(op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Operation: op, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Operation: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
