package keycloak

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ProviderError is a failed identity-provider call. Body is the provider's
// response body, kept for logs; it is never returned to clients.
type ProviderError struct {
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("keycloak %s: status %d: %s", e.Operation, e.Status, e.Body)
	}
	return fmt.Sprintf("keycloak %s: %v", e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request could succeed.
func (e *ProviderError) Transient() bool {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// wrapOAuthErr converts oauth2 failures into *ProviderError.
func wrapOAuthErr(op string, err error) *ProviderError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		pe := &ProviderError{Operation: op, Body: string(re.Body), Err: err}
		if re.Response != nil {
			pe.Status = re.Response.StatusCode
		}
		return pe
	}
	return &ProviderError{Operation: op, Err: err}
}
