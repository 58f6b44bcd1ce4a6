// Package apperr is the error taxonomy shared by the auth pipeline and the
// vendor endpoints. Every failure that reaches a handler is an *Error carrying
// a kind (how it should be treated) and a reason (what exactly went wrong).
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zelosify/zelosify/server/pkg/logger"
	"github.com/zelosify/zelosify/server/pkg/metrics"
)

type Kind string

const (
	KindInput          Kind = "input"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindUpstream       Kind = "upstream"
	KindInternal       Kind = "internal"
)

type Reason string

const (
	ReasonMissingInput         Reason = "MissingInput"
	ReasonNoToken              Reason = "NoToken"
	ReasonInvalidTokenFormat   Reason = "InvalidTokenFormat"
	ReasonVerificationFailed   Reason = "VerificationFailed"
	ReasonUserNotFound         Reason = "UserNotFound"
	ReasonNoPrincipal          Reason = "NoPrincipal"
	ReasonInvalidRole          Reason = "InvalidRole"
	ReasonRoleRequired         Reason = "RoleRequired"
	ReasonInvalidTempToken     Reason = "InvalidOrExpiredTempToken"
	ReasonInvalidCredentials   Reason = "InvalidCredentials"
	ReasonInvalidTOTP          Reason = "InvalidTOTP"
	ReasonTOTPNotEnrolled      Reason = "TOTPNotEnrolled"
	ReasonExchangeFailed       Reason = "ExchangeFailed"
	ReasonAlreadyLoggedOut     Reason = "AlreadyLoggedOut"
	ReasonProviderLogoutFailed Reason = "ProviderLogoutFailed"
	ReasonCrossTenant          Reason = "CrossTenant"
	ReasonDuplicateProfile     Reason = "DuplicateProfile"
	ReasonNotFound             Reason = "NotFound"
	ReasonInternal             Reason = "Internal"
)

// Error is a classified failure. Message is safe to return to clients; Err
// holds the underlying cause for logs and errors.Is/As.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Status maps the error onto the HTTP status the surface must answer with.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		if e.Reason == ReasonInvalidRole {
			return http.StatusBadRequest
		}
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		// token exchange failures look like a failed login to the client,
		// everything else the provider does wrong is our 500
		if e.Reason == ReasonExchangeFailed {
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func New(kind Kind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func Wrap(kind Kind, reason Reason, message string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

func Input(reason Reason, message string) *Error {
	return New(KindInput, reason, message)
}

func Unauthorized(reason Reason, message string, err error) *Error {
	return Wrap(KindAuthentication, reason, message, err)
}

func Forbidden(reason Reason, message string) *Error {
	return New(KindAuthorization, reason, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, ReasonNotFound, message)
}

func Upstream(reason Reason, message string, err error) *Error {
	return Wrap(KindUpstream, reason, message, err)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, ReasonInternal, message, err)
}

// As extracts the classified error; unclassified errors become Internal.
func As(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Internal("Internal server error", err)
}

// IsReason reports whether err is classified with the given reason.
func IsReason(err error, reason Reason) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		return false
	}
	return typed.Reason == reason
}

// Abort writes the error response and stops the gin chain.
func Abort(c *gin.Context, err error) {
	e := As(err)
	status := e.Status()
	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"path":   c.FullPath(),
			"reason": string(e.Reason),
		}).Errorf("%s: %v", e.Error(), e.Err)
	}
	if e.Kind == KindAuthentication || e.Kind == KindAuthorization {
		metrics.AuthFailures.WithLabelValues(string(e.Reason)).Inc()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": e.Error(), "code": string(e.Reason)})
}
