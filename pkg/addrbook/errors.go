package addrbook

import (
	"errors"

	"github.com/addrbook-dev/addrbook-go/internal/types"
)

// Error is a classified API failure. Every failure the pipeline
// propagates is one of these (possibly wrapped); the Classification
// tells callers which branch of the handling table produced it.
type Error = types.Error

// Classification tags an Error with its failure category.
type Classification = types.Classification

// Failure classifications, in the order the inbound stage checks them.
const (
	ClassConfig       = types.ClassConfig
	ClassNetwork      = types.ClassNetwork
	ClassBadRequest   = types.ClassBadRequest
	ClassUnauthorized = types.ClassUnauthorized
	ClassAuthExpired  = types.ClassAuthExpired
	ClassForbidden    = types.ClassForbidden
	ClassNotFound     = types.ClassNotFound
	ClassValidation   = types.ClassValidation
	ClassRateLimited  = types.ClassRateLimited
	ClassServer       = types.ClassServer
	ClassUnavailable  = types.ClassUnavailable
	ClassBusiness     = types.ClassBusiness
	ClassHTTP         = types.ClassHTTP
)

// Sentinel errors
var (
	// ErrNotAuthenticated is returned when authentication is required
	ErrNotAuthenticated = types.ErrNotAuthenticated

	// ErrInvalidCredentials is returned when login is rejected
	ErrInvalidCredentials = types.ErrInvalidCredentials

	// ErrNetworkUnavailable is returned when no response was received
	ErrNetworkUnavailable = types.ErrNetworkUnavailable

	// ErrNoRefreshToken is returned by RefreshAccessToken when no
	// refresh token is held
	ErrNoRefreshToken = types.ErrNoRefreshToken

	// ErrSessionExpired is returned when an authenticated call came
	// back 401 and the session was invalidated
	ErrSessionExpired = types.ErrSessionExpired
)

// AsError extracts the classified error from err, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
