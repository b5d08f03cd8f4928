package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default address-book API base URL
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 10 * time.Second

	// UserAgent is the user agent string
	UserAgent = "addrbook-go/1.0.0"
)

// Auth endpoints. Fixed wire contract with the backend.
const (
	LoginEndpoint    = "/jwt/login"
	LogoutEndpoint   = "/jwt/logout"
	RegisterEndpoint = "/jwt/register"
	RefreshEndpoint  = "/jwt/refresh"
	MeEndpoint       = "/jwt/me"
)

// Persisted storage keys. The session store is the only writer.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyMember       = "member"
)

// CacheBustParam is appended to every GET so identical requests never
// share a final query string.
const CacheBustParam = "_t"

// Common errors
var (
	// ErrNotAuthenticated is returned when authentication is required
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned when the session has expired
	ErrSessionExpired = errors.New("session expired")

	// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrInvalidCredentials is returned when login is rejected
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNetworkUnavailable is returned when no response was received
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrServerError is returned for server errors
	ErrServerError = errors.New("server error")
)
