package types

import "fmt"

// Classification tags a failure with the category the inbound pipeline
// stage assigned to it.
type Classification string

const (
	ClassConfig       Classification = "config"
	ClassNetwork      Classification = "network"
	ClassBadRequest   Classification = "bad_request"
	ClassUnauthorized Classification = "unauthorized"
	ClassAuthExpired  Classification = "auth_expired"
	ClassForbidden    Classification = "forbidden"
	ClassNotFound     Classification = "not_found"
	ClassValidation   Classification = "validation"
	ClassRateLimited  Classification = "rate_limited"
	ClassServer       Classification = "server"
	ClassUnavailable  Classification = "unavailable"
	ClassBusiness     Classification = "business"
	ClassHTTP         Classification = "http"
)

// Error represents a classified API failure.
type Error struct {
	Classification Classification `json:"classification"`
	Message        string         `json:"message"`
	StatusCode     int            `json:"statusCode,omitempty"`
	BusinessCode   int            `json:"businessCode,omitempty"`
	Err            error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed (%s)", e.Classification)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two classified errors by classification.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Classification == t.Classification
}
