// internal/domain/notification/errors.go
package notification

import (
	"errors"
	"fmt"
	"net/http"

	"reminder_service/internal/domain/phone"
)

// Sentinel errors shared across layers.
var (
	ErrInvalidPhoneNumber      = phone.ErrInvalidPhoneNumber
	ErrMessagingNotConfigured  = fmt.Errorf("messaging gateway is not configured")
	ErrInvalidConfiguration    = fmt.Errorf("invalid messaging configuration")
	ErrPreferencesNotFound     = fmt.Errorf("notification preferences not found")
	ErrInvalidToken            = fmt.Errorf("invalid bearer token")
	ErrVerificationUnavailable = fmt.Errorf("token verification unavailable")
	ErrDeliveryFailed          = fmt.Errorf("message delivery failed")
)

// ValidationError is a bad phone number or missing field. Never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AuthError is a missing or invalid credential.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// ConfigurationError is an operator-fixable setup problem.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string { return e.Message }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// GatewayError is a non-2xx answer of the messaging API. HTTPStatus carries the
// upstream status so handlers can pass it through.
type GatewayError struct {
	Message    string
	HTTPStatus int
	Code       int // provider specific error code, 0 when absent
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.HTTPStatus, e.Message)
}

// TransientNetworkError means a backend did not answer at all. Safe to retry on
// the next scheduler tick.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// HTTPStatus maps err onto the status code a handler should answer with.
func HTTPStatus(err error) int {
	var (
		validationErr *ValidationError
		authErr       *AuthError
		configErr     *ConfigurationError
		gatewayErr    *GatewayError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr), errors.Is(err, ErrInvalidPhoneNumber):
		return http.StatusBadRequest
	case errors.As(err, &authErr), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.As(err, &gatewayErr):
		if gatewayErr.HTTPStatus >= 400 && gatewayErr.HTTPStatus <= 599 {
			return gatewayErr.HTTPStatus
		}
		return http.StatusBadGateway
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
