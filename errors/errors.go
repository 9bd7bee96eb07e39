package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a location result failure.
type Kind string

const (
	// TimeoutError means the request's deadline elapsed before a
	// qualifying fix arrived.
	TimeoutError Kind = "TIMEOUT"
	// NotDeterminedError means authorization never resolved before the
	// request was forced to complete.
	NotDeterminedError Kind = "AUTHORIZATION_NOT_DETERMINED"
	// DeniedError and RestrictedError are terminal authorization states.
	DeniedError     Kind = "AUTHORIZATION_DENIED"
	RestrictedError Kind = "AUTHORIZATION_RESTRICTED"
	// DisabledError means location sensing is unavailable system-wide.
	DisabledError Kind = "LOCATION_SERVICES_DISABLED"
	// GeneralError is the default sentinel for unclassified failures.
	GeneralError Kind = "GENERAL_ERROR"
	// OtherError carries provider-supplied error text that does not map to
	// a known kind.
	OtherError Kind = "OTHER"
	// ConfigError marks a startup-time contract violation (e.g. missing
	// manifest keys). It is surfaced from load functions, never delivered
	// through a request result.
	ConfigError Kind = "CONFIG_INVALID"
)

// LocationError is the structured failure delivered to request callbacks.
type LocationError struct {
	Kind    Kind
	Message string
	Detail  string
	Raw     error
}

func (e *LocationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LocationError) Unwrap() error {
	return e.Raw
}

// New creates a LocationError of the given kind.
func New(kind Kind, message string, detail string) *LocationError {
	return &LocationError{
		Kind:    kind,
		Message: message,
		Detail:  detail,
	}
}

// Wrap wraps a raw error with location error context.
func Wrap(err error, kind Kind, message string) *LocationError {
	if err == nil {
		return nil
	}
	return &LocationError{
		Kind:    kind,
		Message: message,
		Detail:  err.Error(),
		Raw:     err,
	}
}

// Helper constructors for the result kinds callers see.

func Timeout() *LocationError {
	return New(TimeoutError, "location request timed out", "")
}

func NotDetermined() *LocationError {
	return New(NotDeterminedError, "location authorization not determined", "")
}

func Denied() *LocationError {
	return New(DeniedError, "location authorization denied", "")
}

func Restricted() *LocationError {
	return New(RestrictedError, "location authorization restricted", "")
}

func Disabled() *LocationError {
	return New(DisabledError, "location services are disabled", "")
}

func General() *LocationError {
	return New(GeneralError, "location request failed", "")
}

func Other(message string) *LocationError {
	return New(OtherError, "provider reported an error", message)
}

// ConfigInvalid marks a host-application misconfiguration. Callers should
// fail fast on it before accepting any request.
func ConfigInvalid(message string, detail string) *LocationError {
	return New(ConfigError, message, detail)
}

// KindOf extracts the failure kind from an error, defaulting to
// GeneralError for anything that is not a LocationError.
func KindOf(err error) Kind {
	var locErr *LocationError
	if errors.As(err, &locErr) {
		return locErr.Kind
	}
	return GeneralError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
