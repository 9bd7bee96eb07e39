package types

import (
	"time"
)

// Location represents a validated geographic position report from the
// underlying provider.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the location is a usable fix. Coordinates must fall
// within valid latitude/longitude ranges, and (0, 0) is treated as the
// provider's "no fix" sentinel.
func (l Location) Valid() bool {
	if l.Latitude < -90 || l.Latitude > 90 {
		return false
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return false
	}
	return true
}

// RequestMode identifies how a location request wants to be served.
type RequestMode string

const (
	// ModeOnce is satisfied by the first qualifying fix, then terminated.
	ModeOnce RequestMode = "ONCE"
	// ModeContinuous receives every qualifying fix until cancelled.
	ModeContinuous RequestMode = "CONTINUOUS"
	// ModeSignificant receives only significant-change fixes until cancelled.
	ModeSignificant RequestMode = "SIGNIFICANT"
)

// IsRecurring reports whether requests of this mode remain pending across
// multiple qualifying fixes.
func (m RequestMode) IsRecurring() bool {
	return m == ModeContinuous || m == ModeSignificant
}

// AuthorizationStatus mirrors the platform's location authorization states.
type AuthorizationStatus string

const (
	AuthorizationNotDetermined AuthorizationStatus = "NOT_DETERMINED"
	AuthorizationRestricted    AuthorizationStatus = "RESTRICTED"
	AuthorizationDenied        AuthorizationStatus = "DENIED"
	AuthorizationAlways        AuthorizationStatus = "AUTHORIZED_ALWAYS"
	AuthorizationWhenInUse     AuthorizationStatus = "AUTHORIZED_WHEN_IN_USE"
)

// Granted reports whether the status allows location updates to flow.
func (s AuthorizationStatus) Granted() bool {
	return s == AuthorizationAlways || s == AuthorizationWhenInUse
}

// Blocked reports whether the status is terminal: no further updates will
// ever arrive while it holds.
func (s AuthorizationStatus) Blocked() bool {
	return s == AuthorizationDenied || s == AuthorizationRestricted
}

// AuthorizationLevel is the access level an application asks the platform
// for, derived from its declared manifest keys.
type AuthorizationLevel string

const (
	LevelAlways    AuthorizationLevel = "ALWAYS"
	LevelWhenInUse AuthorizationLevel = "WHEN_IN_USE"
)

// Result is the value delivered to a request's callback. Err is nil on
// success; on failure it carries one of the errors package's location
// error kinds.
type Result struct {
	Location *Location
	Err      error
}

// ResultHandler consumes a request's result. One-shot requests see exactly
// one invocation; recurring requests see one per qualifying event.
type ResultHandler func(Result)

// AuthorizationHandler observes authorization status changes.
type AuthorizationHandler func(AuthorizationStatus)
