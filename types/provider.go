package types

// SensingProvider abstracts the platform location provider the coordinator
// drives. Start/stop calls are idempotent on the provider side; the
// coordinator additionally guarantees it never issues redundant ones.
type SensingProvider interface {
	StartContinuousUpdates()
	StopContinuousUpdates()
	StartSignificantChangeUpdates()
	StopSignificantChangeUpdates()

	// RequestAuthorization triggers the platform permission prompt. The
	// coordinator only calls this while the status is NOT_DETERMINED.
	RequestAuthorization(level AuthorizationLevel)

	// AuthorizationStatus returns the provider's current status.
	AuthorizationStatus() AuthorizationStatus
}

// EventSink receives provider events. The provider integration layer calls
// these instead of a global platform delegate, so the coordinator stays
// decoupled from any particular provider binding. Providers must deliver
// events from their own goroutine, never synchronously from inside a
// Start/Stop/RequestAuthorization call they are servicing.
type EventSink interface {
	OnLocationsUpdated(batch []Location)
	OnFailure(err error)
	OnAuthorizationChanged(status AuthorizationStatus)
}

// CapabilityInspector reports what the host application's manifest declares
// about location usage. Loading the manifest fails fast at startup when the
// declarations are incomplete, so implementations never error at runtime.
type CapabilityInspector interface {
	// RequiredAuthorizationLevel returns the level the manifest declares
	// usage descriptions for.
	RequiredAuthorizationLevel() AuthorizationLevel

	// HasBackgroundLocationCapability reports whether the manifest lists
	// location among its background modes.
	HasBackgroundLocationCapability() bool
}
