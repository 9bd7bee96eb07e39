package services

import (
	"sync"

	"github.com/geofix/location-core/errors"
	"github.com/geofix/location-core/types"
	"github.com/google/uuid"
)

// LocationRequest represents one pending ask for device position: its mode,
// optional timeout, completion callback, and last observed result. The
// coordinator owns the request while it is registered; after completion the
// caller's callback is the only remaining artifact.
type LocationRequest struct {
	id       uuid.UUID
	mode     types.RequestMode
	timer    *TimeoutTimer
	onResult types.ResultHandler

	mu           sync.Mutex
	lastLocation *types.Location
	result       types.Result
}

// newLocationRequest creates a request with a fresh ID and the sentinel
// failure result. The result stays GeneralError until something explicitly
// resolves it.
func newLocationRequest(mode types.RequestMode, onResult types.ResultHandler) *LocationRequest {
	return &LocationRequest{
		id:       uuid.New(),
		mode:     mode,
		onResult: onResult,
		result:   types.Result{Err: errors.General()},
	}
}

// ID returns the request's immutable identifier.
func (r *LocationRequest) ID() uuid.UUID {
	return r.id
}

// Mode returns the request's immutable mode.
func (r *LocationRequest) Mode() types.RequestMode {
	return r.mode
}

// IsRecurring reports whether the request remains pending across multiple
// qualifying fixes.
func (r *LocationRequest) IsRecurring() bool {
	return r.mode.IsRecurring()
}

// Timer returns the request's timeout timer, or nil when the caller asked
// for no deadline.
func (r *LocationRequest) Timer() *TimeoutTimer {
	return r.timer
}

// TimedOut reports whether the request's timer fired naturally.
func (r *LocationRequest) TimedOut() bool {
	return r.timer != nil && r.timer.Expired()
}

// LastLocation returns the most recent position observed for this request,
// or nil when none arrived yet.
func (r *LocationRequest) LastLocation() *types.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLocation
}

// Result returns the request's current result snapshot.
func (r *LocationRequest) Result() types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// setLastLocation records the current position for the request. A nil
// location is allowed: it means no valid fix existed in the pass.
func (r *LocationRequest) setLastLocation(loc *types.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLocation = loc
}

// setSuccess resolves the result to the given fix.
func (r *LocationRequest) setSuccess(loc *types.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLocation = loc
	r.result = types.Result{Location: loc}
}

// setFailure resolves the result to a failure of the given kind.
func (r *LocationRequest) setFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = types.Result{Err: err}
}

// resolveTimeout settles the result after a natural expiry: whatever
// position the request last observed wins, otherwise the timeout failure.
func (r *LocationRequest) resolveTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLocation != nil {
		r.result = types.Result{Location: r.lastLocation}
	} else {
		r.result = types.Result{Err: errors.Timeout()}
	}
}

// deliverWith invokes the request's callback with a result snapshot taken
// at scheduling time, so a later fix cannot overwrite a delivery already in
// flight. Delivery scheduling (the single callback context) is the
// coordinator's concern.
func (r *LocationRequest) deliverWith(result types.Result) {
	if r.onResult != nil {
		r.onResult(result)
	}
}
