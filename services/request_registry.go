package services

import (
	"sync"

	"github.com/google/uuid"
)

// RequestPredicate selects requests during registry queries.
type RequestPredicate func(*LocationRequest) bool

// RequestRegistry is a thread-safe ordered collection of pending location
// requests. Insertion order is preserved; mutations are serialized and
// appear atomic relative to any concurrent read, so no caller ever observes
// a partially-applied change.
type RequestRegistry struct {
	mu       sync.RWMutex
	requests []*LocationRequest
}

// NewRequestRegistry creates an empty registry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{}
}

// Add appends a request. The caller guarantees ID uniqueness (IDs are
// random UUIDs assigned at creation).
func (r *RequestRegistry) Add(req *LocationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

// RemoveByID removes at most one request with the given ID and returns it,
// or nil when absent. The nil return is the at-most-once arbiter for
// completion: only the caller that actually removed the request may invoke
// its callback.
func (r *RequestRegistry) RemoveByID(id uuid.UUID) *LocationRequest {
	return r.RemoveWhere(func(req *LocationRequest) bool {
		return req.ID() == id
	})
}

// RemoveWhere removes at most one matching request and returns it, or nil
// when nothing matches.
func (r *RequestRegistry) RemoveWhere(pred RequestPredicate) *LocationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, req := range r.requests {
		if pred(req) {
			r.requests = append(r.requests[:i], r.requests[i+1:]...)
			return req
		}
	}
	return nil
}

// Find returns the first matching request, or nil.
func (r *RequestRegistry) Find(pred RequestPredicate) *LocationRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, req := range r.requests {
		if pred(req) {
			return req
		}
	}
	return nil
}

// Contains reports whether a request with the given ID is registered.
func (r *RequestRegistry) Contains(id uuid.UUID) bool {
	return r.Find(func(req *LocationRequest) bool {
		return req.ID() == id
	}) != nil
}

// Filter returns the matching requests in registry order. The returned
// slice is a snapshot the caller may iterate without holding any lock.
func (r *RequestRegistry) Filter(pred RequestPredicate) []*LocationRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*LocationRequest
	for _, req := range r.requests {
		if pred(req) {
			matched = append(matched, req)
		}
	}
	return matched
}

// Snapshot returns all pending requests in registry order.
func (r *RequestRegistry) Snapshot() []*LocationRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*LocationRequest, len(r.requests))
	copy(snapshot, r.requests)
	return snapshot
}

// ForEach visits every request in registry order under the read lock. The
// visitor must not call back into the registry.
func (r *RequestRegistry) ForEach(visit func(*LocationRequest)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, req := range r.requests {
		visit(req)
	}
}

// Count returns the number of pending requests.
func (r *RequestRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.requests)
}

// CountWhere returns the number of pending requests matching pred.
func (r *RequestRegistry) CountWhere(pred RequestPredicate) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, req := range r.requests {
		if pred(req) {
			count++
		}
	}
	return count
}

// IsEmpty reports whether no requests are pending.
func (r *RequestRegistry) IsEmpty() bool {
	return r.Count() == 0
}
