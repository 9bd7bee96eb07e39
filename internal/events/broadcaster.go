// Package events provides the in-process authorization-change broadcaster
// the coordinator publishes provider status transitions through.
package events

import (
	"sync"

	"github.com/geofix/location-core/logger"
	"github.com/geofix/location-core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// BroadcasterMetrics holds Prometheus metrics for the broadcaster.
type BroadcasterMetrics struct {
	listenerCount   prometheus.Gauge
	eventsPublished prometheus.Counter
}

var (
	broadcasterMetricsOnce   sync.Once
	globalBroadcasterMetrics *BroadcasterMetrics
)

// getBroadcasterMetrics initializes broadcaster metrics if they haven't
// been, and returns them. This ensures metrics are registered only once.
func getBroadcasterMetrics() *BroadcasterMetrics {
	broadcasterMetricsOnce.Do(func() {
		globalBroadcasterMetrics = &BroadcasterMetrics{
			listenerCount: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "authorization_listeners_total",
				Help: "Current number of registered authorization listeners",
			}),
			eventsPublished: promauto.NewCounter(prometheus.CounterOpts{
				Name: "authorization_events_published_total",
				Help: "Total number of authorization changes published",
			}),
		}
	})
	return globalBroadcasterMetrics
}

// Handle identifies a subscription. Handles are monotonically increasing
// and never reused within a process lifetime.
type Handle uint64

// Broadcaster fans authorization status changes out to registered
// listeners. Listeners added or removed during a publish may or may not
// observe the in-progress publish; no ordering is guaranteed.
type Broadcaster struct {
	log     *zap.SugaredLogger
	metrics *BroadcasterMetrics

	mu         sync.RWMutex
	nextHandle Handle
	listeners  map[Handle]types.AuthorizationHandler
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		log:       logger.GetLogger().Named("broadcaster"),
		metrics:   getBroadcasterMetrics(),
		listeners: make(map[Handle]types.AuthorizationHandler),
	}
}

// Subscribe registers a listener and returns its handle.
func (b *Broadcaster) Subscribe(handler types.AuthorizationHandler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextHandle++
	handle := b.nextHandle
	b.listeners[handle] = handler
	b.metrics.listenerCount.Set(float64(len(b.listeners)))

	b.log.Debugw("Registered authorization listener", "handle", handle)
	return handle
}

// Unsubscribe removes a listener. It reports whether anything was removed.
func (b *Broadcaster) Unsubscribe(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.listeners[handle]; !ok {
		return false
	}
	delete(b.listeners, handle)
	b.metrics.listenerCount.Set(float64(len(b.listeners)))

	b.log.Debugw("Unregistered authorization listener", "handle", handle)
	return true
}

// Clear drops all subscriptions.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = make(map[Handle]types.AuthorizationHandler)
	b.metrics.listenerCount.Set(0)
}

// Count returns the number of registered listeners.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish invokes every currently registered listener with the new status.
// The listener set is snapshotted first so concurrent subscribe/unsubscribe
// calls never race the iteration.
func (b *Broadcaster) Publish(status types.AuthorizationStatus) {
	b.mu.RLock()
	snapshot := make([]types.AuthorizationHandler, 0, len(b.listeners))
	for _, handler := range b.listeners {
		snapshot = append(snapshot, handler)
	}
	b.mu.RUnlock()

	b.metrics.eventsPublished.Inc()
	b.log.Debugw("Publishing authorization change", "status", status, "listeners", len(snapshot))

	for _, handler := range snapshot {
		handler(status)
	}
}
