package services

import (
	"context"
	"sync"
	"time"

	"github.com/geofix/location-core/config"
	"github.com/geofix/location-core/errors"
	"github.com/geofix/location-core/internal/events"
	"github.com/geofix/location-core/logger"
	"github.com/geofix/location-core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// coordinatorMetrics holds Prometheus metrics for the coordinator.
type coordinatorMetrics struct {
	pendingRequests *prometheus.GaugeVec
	completions     *prometheus.CounterVec
	deliveries      prometheus.Counter
	sensingSessions *prometheus.GaugeVec
	rejectedFixes   prometheus.Counter
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	coordMetricsInstance *coordinatorMetrics
	coordMetricsOnce     sync.Once
	coordDefaultRegistry = prometheus.DefaultRegisterer
)

// newCoordinatorMetrics initializes and registers Prometheus metrics using
// the singleton pattern.
func newCoordinatorMetrics() *coordinatorMetrics {
	coordMetricsOnce.Do(func() {
		coordMetricsInstance = &coordinatorMetrics{
			pendingRequests: promauto.With(coordDefaultRegistry).NewGaugeVec(prometheus.GaugeOpts{
				Name: "location_pending_requests",
				Help: "Current number of pending location requests by mode",
			}, []string{"mode"}),
			completions: promauto.With(coordDefaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "location_request_completions_total",
				Help: "Total number of completed location requests by outcome",
			}, []string{"outcome"}),
			deliveries: promauto.With(coordDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "location_recurring_deliveries_total",
				Help: "Total number of non-terminal deliveries to recurring requests",
			}),
			sensingSessions: promauto.With(coordDefaultRegistry).NewGaugeVec(prometheus.GaugeOpts{
				Name: "location_sensing_sessions",
				Help: "Whether a sensing session is active (1) or not (0) by class",
			}, []string{"class"}),
			rejectedFixes: promauto.With(coordDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "location_rejected_fixes_total",
				Help: "Total number of delivered positions rejected as invalid",
			}),
		}
	})
	return coordMetricsInstance
}

// resetCoordinatorMetricsForTesting resets the metrics singleton for test
// isolation. This should only be called from tests.
func resetCoordinatorMetricsForTesting() {
	reg := prometheus.NewRegistry()
	coordDefaultRegistry = reg
	coordMetricsInstance = nil
	coordMetricsOnce = sync.Once{}
}

const (
	sensingClassContinuous  = "continuous"
	sensingClassSignificant = "significant"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// RequestCoordinator multiplexes an arbitrary number of in-flight location
// requests onto at most one underlying sensing session per class. It owns
// the registry and the broadcaster exclusively, routes provider events to
// the pending requests they concern, and enforces per-request timeout and
// at-most-once completion semantics under concurrent access.
//
// The provider integration layer feeds it through OnLocationsUpdated,
// OnFailure and OnAuthorizationChanged; direct callers use the
// RequestPosition/SubscribePosition/SubscribeSignificantChanges entry
// points. Both sides may run on arbitrary goroutines.
type RequestCoordinator struct {
	cfg         config.CoordinatorConfig
	provider    types.SensingProvider
	inspector   types.CapabilityInspector
	registry    *RequestRegistry
	broadcaster *events.Broadcaster
	dispatcher  *CallbackDispatcher
	log         *zap.SugaredLogger
	metrics     *coordinatorMetrics

	// mu guards authorization state, the current location, and the sensing
	// session flags. Demand accounting reads the registry while holding it
	// so start/stop decisions observe the same state the mutation created.
	mu                sync.Mutex
	authStatus        types.AuthorizationStatus
	currentLocation   *types.Location
	continuousActive  bool
	significantActive bool
}

// NewRequestCoordinator wires a coordinator to its provider and capability
// inspector and starts the callback dispatcher.
func NewRequestCoordinator(
	cfg config.CoordinatorConfig,
	provider types.SensingProvider,
	inspector types.CapabilityInspector,
) *RequestCoordinator {
	c := &RequestCoordinator{
		cfg:         cfg,
		provider:    provider,
		inspector:   inspector,
		registry:    NewRequestRegistry(),
		broadcaster: events.NewBroadcaster(),
		dispatcher:  NewCallbackDispatcher(cfg),
		log:         logger.GetLogger().Named("coordinator"),
		metrics:     newCoordinatorMetrics(),
		authStatus:  provider.AuthorizationStatus(),
	}
	c.dispatcher.Start()
	return c
}

// Close stops the callback dispatcher, draining queued deliveries. Pending
// requests are completed first so no caller is left waiting forever.
func (c *RequestCoordinator) Close() error {
	c.CompleteAllRequests()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	return c.dispatcher.Shutdown(ctx)
}

// RequestPosition registers a one-shot request. If timeout is positive the
// request carries a deadline; the window starts counting once authorization
// is granted. The returned request doubles as a cancellation handle via
// CompleteRequest.
func (c *RequestCoordinator) RequestPosition(timeout time.Duration, onResult types.ResultHandler) *LocationRequest {
	return c.register(types.ModeOnce, timeout, onResult)
}

// SubscribePosition registers a continuous request that receives every
// qualifying fix until cancelled via CompleteRequest.
func (c *RequestCoordinator) SubscribePosition(timeout time.Duration, onResult types.ResultHandler) *LocationRequest {
	return c.register(types.ModeContinuous, timeout, onResult)
}

// SubscribeSignificantChanges registers a request served by the low-power
// significant-change session.
func (c *RequestCoordinator) SubscribeSignificantChanges(timeout time.Duration, onResult types.ResultHandler) *LocationRequest {
	return c.register(types.ModeSignificant, timeout, onResult)
}

// SubscribeAuthorizationChanges registers a listener for authorization
// status transitions and returns its handle.
func (c *RequestCoordinator) SubscribeAuthorizationChanges(handler types.AuthorizationHandler) events.Handle {
	return c.broadcaster.Subscribe(handler)
}

// UnsubscribeAuthorizationChanges removes a previously registered listener.
func (c *RequestCoordinator) UnsubscribeAuthorizationChanges(handle events.Handle) bool {
	return c.broadcaster.Unsubscribe(handle)
}

// register is the single registration path for all three modes.
func (c *RequestCoordinator) register(mode types.RequestMode, timeout time.Duration, onResult types.ResultHandler) *LocationRequest {
	if timeout == 0 && mode == types.ModeOnce {
		timeout = c.cfg.DefaultTimeout
	}

	req := newLocationRequest(mode, onResult)
	if timeout > 0 {
		req.timer = NewTimeoutTimer(timeout, func() {
			c.onRequestTimeout(req)
		})
	}

	c.registry.Add(req)
	c.metrics.pendingRequests.WithLabelValues(string(mode)).Inc()
	c.log.Infow("Registered location request",
		"requestId", req.ID(),
		"mode", mode,
		"timeout", timeout)

	c.mu.Lock()
	status := c.authStatus
	if !status.Blocked() {
		c.requestAuthorizationLocked()
		c.ensureSensingStartedLocked(mode)
	}
	c.mu.Unlock()

	if status.Blocked() {
		// No updates will ever arrive under a terminal status; resolve the
		// newcomer immediately through the normal completion path.
		req.setFailure(blockedError(status))
		c.CompleteRequest(req)
		return req
	}

	if status.Granted() && req.timer != nil {
		req.timer.Start()
	}

	return req
}

// CompleteRequest finishes a pending request: it aborts the timer, removes
// the request from the registry, delivers its current result exactly once,
// and stops the sensing session for its class when demand drops to zero.
// Idempotent: the registry removal is the single arbiter, so a concurrent
// second attempt that finds the request already absent is a no-op.
func (c *RequestCoordinator) CompleteRequest(req *LocationRequest) {
	if req == nil {
		return
	}

	removed := c.registry.RemoveByID(req.ID())
	if removed == nil {
		return
	}

	if req.timer != nil {
		// Prevent a late natural-expiry fire from racing the completion.
		req.timer.Abort()
	}

	result := req.Result()
	outcome := outcomeSuccess
	if result.Err != nil {
		outcome = outcomeFailure
	}
	c.metrics.pendingRequests.WithLabelValues(string(req.Mode())).Dec()
	c.metrics.completions.WithLabelValues(outcome).Inc()
	c.log.Infow("Completing location request",
		"requestId", req.ID(),
		"mode", req.Mode(),
		"outcome", outcome)

	c.dispatcher.Submit("complete:"+req.ID().String(), func() {
		req.deliverWith(result)
	})

	c.mu.Lock()
	c.recomputeDemandLocked(req.Mode())
	c.mu.Unlock()
}

// CompleteAllRequests completes every pending request in registry order
// through the single-request path.
func (c *RequestCoordinator) CompleteAllRequests() {
	for _, req := range c.registry.Snapshot() {
		c.CompleteRequest(req)
	}
}

// CurrentLocation returns the last validated position, or nil when none
// arrived yet.
func (c *RequestCoordinator) CurrentLocation() *types.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocation
}

// AuthorizationStatus returns the status the coordinator last observed.
func (c *RequestCoordinator) AuthorizationStatus() types.AuthorizationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authStatus
}

// PendingCount returns the number of pending requests.
func (c *RequestCoordinator) PendingCount() int {
	return c.registry.Count()
}

// OnLocationsUpdated routes a batch of provider positions to the pending
// requests. The latest reading in the batch becomes the current position if
// it validates; expired timers take precedence over a fresh fix arriving in
// the same pass.
func (c *RequestCoordinator) OnLocationsUpdated(batch []types.Location) {
	current := latestOf(batch)
	if current != nil && !current.Valid() {
		c.metrics.rejectedFixes.Inc()
		c.log.Debugw("Rejected invalid position",
			"latitude", current.Latitude,
			"longitude", current.Longitude)
		current = nil
	}

	if current != nil {
		c.mu.Lock()
		c.currentLocation = current
		c.mu.Unlock()
	}

	for _, req := range c.registry.Snapshot() {
		switch {
		case req.TimedOut():
			// Timeout precedence: the expired timer wins even against a
			// fix delivered in the same pass, so the result is settled
			// before the pass's position is recorded.
			req.resolveTimeout()
			req.setLastLocation(current)
			c.CompleteRequest(req)
		case current == nil:
			// No valid fix this pass; leave the request pending.
		case req.IsRecurring():
			req.setSuccess(current)
			c.deliverRecurring(req)
		default:
			req.setSuccess(current)
			c.CompleteRequest(req)
		}
	}
}

// OnFailure routes a provider failure: recurring requests observe it and
// stay pending, one-shot requests complete with it.
func (c *RequestCoordinator) OnFailure(err error) {
	locErr := classifyProviderError(err)
	c.log.Warnw("Provider reported failure", "error", err)

	for _, req := range c.registry.Snapshot() {
		req.setFailure(locErr)
		if req.IsRecurring() {
			c.deliverRecurring(req)
		} else {
			c.CompleteRequest(req)
		}
	}
}

// OnAuthorizationChanged records the new status and publishes it to every
// subscriber. A terminal status completes all pending requests, since no
// further fixes will ever arrive; a granted status (re)starts every pending
// request's timeout window, which is the point the deadline actually
// begins counting for requests queued before permission was granted.
func (c *RequestCoordinator) OnAuthorizationChanged(status types.AuthorizationStatus) {
	c.mu.Lock()
	c.authStatus = status
	c.mu.Unlock()

	c.log.Infow("Authorization status changed", "status", status)
	c.broadcaster.Publish(status)

	if status.Blocked() {
		failure := blockedError(status)
		for _, req := range c.registry.Snapshot() {
			req.setFailure(failure)
		}
		c.CompleteAllRequests()
		return
	}

	if status.Granted() {
		for _, req := range c.registry.Snapshot() {
			if req.timer != nil {
				req.timer.Start()
			}
		}
	}
}

// onRequestTimeout is invoked by a request's own timer on natural expiry.
// The registry membership check makes a timeout racing another completion
// harmless: CompleteRequest re-checks under the removal arbiter anyway.
func (c *RequestCoordinator) onRequestTimeout(req *LocationRequest) {
	if !c.registry.Contains(req.ID()) {
		return
	}
	c.log.Debugw("Location request timed out", "requestId", req.ID(), "mode", req.Mode())
	req.resolveTimeout()
	c.CompleteRequest(req)
}

// deliverRecurring invokes a recurring request's callback without removing
// it from the registry.
func (c *RequestCoordinator) deliverRecurring(req *LocationRequest) {
	c.metrics.deliveries.Inc()
	result := req.Result()
	c.dispatcher.Submit("deliver:"+req.ID().String(), func() {
		req.deliverWith(result)
	})
}

// requestAuthorizationLocked asks the platform for permission, idempotently:
// requesting while the status is already determined is a no-op on our side,
// and the provider treats repeat prompts the same way.
func (c *RequestCoordinator) requestAuthorizationLocked() {
	if c.authStatus != types.AuthorizationNotDetermined {
		return
	}

	level := types.LevelWhenInUse
	if c.inspector.RequiredAuthorizationLevel() == types.LevelAlways && c.inspector.HasBackgroundLocationCapability() {
		level = types.LevelAlways
	}
	c.log.Infow("Requesting location authorization", "level", level)
	c.provider.RequestAuthorization(level)
}

// ensureSensingStartedLocked starts the sensing session for the request's
// class unless it is already running. Significant-change requests get their
// own low-power session; Once and Continuous share the continuous one.
func (c *RequestCoordinator) ensureSensingStartedLocked(mode types.RequestMode) {
	if mode == types.ModeSignificant {
		if !c.significantActive {
			c.significantActive = true
			c.metrics.sensingSessions.WithLabelValues(sensingClassSignificant).Set(1)
			c.log.Info("Starting significant-change sensing")
			c.provider.StartSignificantChangeUpdates()
		}
		return
	}
	if !c.continuousActive {
		c.continuousActive = true
		c.metrics.sensingSessions.WithLabelValues(sensingClassContinuous).Set(1)
		c.log.Info("Starting continuous sensing")
		c.provider.StartContinuousUpdates()
	}
}

// recomputeDemandLocked stops a class's sensing session when its pending
// count dropped to zero. The session runs iff at least one request needing
// it is pending.
func (c *RequestCoordinator) recomputeDemandLocked(mode types.RequestMode) {
	if mode == types.ModeSignificant {
		remaining := c.registry.CountWhere(func(r *LocationRequest) bool {
			return r.Mode() == types.ModeSignificant
		})
		if remaining == 0 && c.significantActive {
			c.significantActive = false
			c.metrics.sensingSessions.WithLabelValues(sensingClassSignificant).Set(0)
			c.log.Info("Stopping significant-change sensing")
			c.provider.StopSignificantChangeUpdates()
		}
		return
	}

	remaining := c.registry.CountWhere(func(r *LocationRequest) bool {
		return r.Mode() != types.ModeSignificant
	})
	if remaining == 0 && c.continuousActive {
		c.continuousActive = false
		c.metrics.sensingSessions.WithLabelValues(sensingClassContinuous).Set(0)
		c.log.Info("Stopping continuous sensing")
		c.provider.StopContinuousUpdates()
	}
}

// latestOf picks the reading with the newest timestamp, ties broken by the
// later batch position. Returns nil for an empty batch.
func latestOf(batch []types.Location) *types.Location {
	if len(batch) == 0 {
		return nil
	}
	best := batch[0]
	for _, loc := range batch[1:] {
		if !loc.Timestamp.Before(best.Timestamp) {
			best = loc
		}
	}
	return &best
}

// blockedError maps a terminal authorization status to its result kind.
func blockedError(status types.AuthorizationStatus) *errors.LocationError {
	if status == types.AuthorizationRestricted {
		return errors.Restricted()
	}
	return errors.Denied()
}

// classifyProviderError maps a provider failure onto the result taxonomy.
func classifyProviderError(err error) *errors.LocationError {
	if err == nil {
		return errors.General()
	}
	if locErr, ok := err.(*errors.LocationError); ok {
		return locErr
	}
	return errors.Other(err.Error())
}
