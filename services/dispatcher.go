// Package services implements the location-request coordination core.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/geofix/location-core/config"
	"github.com/geofix/location-core/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// callback is a unit of caller-visible work queued for delivery.
type callback struct {
	// Name is a descriptive name for logging purposes
	Name string
	// Execute performs the delivery
	Execute func()
}

// CallbackDispatcher delivers request callbacks on a single designated
// goroutine, giving callers one consistent invocation context regardless of
// which thread triggered the completion. Submission blocks when the queue
// is full rather than dropping, since a dropped completion would break the
// at-most-once/exactly-once delivery contract.
type CallbackDispatcher struct {
	queue   chan callback
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.SugaredLogger
	metrics *dispatcherMetrics
	mu      sync.Mutex
	running bool
}

// dispatcherMetrics holds Prometheus metrics for the dispatcher.
type dispatcherMetrics struct {
	queueDepth prometheus.Gauge
	delivered  prometheus.Counter
	rejected   prometheus.Counter
	latency    prometheus.Histogram
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	dispMetricsInstance *dispatcherMetrics
	dispMetricsOnce     sync.Once
	dispDefaultRegistry = prometheus.DefaultRegisterer
)

// newDispatcherMetrics initializes and registers Prometheus metrics using
// the singleton pattern.
func newDispatcherMetrics() *dispatcherMetrics {
	dispMetricsOnce.Do(func() {
		dispMetricsInstance = &dispatcherMetrics{
			queueDepth: promauto.With(dispDefaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "location_dispatcher_queue_depth",
				Help: "Current number of callbacks waiting for delivery",
			}),
			delivered: promauto.With(dispDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "location_dispatcher_delivered_total",
				Help: "Total number of callbacks delivered",
			}),
			rejected: promauto.With(dispDefaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "location_dispatcher_rejected_total",
				Help: "Total number of callbacks rejected after shutdown",
			}),
			latency: promauto.With(dispDefaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "location_dispatcher_delivery_seconds",
				Help:    "Time taken to run delivered callbacks",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1},
			}),
		}
	})
	return dispMetricsInstance
}

// resetDispatcherMetricsForTesting resets the metrics singleton for test
// isolation. This should only be called from tests.
func resetDispatcherMetricsForTesting() {
	reg := prometheus.NewRegistry()
	dispDefaultRegistry = reg
	dispMetricsInstance = nil
	dispMetricsOnce = sync.Once{}
}

// NewCallbackDispatcher creates a dispatcher with the configured queue
// size. It must be started with Start() before submitting callbacks.
func NewCallbackDispatcher(cfg config.CoordinatorConfig) *CallbackDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &CallbackDispatcher{
		queue:   make(chan callback, cfg.DispatcherQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.GetLogger().Named("dispatcher"),
		metrics: newDispatcherMetrics(),
	}
}

// Start launches the delivery goroutine. Calling Start() multiple times is
// safe and will only start it once.
func (d *CallbackDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.logger.Warn("Dispatcher already running")
		return
	}
	d.running = true

	d.wg.Add(1)
	go d.run()
}

// run is the single delivery loop. One goroutine is the serialization
// guarantee: two callbacks never execute concurrently. The queue channel is
// never closed; shutdown cancels the context and the loop drains whatever
// is still queued before exiting.
func (d *CallbackDispatcher) run() {
	defer d.wg.Done()
	d.logger.Debug("Dispatcher started")

	for {
		select {
		case cb := <-d.queue:
			d.execute(cb)
		case <-d.ctx.Done():
			for {
				select {
				case cb := <-d.queue:
					d.execute(cb)
				default:
					d.logger.Debug("Dispatcher stopped")
					return
				}
			}
		}
	}
}

// execute runs a single callback with metrics.
func (d *CallbackDispatcher) execute(cb callback) {
	d.metrics.queueDepth.Dec()
	start := time.Now()
	cb.Execute()
	d.metrics.latency.Observe(time.Since(start).Seconds())
	d.metrics.delivered.Inc()
	d.logger.Debugw("Callback delivered", "callback", cb.Name, "duration", time.Since(start))
}

// Submit enqueues a callback for serialized delivery. It blocks while the
// queue is full and returns false only after the dispatcher shut down.
func (d *CallbackDispatcher) Submit(name string, fn func()) bool {
	select {
	case <-d.ctx.Done():
		d.metrics.rejected.Inc()
		d.logger.Warnw("Callback rejected - dispatcher shut down", "callback", name)
		return false
	case d.queue <- callback{Name: name, Execute: fn}:
		d.metrics.queueDepth.Inc()
		return true
	}
}

// Shutdown stops accepting callbacks and waits for the queue to drain. The
// provided context caps the wait; its error is returned on expiry.
func (d *CallbackDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("Initiating dispatcher shutdown...")

	// Reject new submissions, then let the loop drain what is queued.
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out with callbacks in flight")
		return ctx.Err()
	}
}
