package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geofix/location-core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, queueSize int) *CallbackDispatcher {
	t.Helper()
	resetDispatcherMetricsForTesting()
	d := NewCallbackDispatcher(config.CoordinatorConfig{DispatcherQueueSize: queueSize})
	d.Start()
	return d
}

func TestCallbackDispatcher_DeliversSubmittedCallbacks(t *testing.T) {
	d := newTestDispatcher(t, 16)

	var delivered int32
	for i := 0; i < 10; i++ {
		require.True(t, d.Submit("test", func() {
			atomic.AddInt32(&delivered, 1)
		}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&delivered) == 10
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

// Callbacks run on a single goroutine: two deliveries must never overlap.
func TestCallbackDispatcher_SerializesDelivery(t *testing.T) {
	d := newTestDispatcher(t, 64)

	var inFlight int32
	var overlapped int32
	var delivered int32

	for i := 0; i < 50; i++ {
		d.Submit("serialize", func() {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.AddInt32(&overlapped, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			atomic.AddInt32(&delivered, 1)
		})
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&delivered) == 50
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapped), "callbacks overlapped")
}

func TestCallbackDispatcher_ShutdownDrainsQueue(t *testing.T) {
	d := newTestDispatcher(t, 64)

	var delivered int32
	for i := 0; i < 20; i++ {
		d.Submit("drain", func() {
			atomic.AddInt32(&delivered, 1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Equal(t, int32(20), atomic.LoadInt32(&delivered))
}

func TestCallbackDispatcher_RejectsAfterShutdown(t *testing.T) {
	d := newTestDispatcher(t, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	assert.False(t, d.Submit("late", func() {
		t.Error("callback must not run after shutdown")
	}))
}

func TestCallbackDispatcher_ShutdownTwiceIsSafe(t *testing.T) {
	d := newTestDispatcher(t, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	require.NoError(t, d.Shutdown(ctx))
}
