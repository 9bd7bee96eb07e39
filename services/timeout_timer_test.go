package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutTimer_NaturalExpiry(t *testing.T) {
	var fired int32
	timer := NewTimeoutTimer(20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	assert.False(t, timer.Expired())
	_, started := timer.Elapsed()
	assert.False(t, started, "timer should report never-started before Start")

	timer.Start()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)

	assert.True(t, timer.Expired())
	elapsed, started := timer.Elapsed()
	assert.True(t, started)
	assert.Equal(t, time.Duration(0), elapsed, "expired timer reports zero elapsed")

	// No double fire after natural expiry.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestTimeoutTimer_AbortCancelsWithoutFiring(t *testing.T) {
	var fired int32
	timer := NewTimeoutTimer(20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.Start()
	timer.Abort()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.False(t, timer.Expired(), "abort must not mark the timer expired")
}

func TestTimeoutTimer_AbortWhenIdleIsNoop(t *testing.T) {
	timer := NewTimeoutTimer(time.Second, func() {
		t.Error("callback must not fire")
	})
	timer.Abort()
	timer.Abort()
}

func TestTimeoutTimer_RestartSupersedesPendingFire(t *testing.T) {
	var fired int32
	timer := NewTimeoutTimer(80*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.Start()
	time.Sleep(40 * time.Millisecond)
	// Restart resets the window; the original fire must not stack.
	timer.Start()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired), "superseded fire must not run")

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTimeoutTimer_StartAfterExpiryClearsFlag(t *testing.T) {
	var fired int32
	timer := NewTimeoutTimer(10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.Start()
	require.Eventually(t, func() bool {
		return timer.Expired()
	}, time.Second, time.Millisecond)

	timer.Start()
	assert.False(t, timer.Expired())

	elapsed, started := timer.Elapsed()
	assert.True(t, started)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == 2
	}, time.Second, time.Millisecond)
}
