package services

import (
	"sync"
	"testing"

	"github.com/geofix/location-core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(mode types.RequestMode) *LocationRequest {
	return newLocationRequest(mode, nil)
}

func TestRequestRegistry_AddPreservesOrder(t *testing.T) {
	registry := NewRequestRegistry()
	first := newTestRequest(types.ModeOnce)
	second := newTestRequest(types.ModeContinuous)
	third := newTestRequest(types.ModeSignificant)

	registry.Add(first)
	registry.Add(second)
	registry.Add(third)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, first.ID(), snapshot[0].ID())
	assert.Equal(t, second.ID(), snapshot[1].ID())
	assert.Equal(t, third.ID(), snapshot[2].ID())
}

func TestRequestRegistry_RemoveByID(t *testing.T) {
	registry := NewRequestRegistry()
	req := newTestRequest(types.ModeOnce)
	registry.Add(req)

	removed := registry.RemoveByID(req.ID())
	require.NotNil(t, removed)
	assert.Equal(t, req.ID(), removed.ID())
	assert.True(t, registry.IsEmpty())

	// Second removal finds nothing: this is the at-most-once arbiter.
	assert.Nil(t, registry.RemoveByID(req.ID()))
}

func TestRequestRegistry_RemoveByIDAbsent(t *testing.T) {
	registry := NewRequestRegistry()
	registry.Add(newTestRequest(types.ModeOnce))

	assert.Nil(t, registry.RemoveByID(uuid.New()))
	assert.Equal(t, 1, registry.Count())
}

func TestRequestRegistry_FilterAndCount(t *testing.T) {
	registry := NewRequestRegistry()
	registry.Add(newTestRequest(types.ModeOnce))
	registry.Add(newTestRequest(types.ModeContinuous))
	registry.Add(newTestRequest(types.ModeSignificant))
	registry.Add(newTestRequest(types.ModeSignificant))

	significant := func(r *LocationRequest) bool {
		return r.Mode() == types.ModeSignificant
	}
	assert.Len(t, registry.Filter(significant), 2)
	assert.Equal(t, 2, registry.CountWhere(significant))
	assert.Equal(t, 4, registry.Count())

	recurring := registry.Filter(func(r *LocationRequest) bool {
		return r.IsRecurring()
	})
	assert.Len(t, recurring, 3)
}

func TestRequestRegistry_ForEachVisitsInOrder(t *testing.T) {
	registry := NewRequestRegistry()
	var added []uuid.UUID
	for i := 0; i < 5; i++ {
		req := newTestRequest(types.ModeOnce)
		added = append(added, req.ID())
		registry.Add(req)
	}

	var visited []uuid.UUID
	registry.ForEach(func(r *LocationRequest) {
		visited = append(visited, r.ID())
	})
	assert.Equal(t, added, visited)
}

// Concurrent adds, removals, and reads must never corrupt the collection or
// let a reader observe a half-applied mutation.
func TestRequestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRequestRegistry()
	const perWorker = 50
	const workers = 8

	ids := make([][]uuid.UUID, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				req := newTestRequest(types.ModeOnce)
				ids[w] = append(ids[w], req.ID())
				registry.Add(req)
				// Interleave reads with the mutations.
				_ = registry.Count()
				_ = registry.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, workers*perWorker, registry.Count())

	// Remove everything concurrently; every removal must succeed exactly once.
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, id := range ids[w] {
				require.NotNil(t, registry.RemoveByID(id))
			}
		}(w)
	}
	wg.Wait()

	assert.True(t, registry.IsEmpty())
}
