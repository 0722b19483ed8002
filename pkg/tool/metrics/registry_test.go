package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCallTotals(t *testing.T) {
	reg := NewRegistry()

	for i := 0; i < 4; i++ {
		reg.ObserveCall("search_particle", 10*time.Millisecond, true, "")
	}
	for i := 0; i < 2; i++ {
		reg.ObserveCall("search_particle", 20*time.Millisecond, false, "transport")
	}

	stats, ok := reg.Get("search_particle")
	require.True(t, ok)
	assert.Equal(t, int64(6), stats.Calls, "calls must equal successes plus failures")
	assert.Equal(t, int64(4), stats.Successes)
	assert.Equal(t, int64(2), stats.Failures)
	assert.Equal(t, 80*time.Millisecond, stats.TotalLatency)
	assert.False(t, stats.LastCall.IsZero())
}

func TestRegistryRejectionsSeparateFromCalls(t *testing.T) {
	reg := NewRegistry()

	reg.IncRejection("list_decays")
	reg.IncRejection("list_decays")

	stats, ok := reg.Get("list_decays")
	require.True(t, ok)
	assert.Equal(t, int64(2), stats.Rejections)
	assert.Equal(t, int64(0), stats.Calls, "breaker rejections must not count as calls")
}

func TestRegistryAvgLatency(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveCall("compile_tikz", 30*time.Millisecond, true, "")
	reg.ObserveCall("compile_tikz", 10*time.Millisecond, false, "transport")

	stats, _ := reg.Get("compile_tikz")
	assert.Equal(t, 20*time.Millisecond, stats.AvgLatency())

	var empty Stats
	assert.Equal(t, time.Duration(0), empty.AvgLatency())
}

func TestRegistrySnapshotAndReset(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveCall("a", time.Millisecond, true, "")
	reg.ObserveCall("b", time.Millisecond, false, "domain")

	snap := reg.Snapshot()
	require.Len(t, snap, 2)

	// Snapshot is a copy; mutating it must not affect the registry.
	entry := snap["a"]
	entry.Calls = 99

	fresh, _ := reg.Get("a")
	assert.Equal(t, int64(1), fresh.Calls)

	reg.Reset()
	assert.Empty(t, reg.Snapshot())
}

func TestMultiRecorderFansOut(t *testing.T) {
	first := NewRegistry()
	second := NewRegistry()
	rec := Multi(first, second)

	rec.ObserveCall("a", time.Millisecond, true, "")
	rec.IncRejection("a")

	for _, reg := range []*Registry{first, second} {
		stats, ok := reg.Get("a")
		require.True(t, ok)
		assert.Equal(t, int64(1), stats.Calls)
		assert.Equal(t, int64(1), stats.Rejections)
	}
}
