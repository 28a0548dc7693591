package syncengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/model"
)

func playlist(durations ...float64) []model.PlaylistItem {
	items := make([]model.PlaylistItem, len(durations))
	for i, d := range durations {
		items[i] = model.PlaylistItem{ID: int64(i + 1), DisplayDuration: d}
	}
	return items
}

// TestResolve_E1 exercises §8 E1: items A(10s) B(5s) C(20s), cycle_duration
// 35, at now = origin + 12, cycle_pos = 12, item is B, in_item = 2,
// remaining = 3.
func TestResolve_E1(t *testing.T) {
	cycle, dur := BuildCycle(playlist(10, 5, 20))
	require.Equal(t, float64(35), dur)

	pos := Resolve(cycle, dur, 1_000_000_000, 1_000_000_012)
	require.Equal(t, 1, pos.CurrentIndex)
	require.InDelta(t, 2.0, pos.InItem, 1e-9)
	require.InDelta(t, 3.0, pos.Remaining, 1e-9)
}

func TestResolve_NegativeElapsedUsesFlooredModulo(t *testing.T) {
	cycle, dur := BuildCycle(playlist(10, 5, 20))
	// now slightly before origin (clock skew): elapsed = -1.
	pos := Resolve(cycle, dur, 1_000_000_000, 999_999_999)
	require.Equal(t, 2, pos.CurrentIndex) // wraps to the last item, near its end
	require.InDelta(t, 19.0, pos.InItem, 1e-9)
	require.InDelta(t, 1.0, pos.Remaining, 1e-9)
}

func TestResolve_EmptyCycleReturnsZeroValue(t *testing.T) {
	pos := Resolve(nil, 0, 0, 0)
	require.Equal(t, Position{}, pos)
}

func TestNextDeadlineUnix_NeverFallsWithinSlackOfNow(t *testing.T) {
	cycle, dur := BuildCycle(playlist(10, 5, 20))
	for _, offset := range []float64{0, 9.999, 15, 15.001, 34.999, 35, 70.5} {
		deadline := NextDeadlineUnix(cycle, dur, 1_000_000_000, 1_000_000_000+offset)
		require.Greater(t, deadline-(1_000_000_000+offset), 0.008)
	}
}

func TestNextDeadlineUnix_MidItemReturnsThisCycleEnd(t *testing.T) {
	cycle, dur := BuildCycle(playlist(10, 5, 20))
	deadline := NextDeadlineUnix(cycle, dur, 1_000_000_000, 1_000_000_012)
	require.InDelta(t, float64(1_000_000_000)+15, deadline, 1e-6)
}
