// Package syncengine implements the player's cycle-position math and
// transition scheduling (§4.3). The cut-alignment-within-a-frame
// requirement (§4.3 "a coarse timer is not acceptable") is met in Go by
// a timer reset to the exact computed deadline rather than a polling
// loop, since this process has no animation-frame clock of its own —
// the renderer driver it calls into is what actually paints frames.
// Grounded on the teacher's internal/bpm deterministic-math style (pure
// functions over floats, no hidden state) generalised from beat timing
// to cycle timing.
package syncengine

import (
	"math"

	"github.com/notandrewjones/signage-app/internal/model"
)

// Item is one playlist entry's position within the cycle, in seconds.
type Item struct {
	ContentID int64
	Start     float64
	End       float64
}

// BuildCycle computes each item's [start_offset, end_offset) within the
// cycle from the ordered, already-filtered playlist (§4.3 "the player
// precomputes each item's [start_offset, end_offset) within the cycle").
func BuildCycle(items []model.PlaylistItem) ([]Item, float64) {
	out := make([]Item, len(items))
	var cursor float64
	for i, it := range items {
		dur := it.DisplayDuration
		if it.Duration != nil && *it.Duration > 0 {
			dur = *it.Duration
		}
		out[i] = Item{ContentID: it.ID, Start: cursor, End: cursor + dur}
		cursor += dur
	}
	return out, cursor
}

// Position is the result of resolving a wall-clock instant against a
// cycle (§4.3 "Current position").
type Position struct {
	CurrentIndex int
	InItem       float64
	Remaining    float64
	CyclePos     float64
	CycleNumber  int64
}

// Resolve computes (current_item, in_item, remaining) at wall-clock now
// for a cycle anchored at origin (seconds since epoch). Uses floored
// modulo so small negative elapsed after clock skew still yields a
// valid position (§4.3).
func Resolve(items []Item, cycleDuration float64, originUnix int64, nowUnix float64) Position {
	if len(items) == 0 || cycleDuration <= 0 {
		return Position{}
	}
	elapsed := nowUnix - float64(originUnix)
	cyclePos := flooredMod(elapsed, cycleDuration)
	cycleNumber := int64(math.Floor(elapsed / cycleDuration))

	idx := len(items) - 1
	for i, it := range items {
		if cyclePos >= it.Start && cyclePos < it.End {
			idx = i
			break
		}
	}
	item := items[idx]
	return Position{
		CurrentIndex: idx,
		InItem:       cyclePos - item.Start,
		Remaining:    item.End - cyclePos,
		CyclePos:     cyclePos,
		CycleNumber:  cycleNumber,
	}
}

// NextDeadlineUnix computes the absolute wall-clock time (seconds since
// epoch) at which the current item ends, advancing by one cycle if that
// value already lies in the past within an 8ms slack (§4.3 "Next
// transition deadline").
func NextDeadlineUnix(items []Item, cycleDuration float64, originUnix int64, nowUnix float64) float64 {
	if len(items) == 0 || cycleDuration <= 0 {
		return nowUnix
	}
	elapsed := nowUnix - float64(originUnix)
	cycleNumber := math.Floor(elapsed / cycleDuration)
	pos := Resolve(items, cycleDuration, originUnix, nowUnix)
	deadline := float64(originUnix) + cycleNumber*cycleDuration + items[pos.CurrentIndex].End

	const halfFrameSlack = 0.008
	if deadline-nowUnix <= halfFrameSlack {
		deadline += cycleDuration
	}
	return deadline
}

func flooredMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m < 0 {
		m += b
	}
	return m
}
