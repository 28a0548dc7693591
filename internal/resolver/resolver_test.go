package resolver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/model"
)

func mustTime(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	require.NoError(t, err)
	return tm
}

func TestResolve_Determinism(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Daytime", Start: 9 * 3600, End: 17 * 3600, Days: "0123456", Priority: 0, Active: true},
		},
		Content: []model.ContentItem{
			{ID: 1, Name: "A", Filename: "a.png", FileType: model.FileTypeImage, DisplayDuration: 10, Active: true, Order: 0},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")

	r1 := Resolve(g, now)
	r2 := Resolve(g, now)
	assert.Equal(t, r1.ActiveSchedule.ID, r2.ActiveSchedule.ID)
	assert.Equal(t, r1.Playlist, r2.Playlist)
	assert.Equal(t, r1.Debug, r2.Debug)
}

func TestResolve_PriorityTieBreak(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Low", Start: 0, End: 86399, Days: "0123456", Priority: 5, Active: true},
			{ID: 2, Name: "High", Start: 0, End: 86399, Days: "0123456", Priority: 5, Active: true},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	require.NotNil(t, r.ActiveSchedule)
	assert.Equal(t, int64(1), r.ActiveSchedule.ID, "equal priority must break ties toward the smallest id")
}

func TestResolve_PriorityConflict_E3(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "S1", Start: 0, End: 86399, Days: "0123456", Priority: 0, Active: true},
			{ID: 2, Name: "S2", Start: 0, End: 86399, Days: "0123456", Priority: 5, Active: true},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	require.NotNil(t, r.ActiveSchedule)
	assert.Equal(t, "S2", r.ActiveSchedule.Name)

	selectedCount := 0
	for _, cr := range r.Debug.ScheduleCheckResults {
		if cr.Selected {
			selectedCount++
			assert.Equal(t, "S2", cr.Name)
		}
	}
	assert.Equal(t, 1, selectedCount)
}

func TestResolve_MidnightWrap_E2(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Overnight", Start: 22 * 3600, End: 2 * 3600, Days: "0123456", Priority: 0, Active: true},
		},
	}
	// Tuesday 23:30 — dow=1 (Monday=0), time 23:30.
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-28T23:30:00")
	require.Equal(t, time.Tuesday, now.Weekday())

	r := Resolve(g, now)
	require.NotNil(t, r.ActiveSchedule)
	assert.Equal(t, "Overnight", r.ActiveSchedule.Name)
}

func TestResolve_MidnightWrap_BoundariesIncluded(t *testing.T) {
	sc := model.Schedule{Start: 22 * 3600, End: 2 * 3600}
	assert.True(t, sc.InWindow(23*3600+30*60))
	assert.True(t, sc.InWindow(1*3600))
	assert.True(t, sc.InWindow(22*3600))
	assert.True(t, sc.InWindow(2*3600))
	assert.False(t, sc.InWindow(12*3600))
}

func TestResolve_EmptyDaysNeverMatches(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Never", Start: 0, End: 86399, Days: "", Priority: 0, Active: true},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	assert.Nil(t, r.ActiveSchedule)
}

func TestResolve_InactiveGroupShortCircuits(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: false},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Whatever", Start: 0, End: 86399, Days: "0123456", Priority: 0, Active: true},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	assert.Nil(t, r.ActiveSchedule)
	assert.Empty(t, r.Playlist)
	assert.Empty(t, r.Debug.ScheduleCheckResults, "inactive group short-circuits before schedule enumeration")
}

func TestResolve_FallbackModeFlag(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Content: []model.ContentItem{
			{ID: 1, Name: "A", Active: true, DisplayDuration: 5},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	assert.Nil(t, r.ActiveSchedule)
	assert.Empty(t, r.Playlist)
	assert.True(t, r.Debug.FallbackMode)
}

func TestResolve_PlaylistOrderingAndEffectiveDuration(t *testing.T) {
	videoDur := 20.0
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "All day", Start: 0, End: 86399, Days: "0123456", Priority: 0, Active: true},
		},
		Content: []model.ContentItem{
			{ID: 1, Name: "A", FileType: model.FileTypeImage, DisplayDuration: 10, Active: true, Order: 0},
			{ID: 2, Name: "B", FileType: model.FileTypeImage, DisplayDuration: 5, Active: true, Order: 1},
			{ID: 3, Name: "C", FileType: model.FileTypeVideo, DisplayDuration: 99, IntrinsicDuration: &videoDur, Active: true, Order: 2},
			{ID: 4, Name: "D (inactive)", FileType: model.FileTypeImage, DisplayDuration: 1, Active: false, Order: 3},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)
	require.Len(t, r.Playlist, 3)
	assert.Equal(t, "A", r.Playlist[0].Name)
	assert.Equal(t, "B", r.Playlist[1].Name)
	assert.Equal(t, "C", r.Playlist[2].Name)
	require.NotNil(t, r.Playlist[2].Duration)
	assert.Equal(t, 20.0, *r.Playlist[2].Duration)
}

// TestDebug_MarshalsSnakeCaseKeys guards the §6/§4.1 JSON contract: the
// playlist endpoint's debug block must use the documented field names,
// not Go's default exported-field casing.
func TestDebug_MarshalsSnakeCaseKeys(t *testing.T) {
	g := GroupData{
		Group: model.ScheduleGroup{ID: 1, Active: true},
		Schedules: []model.Schedule{
			{ID: 1, Name: "Daytime", Start: 9 * 3600, End: 17 * 3600, Days: "0123456", Priority: 0, Active: true},
		},
	}
	now := mustTime(t, "2006-01-02T15:04:05", "2026-07-30T10:00:00")
	r := Resolve(g, now)

	data, err := json.Marshal(r.Debug)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"current_time", "current_day", "total_schedules", "total_content", "schedule_check_results", "fallback_mode"} {
		_, ok := raw[key]
		assert.True(t, ok, "missing snake_case key %q in marshaled Debug: %s", key, data)
	}
}
