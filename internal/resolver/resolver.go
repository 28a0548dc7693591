// Package resolver implements the schedule resolver (§4.1): a pure
// function over a device's bound schedule group and the current wall
// clock that selects the active schedule and materializes a playlist.
package resolver

import (
	"sort"
	"time"

	"github.com/notandrewjones/signage-app/internal/model"
)

// GroupData is everything the resolver needs about one schedule group,
// fetched by the caller (internal/store) before calling Resolve. Keeping
// the resolver itself storage-free is what makes it pure and
// concurrency-safe without locking (§5: "Resolver is read-only and may
// be called concurrently without locking").
type GroupData struct {
	Group     model.ScheduleGroup
	Schedules []model.Schedule
	Content   []model.ContentItem // all items, resolver filters Active itself
}

// Result is the resolver's full output (§4.1 contract).
type Result struct {
	ActiveSchedule *model.Schedule
	Playlist       []model.PlaylistItem
	Debug          Debug
}

// Debug is the resolver's diagnostic surface (§4.1 "Debug surface").
type Debug struct {
	CurrentTime          string                      `json:"current_time"`
	CurrentDay           int                         `json:"current_day"`
	TotalSchedules       int                         `json:"total_schedules"`
	TotalContent         int                         `json:"total_content"`
	ScheduleCheckResults []model.ScheduleCheckResult `json:"schedule_check_results"`
	FallbackMode         bool                        `json:"fallback_mode"`
}

// weekday maps Go's time.Weekday (Sunday=0) to the spec's Monday=0 index.
func weekday(t time.Time) int {
	wd := int(t.Weekday()) // Sunday=0 .. Saturday=6
	return (wd + 6) % 7    // Monday=0 .. Sunday=6
}

func timeOfDay(t time.Time) model.TimeOfDay {
	return model.TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// Resolve is the pure resolver contract: given a group's current data and
// a wall-clock instant, deterministically select the active schedule and
// build the playlist (§4.1 steps 1-5). It never writes.
func Resolve(g GroupData, now time.Time) Result {
	dow := weekday(now)
	t := timeOfDay(now)

	debug := Debug{
		CurrentTime:    now.Format("15:04:05"),
		CurrentDay:     dow,
		TotalSchedules: len(g.Schedules),
		TotalContent:   len(g.Content),
	}

	if !g.Group.Active {
		return Result{Debug: debug}
	}

	// Candidates ordered by id up front so that the priority/id tie-break
	// (§8 property 2) is a single deterministic pass: highest priority
	// first, and among equal priorities, the earliest-seen (smallest id)
	// wins because it is never displaced by a later equal-priority match.
	sorted := make([]model.Schedule, len(g.Schedules))
	copy(sorted, g.Schedules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type candidate struct {
		sched     model.Schedule
		debugIdx  int // index into debug.ScheduleCheckResults
	}
	var candidates []candidate

	for _, sc := range sorted {
		dayMatch := sc.Days.Contains(dow)
		timeMatch := sc.InWindow(t)
		debug.ScheduleCheckResults = append(debug.ScheduleCheckResults, model.ScheduleCheckResult{
			Name:      sc.Name,
			Start:     sc.Start.String(),
			End:       sc.End.String(),
			Days:      string(sc.Days),
			IsActive:  sc.Active,
			DayMatch:  dayMatch,
			TimeMatch: timeMatch,
		})
		if sc.Active && dayMatch && timeMatch {
			candidates = append(candidates, candidate{sched: sc, debugIdx: len(debug.ScheduleCheckResults) - 1})
		}
	}

	var active *model.Schedule
	bestIdx := -1
	for i, c := range candidates {
		// Strict ">" (never ">=") keeps the earliest-seen (smallest id)
		// schedule on equal priority, since candidates is built in
		// id-ascending order (§8 property 2).
		if bestIdx == -1 || c.sched.Priority > candidates[bestIdx].sched.Priority {
			bestIdx = i
		}
	}
	if bestIdx != -1 {
		sc := candidates[bestIdx].sched
		active = &sc
		debug.ScheduleCheckResults[candidates[bestIdx].debugIdx].Selected = true
	}

	hasActiveContent := false
	for _, c := range g.Content {
		if c.Active {
			hasActiveContent = true
			break
		}
	}

	var playlist []model.PlaylistItem
	if active != nil {
		order := 0
		for _, c := range g.Content {
			if !c.Active {
				continue
			}
			var dur *float64
			if c.FileType == model.FileTypeVideo && c.IntrinsicDuration != nil {
				v := *c.IntrinsicDuration
				dur = &v
			}
			playlist = append(playlist, model.PlaylistItem{
				ID:              c.ID,
				Name:            c.Name,
				Filename:        c.Filename,
				FileType:        c.FileType,
				FileSize:        c.FileSize,
				DisplayDuration: c.DisplayDuration,
				Duration:        dur,
				Order:           order,
			})
			order++
		}
	} else {
		debug.FallbackMode = hasActiveContent
	}

	return Result{ActiveSchedule: active, Playlist: playlist, Debug: debug}
}
