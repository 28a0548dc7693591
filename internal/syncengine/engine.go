package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notandrewjones/signage-app/internal/metrics"
	"github.com/notandrewjones/signage-app/internal/model"
)

// Renderer is the abstraction the sync engine drives transitions
// through (§4.6 "renderer controller"). It is implemented against
// whatever actually paints pixels (an embedded browser, a native
// texture layer); the engine only needs these four operations.
type Renderer struct {
	// Preload loads content into the back layer without making it visible.
	Preload func(ctx context.Context, item model.PlaylistItem) error
	// Transition raises the preloaded back layer using the given kind and
	// duration, then lowers the old front layer (§4.6 steps 1-4).
	Transition func(ctx context.Context, kind model.TransitionKind, duration float64) error
	// SeekVideo sets the active layer's video currentTime, if it is a video.
	SeekVideo func(seconds float64)
	// VideoCurrentTime reports the active layer's video currentTime and
	// whether the active item is a video at all.
	VideoCurrentTime func() (seconds float64, isVideo bool)
}

// Origin is the sync-origin triple a playlist fetch refreshes (§4.2, §4.3).
type Origin struct {
	Unix          int64
	CycleDuration float64
}

// Plan is everything one resolved playlist fetch hands the engine.
type Plan struct {
	Items              []model.PlaylistItem
	Origin             Origin
	TransitionKind     model.TransitionKind
	TransitionDuration float64
}

const driftTolerance = 50 * time.Millisecond

// Engine drives the transition loop and the 1Hz drift checker for one
// device (§4.3, §5 "the sync engine ... single-threaded with respect to
// DOM-like mutations"). One Engine runs at most one Plan at a time;
// Reload cancels and replaces it.
type Engine struct {
	renderer Renderer
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	current *runningPlan
}

type runningPlan struct {
	plan  Plan
	cycle []Item
	dur   float64
	shown int // index of the item believed visible on the active layer
}

// New creates an Engine. now defaults to time.Now; tests inject a fixed
// clock to assert scheduling without sleeping for real cycle durations.
func New(renderer Renderer, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{renderer: renderer, now: now}
}

// Reload cancels any running plan and starts a new one (§4.3 cancellation:
// "server push of a changed origin; local playlist identity change").
// ctx outlives Reload itself — it bounds the new plan's lifetime until the
// next Reload or Stop.
func (e *Engine) Reload(ctx context.Context, plan Plan) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	cycle, dur := BuildCycle(plan.Items)
	rp := &runningPlan{plan: plan, cycle: cycle, dur: dur}
	e.current = rp
	e.mu.Unlock()

	if len(cycle) == 0 {
		return
	}
	go e.run(runCtx, rp)
}

// Stop cancels the running plan, ending its transition loop and drift
// checker. It sends no pause command to the renderer: a video already
// playing on the active layer keeps playing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.current = nil
}

func (e *Engine) run(ctx context.Context, rp *runningPlan) {
	nowUnix := e.nowUnixFrac()
	pos := Resolve(rp.cycle, rp.dur, rp.plan.Origin.Unix, nowUnix)
	rp.shown = pos.CurrentIndex
	if err := e.renderer.Preload(ctx, rp.plan.Items[rp.shown]); err != nil {
		slog.Warn("syncengine: initial preload failed", "error", err)
	}
	if err := e.renderer.Transition(ctx, rp.plan.TransitionKind, 0); err != nil {
		slog.Warn("syncengine: initial transition failed", "error", err)
	}
	if pos.InItem >= 0 {
		e.renderer.SeekVideo(pos.InItem)
	}

	drift := time.NewTicker(time.Second)
	defer drift.Stop()

	deadline := e.scheduleNext(rp)
	for {
		select {
		case <-ctx.Done():
			return
		case <-drift.C:
			e.checkDrift(ctx, rp)
		case <-deadline:
			if e.fireTransition(ctx, rp) {
				deadline = e.scheduleNext(rp)
			} else {
				return
			}
		}
	}
}

// scheduleNext arms a timer for the exact computed deadline rather than
// polling, since that is the only way to hit frame-accurate cuts
// without an actual animation-frame clock (§4.3).
func (e *Engine) scheduleNext(rp *runningPlan) <-chan time.Time {
	nowUnix := e.nowUnixFrac()
	deadlineUnix := NextDeadlineUnix(rp.cycle, rp.dur, rp.plan.Origin.Unix, nowUnix)
	d := time.Duration((deadlineUnix - nowUnix) * float64(time.Second))
	if d < 0 {
		d = 0
	}
	return time.After(d)
}

func (e *Engine) fireTransition(ctx context.Context, rp *runningPlan) bool {
	if ctx.Err() != nil {
		return false
	}
	nowUnix := e.nowUnixFrac()
	pos := Resolve(rp.cycle, rp.dur, rp.plan.Origin.Unix, nowUnix)
	rp.shown = pos.CurrentIndex

	if err := e.renderer.Preload(ctx, rp.plan.Items[rp.shown]); err != nil {
		slog.Warn("syncengine: preload on transition failed", "error", err)
	}
	if err := e.renderer.Transition(ctx, rp.plan.TransitionKind, rp.plan.TransitionDuration); err != nil {
		slog.Warn("syncengine: transition failed, forcing resync", "error", err)
	}
	if pos.InItem >= 0 {
		e.renderer.SeekVideo(pos.InItem)
	}
	return true
}

// checkDrift is the 1Hz recheck (§4.3 "Drift check"). A mismatched
// current_item forces a resync; a mismatched video currentTime is
// corrected in place.
func (e *Engine) checkDrift(ctx context.Context, rp *runningPlan) {
	nowUnix := e.nowUnixFrac()
	pos := Resolve(rp.cycle, rp.dur, rp.plan.Origin.Unix, nowUnix)
	if pos.CurrentIndex != rp.shown {
		metrics.SyncDriftCorrectionsTotal.Inc()
		rp.shown = pos.CurrentIndex
		if err := e.renderer.Preload(ctx, rp.plan.Items[rp.shown]); err != nil {
			slog.Warn("syncengine: drift resync preload failed", "error", err)
		}
		if err := e.renderer.Transition(ctx, rp.plan.TransitionKind, 0); err != nil {
			slog.Warn("syncengine: drift resync transition failed", "error", err)
		}
		e.renderer.SeekVideo(pos.InItem)
		return
	}
	current, isVideo := e.renderer.VideoCurrentTime()
	if !isVideo {
		return
	}
	if driftSeconds(current, pos.InItem) > driftTolerance.Seconds() {
		metrics.SyncDriftCorrectionsTotal.Inc()
		e.renderer.SeekVideo(pos.InItem)
	}
}

// nowUnixFrac returns now as fractional Unix seconds. §4.3 is explicit
// that "a coarse timer is not acceptable" — truncating to whole seconds
// here would defeat NextDeadlineUnix's sub-second half-frame slack.
func (e *Engine) nowUnixFrac() float64 {
	t := e.now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func driftSeconds(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d
}
