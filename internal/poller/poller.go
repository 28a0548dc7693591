// Package poller implements the player's periodic playlist fetch
// (§4.7): a 10s timer wrapped in a circuit breaker so a dead server
// doesn't spend every tick blocked on a dial timeout, plus the
// diff-based resync decision (changed origin, changed item-id set,
// changed orientation/flip). Grounded on tomtom215/cartographus's
// internal/eventprocessor.ResilientReader: a sony/gobreaker/v2 circuit
// wrapping a single flaky operation, falling back to a no-op rather
// than failing the caller.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/notandrewjones/signage-app/internal/metrics"
	"github.com/notandrewjones/signage-app/internal/model"
)

const (
	pollInterval   = 10 * time.Second // §4.7 "Every 10s, fetch playlist"
	requestTimeout = 10 * time.Second // §5 "all network requests use a 10s timeout"
)

// Playlist is the decoded shape of GET /player/{access_code}/playlist (§6).
type Playlist struct {
	Items          []model.PlaylistItem `json:"playlist"`
	ActiveSchedule json.RawMessage       `json:"active_schedule"`
	Device         DeviceView            `json:"device"`
	Transition     TransitionView        `json:"transition"`
	Sync           SyncView              `json:"sync"`
}

type DeviceView struct {
	Orientation    model.Orientation `json:"orientation"`
	FlipHorizontal bool              `json:"flip_horizontal"`
	FlipVertical   bool              `json:"flip_vertical"`
}

type TransitionView struct {
	Type     model.TransitionKind `json:"type"`
	Duration float64              `json:"duration"`
}

type SyncView struct {
	StartTime     int64   `json:"start_time"`
	TotalDuration float64 `json:"total_duration"`
}

// Diff classifies what changed between two consecutive playlist fetches
// (§4.7).
type Diff struct {
	OriginChanged      bool
	ItemSetChanged     bool
	OrientationChanged bool
	FlipChanged        bool
}

// Changed reports whether anything at all differs.
func (d Diff) Changed() bool {
	return d.OriginChanged || d.ItemSetChanged || d.OrientationChanged || d.FlipChanged
}

// RequiresFullResync reports whether the sync engine must tear down and
// reinitialise (§4.7 "full resync"), as opposed to a cheap CSS-only update.
func (d Diff) RequiresFullResync() bool {
	return d.OriginChanged || d.ItemSetChanged
}

// Compare implements §4.7's decision tree: origin change or item-id-set
// change forces a full resync; orientation/flip alone is a transform-only
// update; otherwise no-op.
func Compare(prev, next Playlist) Diff {
	return Diff{
		OriginChanged:      prev.Sync.StartTime != next.Sync.StartTime,
		ItemSetChanged:     !sameItemSet(prev.Items, next.Items),
		OrientationChanged: prev.Device.Orientation != next.Device.Orientation,
		FlipChanged:        prev.Device.FlipHorizontal != next.Device.FlipHorizontal || prev.Device.FlipVertical != next.Device.FlipVertical,
	}
}

func sameItemSet(a, b []model.PlaylistItem) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int64]int, len(a))
	for _, it := range a {
		counts[it.ID]++
	}
	for _, it := range b {
		counts[it.ID]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// Poller fetches the playlist on a fixed interval, through a circuit
// breaker so a server outage (§E6 "offline playback") degrades to fast
// local failures instead of piling up slow timeouts.
type Poller struct {
	serverURL  string
	accessCode string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[Playlist]
	forceCh    chan struct{}

	onUpdate func(Playlist, Diff)
	onError  func(error)
}

// Config names the server endpoint, the device's access code and the
// callbacks; the HTTP client and circuit breaker settings are fixed in New.
type Config struct {
	ServerURL  string
	AccessCode string
	OnUpdate   func(Playlist, Diff)
	OnError    func(error)
}

// New builds a Poller. OnUpdate is called once per successful fetch with
// the decoded playlist and its diff against the previous successful
// fetch (the first fetch's diff always reports every field changed).
func New(cfg Config) *Poller {
	p := &Poller{
		serverURL:  cfg.ServerURL,
		accessCode: cfg.AccessCode,
		client:     &http.Client{Timeout: requestTimeout},
		forceCh:    make(chan struct{}, 1),
		onUpdate:   cfg.OnUpdate,
		onError:    cfg.OnError,
	}
	settings := gobreaker.Settings{
		Name:        "player-poller",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.PollerCircuitState.Set(circuitStateValue(to))
			slog.Info("poller circuit state change", "from", from.String(), "to", to.String())
		},
	}
	p.breaker = gobreaker.NewCircuitBreaker[Playlist](settings)
	return p
}

// TriggerNow forces an immediate fetch on the next Run iteration instead
// of waiting out the 10s tick (§2, §4.3 "manual resync key"). That fetch
// reports every field as changed, like the first one, so OnUpdate
// performs a full resync even when the playlist is unchanged. Safe to
// call from any goroutine; a pending trigger is not queued twice.
func (p *Poller) TriggerNow() {
	select {
	case p.forceCh <- struct{}{}:
	default:
	}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Run ticks every 10s until ctx is cancelled (§5 "the poller is a 10s
// timer"). A fetch failure, including one short-circuited by the open
// breaker, only logs: cached content continues to play seamlessly (§7
// NetworkFailure, §E6).
func (p *Poller) Run(ctx context.Context) {
	var prev Playlist
	first := true

	fetchOnce := func() {
		next, err := p.fetch(ctx)
		if err != nil {
			if p.onError != nil {
				p.onError(err)
			}
			slog.Warn("poller: fetch failed, retrying next tick", "error", err)
			return
		}
		diff := Diff{OriginChanged: true, ItemSetChanged: true, OrientationChanged: true, FlipChanged: true}
		if !first {
			diff = Compare(prev, next)
		}
		first = false
		prev = next
		if p.onUpdate != nil {
			p.onUpdate(next, diff)
		}
	}

	fetchOnce()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetchOnce()
		case <-p.forceCh:
			first = true
			fetchOnce()
		}
	}
}

func (p *Poller) fetch(ctx context.Context) (Playlist, error) {
	result, err := p.breaker.Execute(func() (Playlist, error) {
		url := fmt.Sprintf("%s/player/%s/playlist", p.serverURL, p.accessCode)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Playlist{}, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return Playlist{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return Playlist{}, errReenrolRequired
		}
		if resp.StatusCode != http.StatusOK {
			return Playlist{}, fmt.Errorf("poller: unexpected status %d", resp.StatusCode)
		}
		var pl Playlist
		if err := json.NewDecoder(resp.Body).Decode(&pl); err != nil {
			return Playlist{}, err
		}
		return pl, nil
	})
	return result, err
}

// errReenrolRequired signals the caller should drop back to the
// enrolment/setup screen (§6 "players treat as re-enrol required").
var errReenrolRequired = fmt.Errorf("poller: access code no longer recognised by server")

// IsReenrolRequired reports whether err signals that the device must
// re-enrol.
func IsReenrolRequired(err error) bool {
	return err == errReenrolRequired
}
